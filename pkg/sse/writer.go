package sse

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Writer emits SSE frames to an io.Writer, flushing after each event when
// the underlying writer supports http.Flusher (as *http.ResponseWriter
// does). It is safe only for sequential use by one writer goroutine per
// stream — callers serialize writes themselves.
type Writer struct {
	w       *bufio.Writer
	flusher http.Flusher
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewWriter wraps w for SSE emission. If w also implements http.Flusher,
// every WriteEvent call flushes immediately so events reach the peer
// without buffering delay.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: bufio.NewWriter(w), flusher: flusher}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// WriteEvent writes one SSE frame: an optional id line, an optional event
// line, one or more data lines (data is split on "\n"), and a trailing
// blank line that dispatches it on the reading side.
func (s *Writer) WriteEvent(ev Event) error {
	if ev.ID != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", ev.ID); err != nil {
			return err
		}
	}
	if ev.Event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", ev.Event); err != nil {
			return err
		}
	}
	if ev.Retry != 0 {
		if _, err := fmt.Fprintf(s.w, "retry: %d\n", ev.Retry); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := s.w.WriteString("\n"); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// WriteComment writes an SSE comment line, used for keep-alive pings; it
// never produces an event on the reading side.
func (s *Writer) WriteComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
