// Package sse implements an incremental Server-Sent Events frame parser and
// a small emitter, conforming to the HTML5 EventSource grammar. It is pure
// (no I/O): Parser.Feed accepts byte chunks, possibly mid-line or
// mid-event, and returns whichever events the chunk completed.
package sse

import (
	"strconv"
	"strings"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Event is a single parsed SSE event.
type Event struct {
	ID    string // this event's id, else the last id seen (see LastEventID); empty if none yet
	Event string // event type; empty means the default "message" type
	Data  string
	Retry uint64 // 0 if not set
}

// Parser is a restartable SSE state machine. It never panics on malformed
// input; unrecognized fields and malformed retry values are silently
// ignored per the EventSource grammar.
type Parser struct {
	buf         strings.Builder
	current     eventBuilder
	lastEventID string
}

type eventBuilder struct {
	id       string
	hasID    bool
	event    string
	data     strings.Builder
	hasData  bool
	retry    uint64
	hasRetry bool
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New returns an empty parser.
func New() *Parser {
	return &Parser{}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Feed appends bytes to the parser's internal buffer and returns every
// event the new data completed, in order. Feeding the same overall byte
// stream split across any partition of chunks yields the same sequence of
// events as feeding it in one call.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf.Write(chunk)
	data := p.buf.String()

	var events []Event
	start := 0
	for {
		nl := strings.IndexAny(data[start:], "\r\n")
		if nl < 0 {
			break
		}
		end := start + nl
		next := end + 1
		if data[end] == '\r' {
			if next == len(data) {
				// A trailing CR may be the first half of a CRLF split
				// across chunks; wait for the next byte.
				break
			}
			if data[next] == '\n' {
				next++
			}
		}
		if ev, ok := p.processLine(data[start:end]); ok {
			events = append(events, ev)
		}
		start = next
	}

	// Keep only the unconsumed tail (possibly mid-line).
	p.buf.Reset()
	p.buf.WriteString(data[start:])

	return events
}

// LastEventID returns the most recently seen "id" field value, which
// sticks across events until a new id is set. It never resets on dispatch.
func (p *Parser) LastEventID() string {
	return p.lastEventID
}

// Reset clears all parser state, including the buffered partial line and
// the in-progress event, but does not clear LastEventID (mirrors the
// reference implementation's reset()).
func (p *Parser) Reset() {
	p.buf.Reset()
	p.current = eventBuilder{}
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// processLine processes a single unterminated line (CR/LF already
// stripped) and returns a dispatched event if the line was blank and there
// was data to dispatch.
func (p *Parser) processLine(line string) (Event, bool) {
	if line == "" {
		return p.dispatch()
	}
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		p.current.event = value
	case "data":
		if p.current.hasData {
			p.current.data.WriteByte('\n')
		}
		p.current.data.WriteString(value)
		p.current.hasData = true
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.current.id = value
			p.current.hasID = true
			p.lastEventID = value
		}
	case "retry":
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			p.current.retry = n
			p.current.hasRetry = true
		}
	default:
		// unrecognized field, ignored
	}

	return Event{}, false
}

// dispatch builds and clears the in-progress event if it has data. An
// empty line with no accumulated data discards state without emitting.
func (p *Parser) dispatch() (Event, bool) {
	if !p.current.hasData {
		p.current = eventBuilder{}
		return Event{}, false
	}

	id := p.current.id
	if !p.current.hasID {
		id = p.lastEventID
	}

	ev := Event{
		ID:    id,
		Event: p.current.event,
		Data:  p.current.data.String(),
		Retry: p.current.retry,
	}
	p.current = eventBuilder{}
	return ev, true
}
