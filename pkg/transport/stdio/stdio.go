// Package stdio implements the MCP stdio transport: JSON-RPC messages
// framed with an LSP-style `Content-Length: <n>\r\n\r\n` header followed by
// n bytes of UTF-8 JSON, over a pair of byte streams (normally os.Stdin and
// os.Stdout).
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	errgroup "golang.org/x/sync/errgroup"
	semaphore "golang.org/x/sync/semaphore"

	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const contentLengthHeader = "Content-Length"

// maxConcurrentMessages bounds how many inbound frames Run dispatches to
// recv.Deliver at once, so a fast peer can't pile up unbounded goroutines.
const maxConcurrentMessages = 64

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport implements protocol.Transport over a reader/writer pair. Writes
// are serialized through a channel so that concurrent handler goroutines
// never interleave partial frames on the wire.
type Transport struct {
	writerCh chan []byte
	done     chan struct{}
	closeMu  sync.Mutex
	closed   bool
}

var _ protocol.Transport = (*Transport)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New starts the writer goroutine and returns a Transport ready to be
// passed to protocol.New. Run must be called separately to drive the
// read loop (it blocks, so callers typically run it in the foreground of
// a cmd/ main).
func New(w io.Writer) *Transport {
	t := &Transport{
		writerCh: make(chan []byte),
		done:     make(chan struct{}),
	}
	go t.writeLoop(w)
	return t
}

func (t *Transport) writeLoop(w io.Writer) {
	writer := bufio.NewWriter(w)
	for {
		select {
		case data, ok := <-t.writerCh:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(writer, "%s: %d\r\n\r\n", contentLengthHeader, len(data)); err != nil {
				fmt.Fprintln(os.Stderr, "stdio transport: write error:", err)
				continue
			}
			if _, err := writer.Write(data); err != nil {
				fmt.Fprintln(os.Stderr, "stdio transport: write error:", err)
				continue
			}
			if err := writer.Flush(); err != nil {
				fmt.Fprintln(os.Stderr, "stdio transport: flush error:", err)
			}
		case <-t.done:
			return
		}
	}
}

///////////////////////////////////////////////////////////////////////////////
// PROTOCOL.TRANSPORT

// Send queues data to be written as one Content-Length-framed message. It
// never blocks on I/O itself; ctx cancellation only applies to the
// queueing, not the flush.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	select {
	case <-t.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case t.writerCh <- data:
		return nil
	case <-t.done:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer goroutine. It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// READ LOOP

// Run reads Content-Length-framed messages from r until ctx is done or r
// reaches EOF, delivering each to recv. It runs in the foreground and
// returns when the stream ends or the context is cancelled; callers
// typically wrap it with signal.NotifyContext for graceful shutdown.
func Run(ctx context.Context, r io.Reader, recv protocol.Receiver) error {
	reader := bufio.NewReaderSize(r, 64*1024)

	group, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxConcurrentMessages)
	defer group.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		length, err := readHeaders(reader)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(reader, data); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		group.Go(func() error {
			defer sem.Release(1)
			recv.Deliver(groupCtx, data)
			return nil
		})
	}
}

// readHeaders reads one block of "Name: value\r\n" header lines terminated
// by a blank line, and returns the parsed Content-Length. Header names are
// matched case-insensitively; any header besides Content-Length is ignored.
func readHeaders(reader *bufio.Reader) (int, error) {
	length := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if length < 0 {
				return 0, fmt.Errorf("stdio transport: missing %s header", contentLengthHeader)
			}
			return length, nil
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(name), contentLengthHeader) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("stdio transport: invalid %s header: %w", contentLengthHeader, err)
		}
		length = n
	}
}
