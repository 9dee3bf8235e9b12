package protocol_test

import (
	"context"

	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

// pipeTransport connects two Conns in-process without any actual I/O, for
// exercising dispatch, capability gating and cancellation in tests.
type pipeTransport struct {
	peer   protocol.Receiver
	closed bool
}

func (t *pipeTransport) Send(ctx context.Context, data []byte) error {
	if t.closed {
		return context.Canceled
	}
	cp := append([]byte(nil), data...)
	t.peer.Deliver(ctx, cp)
	return nil
}

func (t *pipeTransport) Close() error {
	t.closed = true
	return nil
}

// newPipe returns two Conns wired directly to each other.
func newPipe(aCaps, bCaps protocol.CapabilityChecker) (a, b *protocol.Conn) {
	at := &pipeTransport{}
	bt := &pipeTransport{}
	a = protocol.New(at, aCaps)
	b = protocol.New(bt, bCaps)
	at.peer = b
	bt.peer = a
	return a, b
}
