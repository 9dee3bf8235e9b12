package protocol

import "context"

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Transport is the seam that stdio, Streamable HTTP and any future
// transport implement so that Conn never depends on how bytes actually
// move. A Transport carries one already-framed JSON-RPC message (or batch)
// per Send call; framing (Content-Length delimiting, SSE events, HTTP
// bodies) is the transport's concern, not Conn's.
type Transport interface {
	// Send writes one framed message to the peer. It must be safe to call
	// from multiple goroutines; transports that cannot multiplex writes
	// serialize internally.
	Send(ctx context.Context, data []byte) error

	// Close shuts down the transport. Pending Sends should fail with an
	// error and any blocked Recv loop should return.
	Close() error
}

// Receiver is implemented by Conn and called by a Transport once per
// inbound framed message. Implementations must not block for long since
// most transports read synchronously off a single goroutine.
type Receiver interface {
	Deliver(ctx context.Context, data []byte)
}
