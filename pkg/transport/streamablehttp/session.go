package streamablehttp

import (
	"context"
	"encoding/json"
	"sync"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcpsession "github.com/mutablelogic/go-mcp/pkg/mcpsession"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
	sse "github.com/mutablelogic/go-mcp/pkg/sse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// sessionState is one stateful session's long-lived Conn plus the registry
// entry it was created from. A session outlives any single POST or GET: the
// same Conn (and therefore the same capability negotiation and lifecycle
// state) answers every request carrying its Mcp-Session-Id.
type sessionState struct {
	// mu serializes POST handling for this session so that a second POST
	// can't steal responses meant for one still in flight on the router.
	mu      sync.Mutex
	session *mcpsession.Session
	conn    *protocol.Conn
	router  *sessionRouter
}

// sessionRouter implements protocol.Transport for one session (or one
// stateless request). It is the seam that lets a single long-lived Conn
// answer whichever HTTP response or SSE stream is currently servicing it:
// a reply to a request a POST is still waiting on goes to that POST's
// collector channel; anything else (a late reply, a server-initiated
// request or notification) goes to the active GET stream if one is open,
// and otherwise to the event store for a future GET to replay.
type sessionRouter struct {
	mu         sync.Mutex
	pending    map[any]chan []byte
	sseWriter  *sse.Writer
	eventStore mcpsession.EventStore
	streamID   string

	closeOnce sync.Once
	closeCh   chan struct{}
}

var _ protocol.Transport = (*sessionRouter)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func newSessionRouter(streamID string, store mcpsession.EventStore) *sessionRouter {
	return &sessionRouter{
		pending:    make(map[any]chan []byte),
		eventStore: store,
		streamID:   streamID,
		closeCh:    make(chan struct{}),
	}
}

///////////////////////////////////////////////////////////////////////////////
// PROTOCOL.TRANSPORT

func (r *sessionRouter) Send(ctx context.Context, data []byte) error {
	var probe struct {
		ID *jsonrpc.ID `json:"id"`
	}
	_ = json.Unmarshal(data, &probe)

	r.mu.Lock()
	var ch chan []byte
	if probe.ID != nil {
		ch = r.pending[probe.ID.Key()]
	}
	writer := r.sseWriter
	r.mu.Unlock()

	if ch != nil {
		select {
		case ch <- data:
		default:
			// Collector already gave up (request context cancelled); drop.
		}
		return nil
	}

	if writer != nil {
		id := r.append(ctx, data)
		return writer.WriteEvent(sse.Event{ID: id, Event: "message", Data: string(data)})
	}

	r.append(ctx, data)
	return nil
}

func (r *sessionRouter) Close() error {
	r.abort()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// COLLECTOR REGISTRATION

// register arranges for the next reply matching id to be delivered to ch
// instead of the active GET stream (or the event store).
func (r *sessionRouter) register(id jsonrpc.ID, ch chan []byte) {
	r.mu.Lock()
	r.pending[id.Key()] = ch
	r.mu.Unlock()
}

func (r *sessionRouter) unregister(id jsonrpc.ID) {
	r.mu.Lock()
	delete(r.pending, id.Key())
	r.mu.Unlock()
}

///////////////////////////////////////////////////////////////////////////////
// GET STREAM

// attachSSE installs w as the session's live stream, failing with false if
// one is already attached (concurrent GET is rejected with 409 by the
// caller).
func (r *sessionRouter) attachSSE(w *sse.Writer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sseWriter != nil {
		return false
	}
	r.sseWriter = w
	return true
}

func (r *sessionRouter) detachSSE() {
	r.mu.Lock()
	r.sseWriter = nil
	r.mu.Unlock()
}

// abort signals any blocked GET handler to return, used when a session is
// deleted out from under it.
func (r *sessionRouter) abort() {
	r.closeOnce.Do(func() { close(r.closeCh) })
}

func (r *sessionRouter) append(ctx context.Context, data []byte) string {
	if r.eventStore == nil {
		return ""
	}
	id, err := r.eventStore.Append(ctx, r.streamID, string(data))
	if err != nil {
		return ""
	}
	return id
}
