package protocol

import (
	"sync"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// pendingCall tracks a request this side sent to the peer and is waiting
// on a response for.
type pendingCall struct {
	resultCh chan *jsonrpc.Response
}

// inboundCall tracks a request the peer sent to us that is currently being
// handled, so that a notifications/cancelled can reach its context.
type inboundCall struct {
	cancel func()
}

// registry is the outstanding-request table, keyed by the tag-preserving
// jsonrpc.ID.Key() so that an integer id 1 and a string id "1" never
// collide. One registry instance serves both directions of a Conn.
type registry struct {
	mu       sync.Mutex
	outbound map[any]*pendingCall
	inbound  map[any]*inboundCall
}

func newRegistry() *registry {
	return &registry{
		outbound: make(map[any]*pendingCall),
		inbound:  make(map[any]*inboundCall),
	}
}

///////////////////////////////////////////////////////////////////////////////
// OUTBOUND (this side is the caller)

func (r *registry) addOutbound(id jsonrpc.ID) chan *jsonrpc.Response {
	ch := make(chan *jsonrpc.Response, 1)
	r.mu.Lock()
	r.outbound[id.Key()] = &pendingCall{resultCh: ch}
	r.mu.Unlock()
	return ch
}

func (r *registry) resolveOutbound(id jsonrpc.ID, resp *jsonrpc.Response) bool {
	r.mu.Lock()
	call, ok := r.outbound[id.Key()]
	if ok {
		delete(r.outbound, id.Key())
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	call.resultCh <- resp
	return true
}

func (r *registry) removeOutbound(id jsonrpc.ID) {
	r.mu.Lock()
	delete(r.outbound, id.Key())
	r.mu.Unlock()
}

// failAllOutbound resolves every still-pending outbound call with a
// synthetic error response; used when the transport dies.
func (r *registry) failAllOutbound(mkErr func() *jsonrpc.Error) {
	r.mu.Lock()
	calls := make([]*pendingCall, 0, len(r.outbound))
	for k, c := range r.outbound {
		calls = append(calls, c)
		delete(r.outbound, k)
	}
	r.mu.Unlock()
	for _, c := range calls {
		c.resultCh <- &jsonrpc.Response{Version: jsonrpc.Version, Error: mkErr()}
	}
}

///////////////////////////////////////////////////////////////////////////////
// INBOUND (peer is the caller, we are handling it)

func (r *registry) addInbound(id jsonrpc.ID, cancel func()) {
	r.mu.Lock()
	r.inbound[id.Key()] = &inboundCall{cancel: cancel}
	r.mu.Unlock()
}

func (r *registry) removeInbound(id jsonrpc.ID) {
	r.mu.Lock()
	delete(r.inbound, id.Key())
	r.mu.Unlock()
}

// cancelInbound looks up an in-flight inbound call by id and cancels its
// context. It reports whether a call was found; a miss is not an error
// since the call may have already completed.
func (r *registry) cancelInbound(id jsonrpc.ID) bool {
	r.mu.Lock()
	call, ok := r.inbound[id.Key()]
	r.mu.Unlock()
	if !ok {
		return false
	}
	call.cancel()
	return true
}
