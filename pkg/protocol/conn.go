// Package protocol implements the transport-agnostic core of the MCP
// runtime: request/response/notification dispatch, capability gating,
// cancellation and the connection lifecycle. It never touches a socket or
// stdin/stdout directly — a Transport does that — so the same Conn drives
// a stdio session, a Streamable HTTP session, or a test in-memory pipe.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// RequestHandler answers one JSON-RPC request. Returning an error is
// equivalent to returning mcptype.ToWireError(err) as the response error.
// ctx is cancelled if the peer sends notifications/cancelled for this
// request's id or if the Conn is shut down. The Conn applies no
// per-request timeout of its own.
type RequestHandler func(ctx context.Context, req *jsonrpc.Request) (any, error)

// NotificationHandler handles one JSON-RPC notification. It returns
// nothing, since notifications never produce a response.
type NotificationHandler func(ctx context.Context, n *jsonrpc.Notification)

// Middleware wraps a RequestHandler, e.g. for logging, auth, or metrics.
type Middleware func(RequestHandler) RequestHandler

// Conn is one MCP connection: a method dispatcher bound to a Transport. A
// Conn is used both for a server driving a single client session and for
// a client driving its one server session — the roles differ only in
// which capability checker and which handler registries are installed.
type Conn struct {
	transport atomic.Pointer[Transport]

	mu                   sync.RWMutex
	handlers             map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler
	middleware           []Middleware

	localCaps CapabilityChecker
	peerCaps  atomic.Pointer[CapabilityChecker]

	state      stateHolder
	reg        *registry
	nextID     atomic.Int64
	onClose    func(error)
	closeOnce  sync.Once
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a Conn bound to transport. localCaps gates which feature
// areas this side will dispatch inbound requests for; it is typically
// ServerCapabilityChecker or ClientCapabilityChecker built from whatever
// capabilities this side advertises during initialize.
func New(transport Transport, localCaps CapabilityChecker) *Conn {
	c := &Conn{
		handlers:             make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
		localCaps:            localCaps,
		reg:                  newRegistry(),
	}
	c.transport.Store(&transport)
	var peer CapabilityChecker = alwaysChecker{}
	c.peerCaps.Store(&peer)
	return c
}

// OnClose registers a callback invoked exactly once, when Shutdown first
// runs, with the error returned by closing the transport.
func (c *Conn) OnClose(fn func(error)) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// SetPeerCapabilities installs the capability checker used to gate
// outbound requests, normally populated from the result of initialize (for
// a client) or the initialize params (for a server).
func (c *Conn) SetPeerCapabilities(checker CapabilityChecker) {
	c.peerCaps.Store(&checker)
}

// SetTransport swaps the Transport frames are sent over. The Streamable
// HTTP transport uses this to repoint a long-lived, stateful Conn at
// whichever HTTP response (or SSE stream) is currently servicing it,
// without losing the Conn's lifecycle state or outstanding calls.
func (c *Conn) SetTransport(t Transport) {
	c.transport.Store(&t)
}

// currentTransport returns the Transport in effect right now.
func (c *Conn) currentTransport() Transport {
	return *c.transport.Load()
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return c.state.get()
}

// BeginInitializing transitions NotInitialized -> Initializing. It reports
// false if the connection was already past NotInitialized.
func (c *Conn) BeginInitializing() bool {
	return c.state.transition(NotInitialized, Initializing)
}

// MarkInitialized transitions Initializing -> Initialized.
func (c *Conn) MarkInitialized() bool {
	return c.state.transition(Initializing, Initialized)
}

// Shutdown marks the connection as shutting down and then shut down,
// failing every outstanding outbound call and closing the transport.
func (c *Conn) Shutdown() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.forceTo(ShuttingDown)
		c.reg.mu.Lock()
		for _, call := range c.reg.inbound {
			call.cancel()
		}
		c.reg.mu.Unlock()
		c.reg.failAllOutbound(func() *jsonrpc.Error {
			return mcptype.ErrInternal("connection shut down")
		})
		err = c.currentTransport().Close()
		c.state.forceTo(Shutdown)
		c.mu.RLock()
		onClose := c.onClose
		c.mu.RUnlock()
		if onClose != nil {
			onClose(err)
		}
	})
	return err
}

///////////////////////////////////////////////////////////////////////////////
// REGISTRATION

// Handle registers fn as the handler for method. Passing a nil fn removes
// any existing registration.
func (c *Conn) Handle(method string, fn RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.handlers, method)
	} else {
		c.handlers[method] = fn
	}
}

// HandleNotification registers fn as the handler for a notification method.
func (c *Conn) HandleNotification(method string, fn NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.notificationHandlers, method)
	} else {
		c.notificationHandlers[method] = fn
	}
}

// Use appends middleware to the chain applied to every inbound request, in
// the order registered (the first Use call wraps outermost).
func (c *Conn) Use(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw...)
}

///////////////////////////////////////////////////////////////////////////////
// OUTBOUND

// Call sends a request and blocks until a response arrives, ctx is done,
// or the connection shuts down. The returned jsonrpc.ID can be used with
// Cancel to ask the peer to abandon the call.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, jsonrpc.ID, error) {
	if area := mcptype.FeatureAreaOf(method); area != "" {
		checker := *c.peerCaps.Load()
		if !checker.HasCapability(area) {
			return nil, jsonrpc.ID{}, mcptype.ErrUnsupportedCapability(area)
		}
	}

	raw, err := encodeParams(params)
	if err != nil {
		return nil, jsonrpc.ID{}, err
	}

	id := jsonrpc.NewIntID(c.nextID.Add(1))
	req := jsonrpc.NewRequest(id, method, raw)
	data, err := json.Marshal(req)
	if err != nil {
		return nil, jsonrpc.ID{}, err
	}

	resultCh := c.reg.addOutbound(id)
	if err := c.currentTransport().Send(ctx, data); err != nil {
		c.reg.removeOutbound(id)
		return nil, id, &mcptype.TransportError{Err: err}
	}

	select {
	case resp := <-resultCh:
		if resp.Error != nil {
			return nil, id, resp.Error
		}
		return resp.Result, id, nil
	case <-ctx.Done():
		c.reg.removeOutbound(id)
		return nil, id, ctx.Err()
	}
}

// Notify sends a one-way notification; there is no response to wait for.
func (c *Conn) Notify(ctx context.Context, method string, params any) error {
	raw, err := encodeParams(params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(jsonrpc.NewNotification(method, raw))
	if err != nil {
		return err
	}
	return c.currentTransport().Send(ctx, data)
}

// Cancel asks the peer to abandon the outstanding request identified by
// id, by sending a notifications/cancelled notification. It does not wait
// for acknowledgement since cancellation is best-effort.
func (c *Conn) Cancel(ctx context.Context, id jsonrpc.ID, reason string) error {
	var reqID any
	if n, ok := id.Int(); ok {
		reqID = n
	} else if s, ok := id.String(); ok {
		reqID = s
	}
	return c.Notify(ctx, mcptype.NotificationCancelled, mcptype.CancelledParams{RequestID: reqID, Reason: reason})
}

func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}
