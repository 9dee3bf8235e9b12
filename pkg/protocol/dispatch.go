package protocol

import (
	"context"
	"encoding/json"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// INBOUND DISPATCH

// Deliver is called by a Transport once per framed inbound message (which
// may be a single JSON-RPC object or a batch array). It decodes, routes
// each element, and — for requests — sends a response back over the same
// transport. A request handler runs on its own goroutine so a slow tool
// call cannot stall delivery of other messages; a notification handler
// runs inline, before Deliver returns.
func (c *Conn) Deliver(ctx context.Context, data []byte) {
	msgs, err := jsonrpc.DecodeBody(data)
	if err != nil {
		c.sendParseError(ctx, err)
		return
	}

	// A batch mixing "initialize" with any other request is invalid,
	// since initialize must complete (and gate capabilities) before
	// anything else in the same connection is meaningful.
	if len(msgs) > 1 {
		hasInit := false
		for _, m := range msgs {
			if m.Kind() == jsonrpc.KindRequest && m.Method == mcptype.MethodInitialize {
				hasInit = true
			}
		}
		if hasInit {
			c.sendBatchInvalid(ctx, msgs)
			return
		}
	}

	for _, m := range msgs {
		m := m
		switch m.Kind() {
		case jsonrpc.KindResponse:
			c.handleInboundResponse(m.AsResponse())
		case jsonrpc.KindNotification:
			c.handleInboundNotification(ctx, m.AsNotification())
		case jsonrpc.KindRequest:
			go c.handleInboundRequest(ctx, m.AsRequest())
		}
	}
}

func (c *Conn) handleInboundResponse(resp *jsonrpc.Response) {
	if resp.ID.IsZero() {
		return
	}
	c.reg.resolveOutbound(resp.ID, resp)
}

func (c *Conn) handleInboundNotification(ctx context.Context, n *jsonrpc.Notification) {
	if n.Method == mcptype.NotificationCancelled {
		var params mcptype.CancelledParams
		if err := json.Unmarshal(n.Params, &params); err == nil {
			if id := toRequestID(params.RequestID); !id.IsZero() {
				c.reg.cancelInbound(id)
			}
		}
		return
	}

	c.mu.RLock()
	fn, ok := c.notificationHandlers[n.Method]
	c.mu.RUnlock()
	if !ok {
		return
	}
	fn(ctx, n)
}

func (c *Conn) handleInboundRequest(ctx context.Context, req *jsonrpc.Request) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.reg.addInbound(req.ID, cancel)
	defer c.reg.removeInbound(req.ID)

	result, err := c.dispatchOne(reqCtx, req)
	if reqCtx.Err() != nil {
		// Cancelled: per the MCP cancellation contract, no response is sent.
		return
	}

	var resp *jsonrpc.Response
	if err != nil {
		resp = jsonrpc.NewErrorResponse(req.ID, mcptype.ToWireError(err))
	} else {
		raw, merr := json.Marshal(result)
		if merr != nil {
			resp = jsonrpc.NewErrorResponse(req.ID, mcptype.ErrInternal(merr.Error()))
		} else {
			resp = jsonrpc.NewResultResponse(req.ID, raw)
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = c.currentTransport().Send(ctx, data)
}

func (c *Conn) dispatchOne(ctx context.Context, req *jsonrpc.Request) (any, error) {
	if area := mcptype.FeatureAreaOf(req.Method); area != "" {
		if !c.localCaps.HasCapability(area) {
			return nil, mcptype.ErrUnsupportedCapability(area)
		}
	}

	c.mu.RLock()
	fn, ok := c.handlers[req.Method]
	mws := c.middleware
	c.mu.RUnlock()
	if !ok {
		return nil, mcptype.ErrMethodNotFound(req.Method)
	}

	// Wrap innermost-first so the first registered middleware observes the
	// request first and the response last.
	handler := fn
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler(ctx, req)
}

func (c *Conn) sendParseError(ctx context.Context, cause error) {
	resp := jsonrpc.NewErrorResponse(jsonrpc.ID{}, mcptype.ErrParse(cause.Error()))
	if data, err := json.Marshal(resp); err == nil {
		_ = c.currentTransport().Send(ctx, data)
	}
}

func (c *Conn) sendBatchInvalid(ctx context.Context, msgs []*jsonrpc.Message) {
	var responses []*jsonrpc.Response
	for _, m := range msgs {
		if m.Kind() != jsonrpc.KindRequest {
			continue
		}
		responses = append(responses, jsonrpc.NewErrorResponse(
			*m.ID, mcptype.ErrInvalidRequest("initialize cannot be batched with other requests"),
		))
	}
	if data, err := jsonrpc.EncodeResponses(responses); err == nil {
		_ = c.currentTransport().Send(ctx, data)
	}
}

// toRequestID converts the untyped RequestID carried by CancelledParams
// (decoded from JSON as either float64 or string) back into a tagged
// jsonrpc.ID.
func toRequestID(v any) jsonrpc.ID {
	switch t := v.(type) {
	case float64:
		return jsonrpc.NewIntID(int64(t))
	case string:
		return jsonrpc.NewStringID(t)
	default:
		return jsonrpc.ID{}
	}
}
