package mcpserver

import (
	"context"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// CompletionHandler answers completion/complete requests: given what a
// prompt argument or resource template argument refers to, and the value
// typed so far, it returns ranked suggestions.
type CompletionHandler interface {
	Complete(ctx context.Context, ref mcptype.CompletionReference, arg mcptype.CompletionArgument) (mcptype.CompletionValues, error)
}

///////////////////////////////////////////////////////////////////////////////
// HANDLERS

func (server *Server) handleCompletionComplete(ctx context.Context, req *jsonrpc.Request) (any, error) {
	server.mu.RLock()
	handler := server.completion
	server.mu.RUnlock()
	if handler == nil {
		return nil, mcptype.ErrMethodNotFound(mcptype.MethodCompletionComplete)
	}

	var params mcptype.CompleteParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, mcptype.ErrInvalidParams(err.Error())
	}

	values, err := handler.Complete(ctx, params.Ref, params.Argument)
	if err != nil {
		return nil, err
	}
	return mcptype.CompleteResult{Completion: values}, nil
}
