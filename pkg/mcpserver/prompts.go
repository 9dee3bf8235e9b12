package mcpserver

import (
	"context"
	"sort"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLERS

func (server *Server) handlePromptsList(_ context.Context, req *jsonrpc.Request) (any, error) {
	server.mu.RLock()
	defer server.mu.RUnlock()

	names := make([]string, 0, len(server.prompts))
	for name := range server.prompts {
		names = append(names, name)
	}
	sort.Strings(names)

	prompts := make([]mcptype.Prompt, 0, len(names))
	for _, name := range names {
		p := server.prompts[name]
		prompts = append(prompts, mcptype.Prompt{
			Name:        name,
			Description: p.Description(),
			Arguments:   p.Arguments(),
		})
	}

	return mcptype.ListPromptsResult{Prompts: prompts}, nil
}

func (server *Server) handlePromptsGet(ctx context.Context, req *jsonrpc.Request) (any, error) {
	var params mcptype.GetPromptParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, mcptype.ErrInvalidParams(err.Error())
	}
	if params.Name == "" {
		return nil, mcptype.ErrInvalidParams("prompt name is required")
	}

	server.mu.RLock()
	prompt, ok := server.prompts[params.Name]
	server.mu.RUnlock()
	if !ok {
		return nil, mcptype.ErrMethodNotFound("prompts/get: " + params.Name)
	}

	for _, arg := range prompt.Arguments() {
		if arg.Required {
			if _, ok := params.Arguments[arg.Name]; !ok {
				return nil, mcptype.ErrInvalidParams("missing required argument: " + arg.Name)
			}
		}
	}

	return prompt.Render(ctx, params.Arguments)
}
