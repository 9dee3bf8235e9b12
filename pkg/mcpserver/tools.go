package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLERS

func (server *Server) handleToolsList(_ context.Context, req *jsonrpc.Request) (any, error) {
	server.mu.RLock()
	defer server.mu.RUnlock()

	names := make([]string, 0, len(server.tools))
	for name := range server.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]mcptype.Tool, 0, len(names))
	for _, name := range names {
		t := server.tools[name]
		schema, err := t.Schema()
		if err != nil {
			return nil, mcptype.ErrInternal(fmt.Sprintf("tool %q: invalid schema: %v", name, err))
		}
		tools = append(tools, mcptype.Tool{
			Name:        name,
			Description: t.Description(),
			InputSchema: schema,
		})
	}

	return mcptype.ListToolsResult{Tools: tools}, nil
}

func (server *Server) handleToolsCall(ctx context.Context, req *jsonrpc.Request) (any, error) {
	var params mcptype.CallToolParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, mcptype.ErrInvalidParams(err.Error())
	}
	if params.Name == "" {
		return nil, mcptype.ErrInvalidParams("tool name is required")
	}

	server.mu.RLock()
	tool, ok := server.tools[params.Name]
	server.mu.RUnlock()
	if !ok {
		return nil, mcptype.ErrMethodNotFound("tools/call: " + params.Name)
	}

	if err := validateToolArgs(tool, params.Arguments); err != nil {
		return nil, err
	}

	result, err := tool.Call(ctx, params.Arguments)
	if err != nil {
		// A tool execution failure is reported as a successful JSON-RPC
		// response carrying isError, not a protocol-level error, so the
		// model sees the failure as content it can react to.
		return mcptype.CallToolResult{
			Content: []mcptype.Content{mcptype.NewTextContent(err.Error())},
			IsError: true,
		}, nil
	}
	return result, nil
}

// validateToolArgs validates args against the tool's declared schema, the
// same way the teacher's client-side validateToolCall does before sending
// a tools/call — here run server-side before Call executes.
func validateToolArgs(tool ToolHandler, args map[string]any) error {
	schema, err := tool.Schema()
	if err != nil {
		return mcptype.ErrInternal(fmt.Sprintf("invalid input schema for tool %q: %v", tool.Name(), err))
	}
	if schema == nil {
		return nil
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return mcptype.ErrInternal(fmt.Sprintf("invalid input schema for tool %q: %v", tool.Name(), err))
	}

	var value any = map[string]any{}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return mcptype.ErrInvalidParams(err.Error())
		}
		if err := json.Unmarshal(data, &value); err != nil {
			return mcptype.ErrInvalidParams(err.Error())
		}
	}

	if err := resolved.Validate(value); err != nil {
		return mcptype.ErrInvalidParams(fmt.Sprintf("argument validation failed: %v", err))
	}
	return nil
}
