// Package mcpclient provides the high-level MCP operations (initialize,
// ping, list/call tools, list/get prompts, list/read resources) on top of
// any transport-agnostic pkg/protocol.Conn. It plays the same role the
// teacher's pkg/mcp/client package does — one Client type, one method per
// RPC, a cached tool list for argument validation — generalized so it
// works identically whether the Conn is driven by stdio or Streamable
// HTTP underneath.
package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/google/jsonschema-go/jsonschema"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

// RootsHandler answers the server's roots/list requests with the set of
// filesystem (or other URI) roots the client exposes. Registering one with
// HandleRoots does not advertise the roots capability; that comes only from
// the ClientCapabilities passed to New.
type RootsHandler interface {
	ListRoots(ctx context.Context) ([]mcptype.Root, error)
}

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is the MCP client-side RPC surface over one Conn. It is safe for
// concurrent use.
type Client struct {
	conn *protocol.Conn
	info mcptype.Implementation
	caps mcptype.ClientCapabilities

	mu          sync.Mutex
	initialized bool
	server      mcptype.InitializeResult
	tools       map[string]mcptype.Tool
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New wraps conn with the standard MCP client operations. info and caps
// are sent as ClientInfo/capabilities during the lazy initialize handshake
// triggered by the first RPC call.
func New(conn *protocol.Conn, info mcptype.Implementation, caps mcptype.ClientCapabilities) *Client {
	return &Client{conn: conn, info: info, caps: caps}
}

// ServerInfo returns the result of the initialize handshake this Client
// ran, or nil if it ran none: either no call has been made yet, or the Conn
// had already left NotInitialized and init skipped the handshake.
func (c *Client) ServerInfo() *mcptype.InitializeResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized || c.server.ProtocolVersion == "" {
		return nil
	}
	server := c.server
	return &server
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Ping round-trips a ping request, initializing the session first if
// necessary.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.init(ctx); err != nil {
		return err
	}
	_, _, err := c.conn.Call(ctx, mcptype.MethodPing, nil)
	return err
}

// ListTools returns every tool the server advertises, paging through
// nextCursor automatically, and caches them by name for CallTool's
// argument validation.
func (c *Client) ListTools(ctx context.Context) ([]mcptype.Tool, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	var all []mcptype.Tool
	cursor := ""
	for {
		raw, _, err := c.conn.Call(ctx, mcptype.MethodToolsList, mcptype.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		var page mcptype.ListToolsResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Tools...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.mu.Lock()
	c.tools = make(map[string]mcptype.Tool, len(all))
	for _, t := range all {
		c.tools[t.Name] = t
	}
	c.mu.Unlock()

	return all, nil
}

// CallTool invokes a tool by name, validating args against its cached
// input schema first (fetching the tool list if it hasn't been fetched
// yet).
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcptype.CallToolResult, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}
	if err := c.validateArgs(ctx, name, args); err != nil {
		return nil, err
	}

	raw, _, err := c.conn.Call(ctx, mcptype.MethodToolsCall, mcptype.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result mcptype.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrompts returns every prompt the server advertises, paging through
// nextCursor automatically.
func (c *Client) ListPrompts(ctx context.Context) ([]mcptype.Prompt, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	var all []mcptype.Prompt
	cursor := ""
	for {
		raw, _, err := c.conn.Call(ctx, mcptype.MethodPromptsList, mcptype.ListPromptsParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		var page mcptype.ListPromptsResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Prompts...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return all, nil
}

// GetPrompt renders a named prompt template with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcptype.GetPromptResult, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}
	raw, _, err := c.conn.Call(ctx, mcptype.MethodPromptsGet, mcptype.GetPromptParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var result mcptype.GetPromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources returns every resource the server advertises, paging
// through nextCursor automatically.
func (c *Client) ListResources(ctx context.Context) ([]mcptype.Resource, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	var all []mcptype.Resource
	cursor := ""
	for {
		raw, _, err := c.conn.Call(ctx, mcptype.MethodResourcesList, mcptype.ListResourcesParams{Cursor: cursor})
		if err != nil {
			return nil, err
		}
		var page mcptype.ListResourcesResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Resources...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return all, nil
}

// ReadResource fetches the content of a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]mcptype.Content, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}
	raw, _, err := c.conn.Call(ctx, mcptype.MethodResourcesRead, mcptype.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	var result mcptype.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result.Contents, nil
}

// HandleRoots registers h to answer the server's roots/list requests. The
// caller must also set Roots in the ClientCapabilities passed to New, since
// this only wires the handler, not the advertisement.
func (c *Client) HandleRoots(h RootsHandler) {
	c.conn.Handle(mcptype.MethodRootsList, func(ctx context.Context, _ *jsonrpc.Request) (any, error) {
		roots, err := h.ListRoots(ctx)
		if err != nil {
			return nil, err
		}
		return mcptype.ListRootsResult{Roots: roots}, nil
	})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// init performs the initialize handshake exactly once. If conn has already
// left NotInitialized (e.g. a transport like streamablehttp.Client ran its
// own handshake before handing the Conn here), init trusts that and skips
// straight to marking itself initialized rather than double-sending
// initialize over the wire.
func (c *Client) init(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if !c.conn.BeginInitializing() {
		c.mu.Lock()
		c.initialized = true
		c.mu.Unlock()
		return nil
	}

	raw, _, err := c.conn.Call(ctx, mcptype.MethodInitialize, mcptype.InitializeParams{
		ProtocolVersion: mcptype.LatestProtocolVersion,
		Capabilities:    c.caps,
		ClientInfo:      c.info,
	})
	if err != nil {
		return err
	}

	var result mcptype.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	c.conn.SetPeerCapabilities(protocol.ServerCapabilityChecker(result.Capabilities))

	if err := c.conn.Notify(ctx, mcptype.NotificationInitialized, nil); err != nil {
		return err
	}
	c.conn.MarkInitialized()

	c.mu.Lock()
	c.initialized = true
	c.server = result
	c.mu.Unlock()
	return nil
}

// validateArgs checks that name is a known tool and args satisfy its
// input schema, fetching the tool list first if it hasn't been cached.
func (c *Client) validateArgs(ctx context.Context, name string, args map[string]any) error {
	c.mu.Lock()
	cached := c.tools
	c.mu.Unlock()
	if cached == nil {
		if _, err := c.ListTools(ctx); err != nil {
			return fmt.Errorf("fetching tools: %w", err)
		}
		c.mu.Lock()
		cached = c.tools
		c.mu.Unlock()
	}

	tool, ok := cached[name]
	if !ok {
		return mcptype.ErrMethodNotFound(fmt.Sprintf("tool not found: %q", name))
	}
	if tool.InputSchema == nil {
		return nil
	}

	schemaData, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %q: %w", name, err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaData, &schema); err != nil {
		return fmt.Errorf("invalid input schema for tool %q: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %q: %w", name, err)
	}

	var argsValue any = args
	if args == nil {
		argsValue = map[string]any{}
	}
	if err := resolved.Validate(argsValue); err != nil {
		return mcptype.ErrInvalidParams(fmt.Sprintf("argument validation failed: %v", err))
	}
	return nil
}
