// Package mcpserver builds an MCP server: handler registries for tools,
// resources and prompts, wired onto a pkg/protocol.Conn's method
// dispatcher. It plays the same role the teacher's pkg/mcp.Server does —
// name/version identity, a HandlerFunc-style registry guarded by a mutex —
// generalized to the full MCP method set and backed by a transport-
// agnostic Conn instead of a stdio-only loop.
package mcpserver

import (
	"context"
	"sync"

	jsonschema "github.com/google/jsonschema-go/jsonschema"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ToolHandler is one callable tool. Schema may return nil to advertise a
// tool that accepts arbitrary arguments; otherwise Call's args are
// validated against it before Call runs.
type ToolHandler interface {
	Name() string
	Description() string
	Schema() (*jsonschema.Schema, error)
	Call(ctx context.Context, args map[string]any) (mcptype.CallToolResult, error)
}

// ResourceHandler serves one resource, identified by a fixed URI.
type ResourceHandler interface {
	URI() string
	Name() string
	Description() string
	MimeType() string
	Read(ctx context.Context) ([]mcptype.Content, error)
}

// PromptHandler serves one named prompt template.
type PromptHandler interface {
	Name() string
	Description() string
	Arguments() []mcptype.PromptArgument
	Render(ctx context.Context, args map[string]string) (mcptype.GetPromptResult, error)
}

// Server holds the handler registries and identity for one MCP server. A
// Server is bound to a Conn per incoming connection via Bind; the same
// Server can back many concurrent sessions.
type Server struct {
	name         string
	version      string
	instructions string
	minLogLevel  mcptype.LogLevel
	auth         AuthHandler
	completion   CompletionHandler

	mu        sync.RWMutex
	tools     map[string]ToolHandler
	resources map[string]ResourceHandler
	prompts   map[string]PromptHandler
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New creates a Server with the given name and version, applying opts.
func New(name, version string, opts ...Opt) (*Server, error) {
	server := &Server{
		name:        name,
		version:     version,
		minLogLevel: mcptype.LogLevelInfo,
		tools:       make(map[string]ToolHandler),
		resources:   make(map[string]ResourceHandler),
		prompts:     make(map[string]PromptHandler),
	}
	if err := server.apply(opts...); err != nil {
		return nil, err
	}
	return server, nil
}

///////////////////////////////////////////////////////////////////////////////
// REGISTRATION

// RegisterTool adds a tool, failing if its name is already registered.
func (server *Server) RegisterTool(t ToolHandler) error {
	if t == nil || t.Name() == "" {
		return mcptype.ErrInvalidParams("tool must have a non-empty name")
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if _, exists := server.tools[t.Name()]; exists {
		return mcptype.ErrInvalidParams("tool already registered: " + t.Name())
	}
	server.tools[t.Name()] = t
	return nil
}

// RegisterResource adds a resource, failing if its URI is already registered.
func (server *Server) RegisterResource(r ResourceHandler) error {
	if r == nil || r.URI() == "" {
		return mcptype.ErrInvalidParams("resource must have a non-empty uri")
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if _, exists := server.resources[r.URI()]; exists {
		return mcptype.ErrInvalidParams("resource already registered: " + r.URI())
	}
	server.resources[r.URI()] = r
	return nil
}

// RegisterPrompt adds a prompt, failing if its name is already registered.
func (server *Server) RegisterPrompt(p PromptHandler) error {
	if p == nil || p.Name() == "" {
		return mcptype.ErrInvalidParams("prompt must have a non-empty name")
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if _, exists := server.prompts[p.Name()]; exists {
		return mcptype.ErrInvalidParams("prompt already registered: " + p.Name())
	}
	server.prompts[p.Name()] = p
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// CAPABILITIES

// Capabilities returns the ServerCapabilities this server advertises,
// derived from which registries are non-empty. A tool/resource/prompt
// added after initialize still needs the corresponding list_changed
// notification — the registry allows it regardless of whether the initial
// advertisement included it.
func (server *Server) Capabilities() mcptype.ServerCapabilities {
	server.mu.RLock()
	defer server.mu.RUnlock()

	caps := mcptype.ServerCapabilities{
		Logging: &mcptype.Feature{},
	}
	if server.completion != nil {
		caps.Completions = &mcptype.Feature{}
	}
	if len(server.tools) > 0 {
		caps.Tools = &mcptype.Feature{ListChanged: true}
	}
	if len(server.resources) > 0 {
		caps.Resources = &mcptype.Feature{ListChanged: true}
	}
	if len(server.prompts) > 0 {
		caps.Prompts = &mcptype.Feature{ListChanged: true}
	}
	return caps
}

///////////////////////////////////////////////////////////////////////////////
// BIND

// Bind registers this server's standard method handlers on conn. Call it
// once per new connection, right after constructing the Conn for a fresh
// transport/session.
func (server *Server) Bind(conn *protocol.Conn) {
	conn.Handle(mcptype.MethodInitialize, func(ctx context.Context, req *jsonrpc.Request) (any, error) {
		conn.BeginInitializing()
		result, err := server.handleInitialize(ctx, req)
		if err == nil {
			conn.MarkInitialized()
		}
		return result, err
	})
	conn.Handle(mcptype.MethodPing, server.handlePing)
	conn.HandleNotification(mcptype.NotificationInitialized, func(context.Context, *jsonrpc.Notification) {})

	conn.Handle(mcptype.MethodToolsList, server.handleToolsList)
	conn.Handle(mcptype.MethodToolsCall, server.handleToolsCall)
	conn.Handle(mcptype.MethodResourcesList, server.handleResourcesList)
	conn.Handle(mcptype.MethodResourcesRead, server.handleResourcesRead)
	conn.Handle(mcptype.MethodPromptsList, server.handlePromptsList)
	conn.Handle(mcptype.MethodPromptsGet, server.handlePromptsGet)
	conn.Handle(mcptype.MethodLoggingSetLevel, server.handleSetLevel)
	conn.Handle(mcptype.MethodCompletionComplete, server.handleCompletionComplete)
}

func (server *Server) handlePing(context.Context, *jsonrpc.Request) (any, error) {
	return struct{}{}, nil
}

func (server *Server) handleInitialize(_ context.Context, req *jsonrpc.Request) (any, error) {
	var params mcptype.InitializeParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, mcptype.ErrInvalidParams(err.Error())
	}

	version := params.ProtocolVersion
	if !supportedVersion(version) {
		version = mcptype.LatestProtocolVersion
	}

	return mcptype.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    server.Capabilities(),
		ServerInfo:      mcptype.Implementation{Name: server.name, Version: server.version},
		Instructions:    server.instructions,
	}, nil
}

func (server *Server) handleSetLevel(_ context.Context, req *jsonrpc.Request) (any, error) {
	var params mcptype.SetLevelParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, mcptype.ErrInvalidParams(err.Error())
	}
	server.mu.Lock()
	server.minLogLevel = params.Level
	server.mu.Unlock()
	return struct{}{}, nil
}

func supportedVersion(v string) bool {
	for _, sv := range mcptype.SupportedProtocolVersions {
		if sv == v {
			return true
		}
	}
	return false
}
