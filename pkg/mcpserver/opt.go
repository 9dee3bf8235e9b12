package mcpserver

import (
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt configures a Server at construction time.
type Opt func(*Server) error

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func (server *Server) apply(opts ...Opt) error {
	for _, opt := range opts {
		if err := opt(server); err != nil {
			return err
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithInstructions sets the free-text instructions returned in the
// initialize result, telling the client how to use this server.
func WithInstructions(text string) Opt {
	return func(server *Server) error {
		server.instructions = text
		return nil
	}
}

// WithTools registers tool handlers at construction time; equivalent to
// calling RegisterTool after New.
func WithTools(tools ...ToolHandler) Opt {
	return func(server *Server) error {
		for _, t := range tools {
			if err := server.RegisterTool(t); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithResources registers resource handlers at construction time.
func WithResources(resources ...ResourceHandler) Opt {
	return func(server *Server) error {
		for _, r := range resources {
			if err := server.RegisterResource(r); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithPrompts registers prompt handlers at construction time.
func WithPrompts(prompts ...PromptHandler) Opt {
	return func(server *Server) error {
		for _, p := range prompts {
			if err := server.RegisterPrompt(p); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithMinLogLevel sets the initial minimum log level a client can observe
// via notifications/message before it issues logging/setLevel itself.
func WithMinLogLevel(level mcptype.LogLevel) Opt {
	return func(server *Server) error {
		server.minLogLevel = level
		return nil
	}
}

// WithAuthHandler sets the AuthHandler consulted by the transport before a
// request reaches this server. Leaving it unset means no authentication.
func WithAuthHandler(handler AuthHandler) Opt {
	return func(server *Server) error {
		server.auth = handler
		return nil
	}
}

// WithCompletionHandler registers the handler that answers
// completion/complete, and advertises the completions capability.
func WithCompletionHandler(handler CompletionHandler) Opt {
	return func(server *Server) error {
		server.completion = handler
		return nil
	}
}
