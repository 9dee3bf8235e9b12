// Package mcpsession implements the session registry and per-stream event
// store used by the Streamable HTTP transport to support stateful session
// mode and Last-Event-ID resumability.
package mcpsession

import (
	"context"
	"sort"
	"sync"
	"time"

	uuid "github.com/google/uuid"

	llm "github.com/mutablelogic/go-mcp"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Session is one initialized MCP connection's negotiated state, keyed by
// the mcp-session-id the server handed the client at initialize time.
type Session struct {
	ID                 string
	ProtocolVersion    string
	ClientInfo         mcptype.Implementation
	ClientCapabilities mcptype.ClientCapabilities
	Created            time.Time
	LastSeen           time.Time
}

// Registry holds sessions for a stateful Streamable HTTP server. A
// stateless server never constructs one.
type Registry interface {
	Create(ctx context.Context, clientInfo mcptype.Implementation, caps mcptype.ClientCapabilities, protocolVersion string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

///////////////////////////////////////////////////////////////////////////////
// MEMORY REGISTRY

// MemoryRegistry is an in-memory Registry. It is safe for concurrent use.
type MemoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Registry = (*MemoryRegistry)(nil)

// NewMemoryRegistry creates a new empty in-memory session registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{sessions: make(map[string]*Session)}
}

func (r *MemoryRegistry) Create(_ context.Context, clientInfo mcptype.Implementation, caps mcptype.ClientCapabilities, protocolVersion string) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:                 uuid.New().String(),
		ProtocolVersion:    protocolVersion,
		ClientInfo:         clientInfo,
		ClientCapabilities: caps,
		Created:            now,
		LastSeen:           now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s, nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, llm.ErrNotFound.Withf("session %q", id)
	}
	return s, nil
}

func (r *MemoryRegistry) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return llm.ErrNotFound.Withf("session %q", id)
	}
	s.LastSeen = time.Now()
	return nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return llm.ErrNotFound.Withf("session %q", id)
	}
	delete(r.sessions, id)
	return nil
}

// List returns every live session, most recently seen first. Mainly useful
// for diagnostics and tests.
func (r *MemoryRegistry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}
