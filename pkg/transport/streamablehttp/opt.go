package streamablehttp

import (
	mcpsession "github.com/mutablelogic/go-mcp/pkg/mcpsession"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Opt configures a Server at construction time.
type Opt func(*config) error

type config struct {
	sessionIDGenerator   func() string
	registry             mcpsession.Registry
	eventStore           mcpsession.EventStore
	jsonResponse         bool
	onSessionInitialized func(sessionID string)
	onSessionClosed      func(sessionID string)
	maxConcurrentStreams int64
}

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithStateless disables session tracking: every POST (including repeated
// initialize calls) is handled independently, no Mcp-Session-Id is ever
// issued, and GET/DELETE both answer 405.
func WithStateless() Opt {
	return func(c *config) error {
		c.sessionIDGenerator = nil
		return nil
	}
}

// WithSessionIDGenerator puts the server in stateful mode. fn is kept for
// parity with WithStateless as the toggle that's set/cleared, but the
// session id actually handed to clients always comes from whatever
// Registry.Create mints (see WithRegistry); fn only needs to be non-nil.
func WithSessionIDGenerator(fn func() string) Opt {
	return func(c *config) error {
		c.sessionIDGenerator = fn
		return nil
	}
}

// WithRegistry overrides the session registry used in stateful mode. The
// default is an in-memory mcpsession.MemoryRegistry.
func WithRegistry(r mcpsession.Registry) Opt {
	return func(c *config) error {
		c.registry = r
		return nil
	}
}

// WithEventStore enables Last-Event-ID resumability on the GET stream and on
// POST responses sent as SSE. Without one, a dropped stream loses whatever
// was in flight.
func WithEventStore(s mcpsession.EventStore) Opt {
	return func(c *config) error {
		c.eventStore = s
		return nil
	}
}

// WithJSONResponse controls whether a POST response (other than an
// all-notifications batch, which is always a bare 202) comes back as a
// single application/json body (the default) or as a text/event-stream
// stream of "message" events. Pass false to force SSE, e.g. to exercise
// Last-Event-Id resumability on POST responses too.
func WithJSONResponse(enabled bool) Opt {
	return func(c *config) error {
		c.jsonResponse = enabled
		return nil
	}
}

// WithOnSessionInitialized registers a hook run after a stateful initialize
// successfully creates a session.
func WithOnSessionInitialized(fn func(sessionID string)) Opt {
	return func(c *config) error {
		c.onSessionInitialized = fn
		return nil
	}
}

// WithOnSessionClosed registers a hook run after DELETE tears a session down.
func WithOnSessionClosed(fn func(sessionID string)) Opt {
	return func(c *config) error {
		c.onSessionClosed = fn
		return nil
	}
}

// WithMaxConcurrentStreams bounds how many GET SSE streams this Server
// services at once across all sessions, rejecting further connects with
// 503 until one closes. n <= 0 means unbounded (the default).
func WithMaxConcurrentStreams(n int64) Opt {
	return func(c *config) error {
		c.maxConcurrentStreams = n
		return nil
	}
}
