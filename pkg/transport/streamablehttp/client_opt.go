package streamablehttp

import (
	client "github.com/mutablelogic/go-client"
	oauth2 "golang.org/x/oauth2"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// ClientOpt configures a Client at construction time.
type ClientOpt func(*clientConfig) error

type clientConfig struct {
	extraHeaders      map[string]string
	sessionID         string
	jsonOnly          bool
	onResumptionToken func(eventID string)
	token             client.Token
	tokenSource       oauth2.TokenSource
	httpOpts          []client.ClientOpt
}

///////////////////////////////////////////////////////////////////////////////
// OPTIONS

// WithExtraHeader adds a fixed header sent with every request, e.g. a
// tenant or trace id the deployment wants on every call.
func WithExtraHeader(key, value string) ClientOpt {
	return func(c *clientConfig) error {
		if c.extraHeaders == nil {
			c.extraHeaders = make(map[string]string)
		}
		c.extraHeaders[key] = value
		return nil
	}
}

// WithAuthToken sets the bearer (or other scheme) token sent on every
// request, including the background GET listener which bypasses go-client
// and so needs the token applied by hand.
func WithAuthToken(token client.Token) ClientOpt {
	return func(c *clientConfig) error {
		c.token = token
		c.httpOpts = append(c.httpOpts, client.OptReqToken(token))
		return nil
	}
}

// WithTokenSource sets an oauth2.TokenSource consulted before every
// request, refreshing the bearer token as it expires instead of sending
// the one fixed token WithAuthToken would. This is the client-side
// auth_provider: it yields a token asynchronously, never performs the
// authorization-code exchange itself (that's DiscoverOAuth/ExchangeCode).
func WithTokenSource(ts oauth2.TokenSource) ClientOpt {
	return func(c *clientConfig) error {
		c.tokenSource = ts
		return nil
	}
}

// WithSessionID resumes an existing stateful session instead of expecting
// Initialize to mint one.
func WithSessionID(id string) ClientOpt {
	return func(c *clientConfig) error {
		c.sessionID = id
		return nil
	}
}

// WithJSONResponseOnly sends every POST with "Accept: application/json"
// alone, telling the server this client never wants an SSE response, only
// plain JSON. A server that requires both media types in Accept, such as
// this package's Server, rejects such a POST with 406.
func WithJSONResponseOnly() ClientOpt {
	return func(c *clientConfig) error {
		c.jsonOnly = true
		return nil
	}
}

// WithOnResumptionToken registers a callback invoked with each event id
// seen on the background GET stream or on a POST response served as SSE,
// so a caller can persist the latest
// one and pass it back as Last-Event-Id after a reconnect.
func WithOnResumptionToken(fn func(eventID string)) ClientOpt {
	return func(c *clientConfig) error {
		c.onResumptionToken = fn
		return nil
	}
}

// WithHTTPClientOpts passes additional options straight through to the
// underlying go-client Client (timeouts, tracing, proxies, and so on).
func WithHTTPClientOpts(opts ...client.ClientOpt) ClientOpt {
	return func(c *clientConfig) error {
		c.httpOpts = append(c.httpOpts, opts...)
		return nil
	}
}
