package streamablehttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"sync"
	"time"

	client "github.com/mutablelogic/go-client"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Client is the Streamable HTTP client half: a protocol.Conn whose
// Transport POSTs each outbound frame to a single MCP endpoint and whose
// background listener reads the server's long-lived GET SSE stream.
// Call/Notify/Handle/HandleNotification/Cancel/State/Shutdown are promoted
// from the embedded Conn, so most callers never need the extra fields.
type Client struct {
	*protocol.Conn

	http *client.Client
	cfg  clientConfig
	url  string

	clientInfo mcptype.Implementation
	clientCaps mcptype.ClientCapabilities

	mu        sync.Mutex
	sessionID string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// clientTransport adapts Client to protocol.Transport; Send performs one
// POST round trip and feeds the decoded response back into the Conn.
type clientTransport struct {
	c *Client
}

var _ protocol.Transport = (*clientTransport)(nil)

// rawCapture implements client.Unmarshaler, grounded directly on the
// teacher's mcp/client "response" type: it captures the session id header
// and either decodes a plain JSON body or steps aside (ErrNotImplemented)
// so go-client's native SSE handling takes over via OptTextStreamCallback.
type rawCapture struct {
	client *Client
}

var _ client.Unmarshaler = (*rawCapture)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New builds a Client talking to the single Streamable HTTP endpoint at
// rawURL, identifying itself as info with the given capabilities.
func New(rawURL string, info mcptype.Implementation, caps mcptype.ClientCapabilities, opts ...ClientOpt) (*Client, error) {
	var cfg clientConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	c := &Client{
		cfg:        cfg,
		url:        rawURL,
		clientInfo: info,
		clientCaps: caps,
		sessionID:  cfg.sessionID,
	}

	httpOpts := append([]client.ClientOpt{
		client.OptEndpoint(rawURL),
		client.OptUserAgent(info.Name + "/" + info.Version),
	}, cfg.httpOpts...)
	httpClient, err := client.New(httpOpts...)
	if err != nil {
		return nil, err
	}
	c.http = httpClient

	c.Conn = protocol.New(&clientTransport{c: c}, protocol.ClientCapabilityChecker(caps))
	return c, nil
}

// Initialize performs the MCP handshake: it sends initialize, records the
// peer's advertised capabilities, and sends notifications/initialized.
func (c *Client) Initialize(ctx context.Context) (*mcptype.InitializeResult, error) {
	if !c.BeginInitializing() {
		return nil, errors.New("streamablehttp: already initialized")
	}

	raw, _, err := c.Call(ctx, mcptype.MethodInitialize, mcptype.InitializeParams{
		ProtocolVersion: mcptype.LatestProtocolVersion,
		Capabilities:    c.clientCaps,
		ClientInfo:      c.clientInfo,
	})
	if err != nil {
		return nil, err
	}

	var result mcptype.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	c.SetPeerCapabilities(protocol.ServerCapabilityChecker(result.Capabilities))

	if err := c.Notify(ctx, mcptype.NotificationInitialized, nil); err != nil {
		return nil, err
	}
	c.MarkInitialized()

	return &result, nil
}

// Listen starts the background GET SSE reader that receives server-pushed
// requests and notifications outside of a POST/response cycle. It is not
// started automatically — a caller that never expects server-initiated
// traffic can skip it entirely.
func (c *Client) Listen(ctx context.Context) {
	listenCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.listen(listenCtx)
}

// Close stops the background listener (if running), ends the session with
// a DELETE when one is active, and shuts down the underlying Conn.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	sessionID := c.sessionID
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	if sessionID != "" {
		_ = c.http.DoWithContext(context.Background(), client.MethodDelete, nil,
			client.OptReqHeader(headerSessionID, sessionID))
	}

	return c.Conn.Shutdown()
}

///////////////////////////////////////////////////////////////////////////////
// PROTOCOL.TRANSPORT

func (t *clientTransport) Send(ctx context.Context, data []byte) error {
	return t.c.send(ctx, data)
}

func (t *clientTransport) Close() error {
	return nil
}

// send POSTs one JSON-RPC frame and, on a plain JSON response, feeds the
// body straight back into the Conn's dispatcher — letting Deliver sort out
// whether it's the matching response, a piggy-backed request, or a
// notification, exactly as it already does for every other transport.
func (c *Client) send(ctx context.Context, data []byte) error {
	accept := acceptStreamable
	if c.cfg.jsonOnly {
		accept = "application/json"
	}

	msg, _ := jsonrpc.DecodeMessage(data)
	isInit := msg != nil && msg.Kind() == jsonrpc.KindRequest && msg.Method == mcptype.MethodInitialize

	payload, err := client.NewJSONRequestEx(http.MethodPost, json.RawMessage(data), accept)
	if err != nil {
		return err
	}

	capture := &rawCapture{client: c}
	reqOpts := []client.RequestOpt{
		client.OptTextStreamCallback(c.eventCallback()),
	}
	reqOpts = append(reqOpts, c.sessionHeaders(isInit)...)

	if c.cfg.tokenSource != nil {
		tok, err := c.cfg.tokenSource.Token()
		if err != nil {
			return fmt.Errorf("streamablehttp: refreshing token: %w", err)
		}
		reqOpts = append(reqOpts, client.OptReqHeader("Authorization", tok.Type()+" "+tok.AccessToken))
	}

	if err := c.http.DoWithContext(ctx, payload, capture, reqOpts...); err != nil {
		if isHTTPStatus(err, http.StatusNotFound) {
			c.mu.Lock()
			c.sessionID = ""
			c.mu.Unlock()
		}
		return err
	}
	return nil
}

func (c *Client) sessionHeaders(isInit bool) []client.RequestOpt {
	var opts []client.RequestOpt
	if !isInit {
		opts = append(opts, client.OptReqHeader(headerProtocolVersion, mcptype.LatestProtocolVersion))
	}
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID != "" {
		opts = append(opts, client.OptReqHeader(headerSessionID, sessionID))
	}
	for k, v := range c.cfg.extraHeaders {
		opts = append(opts, client.OptReqHeader(k, v))
	}
	return opts
}

///////////////////////////////////////////////////////////////////////////////
// UNMARSHALER

func (r *rawCapture) Unmarshal(header http.Header, body io.Reader) error {
	if id := header.Get(headerSessionID); id != "" {
		r.client.mu.Lock()
		r.client.sessionID = id
		r.client.mu.Unlock()
	}

	if ct := header.Get("Content-Type"); ct != "" {
		if mimetype, _, err := mime.ParseMediaType(ct); err == nil && mimetype == client.ContentTypeTextStream {
			return httpresponse.ErrNotImplemented
		}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	r.client.Conn.Deliver(context.Background(), data)
	return nil
}

// eventCallback decodes a POST response served as an SSE stream (one event
// per JSON-RPC message) and feeds each one into Deliver as it arrives.
func (c *Client) eventCallback() client.TextStreamCallback {
	return func(event client.TextStreamEvent) error {
		if event.Event != "message" && event.Event != "" {
			return nil
		}
		if event.ID != "" && c.cfg.onResumptionToken != nil {
			c.cfg.onResumptionToken(event.ID)
		}
		var raw json.RawMessage
		if err := event.Json(&raw); err != nil {
			return nil
		}
		c.Conn.Deliver(context.Background(), raw)
		return nil
	}
}

///////////////////////////////////////////////////////////////////////////////
// GET LISTENER

// listen mirrors the teacher's background SSE reader: raw *http.Client.Do
// (bypassing go-client so the stream's lifetime never blocks other calls),
// 1s-30s exponential backoff, and decoding each "message" event straight
// into Deliver.
func (c *Client) listen(ctx context.Context) {
	defer c.wg.Done()

	const (
		minBackoff = 1 * time.Second
		maxBackoff = 30 * time.Second
	)
	backoff := minBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			log.Printf("streamablehttp: listener: %v", err)
			return
		}
		req.Header.Set("Accept", client.ContentTypeTextStream)
		if c.cfg.tokenSource != nil {
			if tok, err := c.cfg.tokenSource.Token(); err != nil {
				log.Printf("streamablehttp: listener: refreshing token: %v", err)
			} else {
				req.Header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
			}
		} else if c.cfg.token.Value != "" {
			req.Header.Set("Authorization", c.cfg.token.Scheme+" "+c.cfg.token.Value)
		}
		c.mu.Lock()
		if c.sessionID != "" {
			req.Header.Set(headerSessionID, c.sessionID)
		}
		c.mu.Unlock()

		resp, err := c.httpClient().Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("streamablehttp: listener error: %v (reconnecting in %v)", err, backoff)
		} else {
			if resp.StatusCode == http.StatusMethodNotAllowed {
				resp.Body.Close()
				return
			}
			if resp.StatusCode == http.StatusOK {
				_ = client.NewTextStream().Decode(resp.Body, func(event client.TextStreamEvent) error {
					if ctx.Err() != nil {
						return io.EOF
					}
					if event.Event != "message" && event.Event != "" {
						return nil
					}
					if event.ID != "" && c.cfg.onResumptionToken != nil {
						c.cfg.onResumptionToken(event.ID)
					}
					var raw json.RawMessage
					if err := event.Json(&raw); err != nil {
						return nil
					}
					c.Conn.Deliver(ctx, raw)
					return nil
				})
				backoff = minBackoff
			}
			resp.Body.Close()
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *Client) httpClient() *http.Client {
	return c.http.Client.Client
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

func isHTTPStatus(err error, code int) bool {
	var httpErr httpresponse.Err
	return errors.As(err, &httpErr) && int(httpErr) == code
}
