// Package streamablehttp implements the MCP Streamable HTTP transport: a
// single endpoint that accepts POST (send a message, get a response or a
// response stream back), GET (open a long-lived server-to-client SSE
// stream) and DELETE (end a session), in both the stateful (session-id
// issuing) and stateless modes. It plays the same role the teacher's
// pkg/httphandler package does for its chat API — a net/http.Handler that
// speaks one wire protocol over a small set of verbs — generalized to MCP's
// session and resumability model.
package streamablehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	uuid "github.com/google/uuid"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	semaphore "golang.org/x/sync/semaphore"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcpserver "github.com/mutablelogic/go-mcp/pkg/mcpserver"
	mcpsession "github.com/mutablelogic/go-mcp/pkg/mcpsession"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
	sse "github.com/mutablelogic/go-mcp/pkg/sse"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const (
	headerProtocolVersion = "Mcp-Protocol-Version"
	headerSessionID       = "Mcp-Session-Id"
	headerLastEventID     = "Last-Event-Id"

	acceptStreamable = "application/json, text/event-stream"

	// maxBodyBytes bounds a single POST body. MCP messages are small RPC
	// envelopes, not bulk transfer.
	maxBodyBytes = 4 << 20
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Server is an http.Handler implementing one Streamable HTTP endpoint on
// top of an mcpserver.Server. Mount it at whatever path the deployment
// wants (the MCP spec recommends a single "/mcp" path but does not require
// it).
type Server struct {
	mcp *mcpserver.Server
	cfg config

	streams *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*sessionState
}

var _ http.Handler = (*Server)(nil)

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New builds a Server backed by mcp. Stateful mode (a server-issued
// Mcp-Session-Id, session continuity, GET/DELETE support) is the default;
// pass WithStateless to disable it.
func New(mcp *mcpserver.Server, opts ...Opt) (*Server, error) {
	s := &Server{
		mcp: mcp,
		cfg: config{
			sessionIDGenerator: func() string { return uuid.New().String() },
			jsonResponse:       true,
		},
		sessions: make(map[string]*sessionState),
	}
	for _, opt := range opts {
		if err := opt(&s.cfg); err != nil {
			return nil, err
		}
	}
	if s.stateful() && s.cfg.registry == nil {
		s.cfg.registry = mcpsession.NewMemoryRegistry()
	}
	if s.cfg.maxConcurrentStreams > 0 {
		s.streams = semaphore.NewWeighted(s.cfg.maxConcurrentStreams)
	}
	return s, nil
}

func (s *Server) stateful() bool {
	return s.cfg.sessionIDGenerator != nil
}

///////////////////////////////////////////////////////////////////////////////
// HTTP.HANDLER

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		s.handleGet(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
	}
}

///////////////////////////////////////////////////////////////////////////////
// POST

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		s.writeRPCError(w, http.StatusUnsupportedMediaType, jsonrpc.ID{}, mcptype.ErrInvalidRequest("Content-Type must be application/json"))
		return
	}
	if !acceptsStreamable(r.Header.Get("Accept")) {
		s.writeRPCError(w, http.StatusNotAcceptable, jsonrpc.ID{}, mcptype.ErrInvalidRequest("Accept must include application/json and text/event-stream"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeRPCError(w, http.StatusBadRequest, jsonrpc.ID{}, mcptype.ErrParse(err.Error()))
		return
	}

	msgs, err := jsonrpc.DecodeBody(body)
	if err != nil {
		s.writeRPCError(w, http.StatusBadRequest, jsonrpc.ID{}, mcptype.ErrParse(err.Error()))
		return
	}
	singleInit := len(msgs) == 1 && msgs[0].Kind() == jsonrpc.KindRequest && msgs[0].Method == mcptype.MethodInitialize

	if !singleInit && r.Header.Get(headerProtocolVersion) == "" {
		s.writeRPCError(w, http.StatusBadRequest, jsonrpc.ID{}, mcptype.ErrInvalidRequest("Mcp-Protocol-Version header is required"))
		return
	}

	if !s.stateful() {
		s.handleStatelessPost(w, r, body, msgs)
		return
	}
	s.handleStatefulPost(w, r, body, msgs, singleInit)
}

func (s *Server) handleStatelessPost(w http.ResponseWriter, r *http.Request, body []byte, msgs []*jsonrpc.Message) {
	router := newSessionRouter("", s.cfg.eventStore)
	conn := protocol.New(router, protocol.ServerCapabilityChecker(s.mcp.Capabilities()))
	s.mcp.Bind(conn)
	s.dispatchAndRespond(w, r, conn, router, body, msgs)
}

func (s *Server) handleStatefulPost(w http.ResponseWriter, r *http.Request, body []byte, msgs []*jsonrpc.Message, singleInit bool) {
	sid := r.Header.Get(headerSessionID)

	if singleInit {
		if sid != "" {
			if _, err := s.cfg.registry.Get(r.Context(), sid); err == nil {
				s.writeRPCError(w, http.StatusOK, firstRequestID(msgs), mcptype.ErrInvalidRequest("session already initialized"))
				return
			}
		}
		s.initializeSession(w, r, body, msgs)
		return
	}

	if sid == "" {
		s.writeRPCError(w, http.StatusBadRequest, jsonrpc.ID{}, mcptype.ErrInvalidRequest("Mcp-Session-Id header is required"))
		return
	}

	s.mu.Lock()
	st, ok := s.sessions[sid]
	s.mu.Unlock()
	if !ok {
		s.writeRPCError(w, http.StatusNotFound, jsonrpc.ID{}, mcptype.ErrInvalidRequest("unknown session"))
		return
	}
	if v := r.Header.Get(headerProtocolVersion); v != st.session.ProtocolVersion {
		s.writeRPCError(w, http.StatusBadRequest, jsonrpc.ID{}, mcptype.ErrInvalidRequest("protocol version mismatch"))
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	_ = s.cfg.registry.Touch(r.Context(), sid)
	s.dispatchAndRespond(w, r, st.conn, st.router, body, msgs)
}

// initializeSession handles a stateful initialize POST: it decodes the
// params (an initialize whose params do not decode never allocates a
// session id), creates and registers the session, then runs the handshake
// through the session's fresh Conn. The session stays registered even if
// the handshake itself answers with an error.
func (s *Server) initializeSession(w http.ResponseWriter, r *http.Request, body []byte, msgs []*jsonrpc.Message) {
	req := msgs[0].AsRequest()
	var params mcptype.InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeRPCError(w, http.StatusBadRequest, req.ID, mcptype.ErrInvalidParams(err.Error()))
		return
	}

	version := params.ProtocolVersion
	if !supportedProtocolVersion(version) {
		version = mcptype.LatestProtocolVersion
	}

	session, err := s.cfg.registry.Create(r.Context(), params.ClientInfo, params.Capabilities, version)
	if err != nil {
		s.writeRPCError(w, http.StatusInternalServerError, req.ID, mcptype.ErrInternal(err.Error()))
		return
	}
	sessionID := session.ID

	router := newSessionRouter(sessionID, s.cfg.eventStore)
	conn := protocol.New(router, protocol.ServerCapabilityChecker(s.mcp.Capabilities()))
	conn.SetPeerCapabilities(protocol.ClientCapabilityChecker(params.Capabilities))
	s.mcp.Bind(conn)

	st := &sessionState{session: session, conn: conn, router: router}
	s.mu.Lock()
	s.sessions[sessionID] = st
	s.mu.Unlock()

	w.Header().Set(headerSessionID, sessionID)
	s.dispatchAndRespond(w, r, conn, router, body, msgs)

	if s.cfg.onSessionInitialized != nil {
		s.cfg.onSessionInitialized(sessionID)
	}
}

// dispatchAndRespond delivers body to conn and writes the HTTP response:
// 202 with no body for an all-notifications batch, otherwise a JSON body
// (if WithJSONResponse is on, the default) or an SSE stream of "message"
// events, one per response, closed once all are written.
func (s *Server) dispatchAndRespond(w http.ResponseWriter, r *http.Request, conn *protocol.Conn, router *sessionRouter, body []byte, msgs []*jsonrpc.Message) {
	var reqIDs []jsonrpc.ID
	for _, m := range msgs {
		if m.Kind() == jsonrpc.KindRequest && m.ID != nil {
			reqIDs = append(reqIDs, *m.ID)
		}
	}

	if len(reqIDs) == 0 {
		conn.Deliver(r.Context(), body)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	replyCh := make(chan []byte, len(reqIDs))
	for _, id := range reqIDs {
		router.register(id, replyCh)
	}
	defer func() {
		for _, id := range reqIDs {
			router.unregister(id)
		}
	}()

	conn.Deliver(r.Context(), body)

	byKey := make(map[any][]byte, len(reqIDs))
collect:
	for range reqIDs {
		select {
		case data := <-replyCh:
			var probe struct {
				ID *jsonrpc.ID `json:"id"`
			}
			if err := json.Unmarshal(data, &probe); err == nil && probe.ID != nil {
				byKey[probe.ID.Key()] = data
			}
		case <-r.Context().Done():
			break collect
		}
	}

	ordered := make([][]byte, 0, len(reqIDs))
	for _, id := range reqIDs {
		if data, ok := byKey[id.Key()]; ok {
			ordered = append(ordered, data)
		}
	}
	if len(ordered) == 0 {
		_ = httpresponse.Error(w, httpresponse.ErrInternalError.With(r.Context().Err()))
		return
	}

	if s.cfg.jsonResponse {
		s.writeJSONResponses(w, ordered)
		return
	}
	s.writeSSEResponses(r.Context(), w, ordered, router)
}

func (s *Server) writeJSONResponses(w http.ResponseWriter, ordered [][]byte) {
	if len(ordered) == 1 {
		_ = httpresponse.JSON(w, http.StatusOK, 0, json.RawMessage(ordered[0]))
		return
	}
	raws := make([]json.RawMessage, len(ordered))
	for i, r := range ordered {
		raws[i] = json.RawMessage(r)
	}
	_ = httpresponse.JSON(w, http.StatusOK, 0, raws)
}

func (s *Server) writeSSEResponses(ctx context.Context, w http.ResponseWriter, ordered [][]byte, router *sessionRouter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(w)
	for _, data := range ordered {
		id := router.append(ctx, data)
		_ = writer.WriteEvent(sse.Event{ID: id, Event: "message", Data: string(data)})
	}
}

///////////////////////////////////////////////////////////////////////////////
// GET

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if !s.stateful() {
		_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed))
		return
	}
	if !strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/event-stream") {
		s.writeRPCError(w, http.StatusNotAcceptable, jsonrpc.ID{}, mcptype.ErrInvalidRequest("Accept must include text/event-stream"))
		return
	}

	sid := r.Header.Get(headerSessionID)
	if sid == "" {
		s.writeRPCError(w, http.StatusBadRequest, jsonrpc.ID{}, mcptype.ErrInvalidRequest("Mcp-Session-Id header is required"))
		return
	}

	s.mu.Lock()
	st, ok := s.sessions[sid]
	s.mu.Unlock()
	if !ok {
		s.writeRPCError(w, http.StatusNotFound, jsonrpc.ID{}, mcptype.ErrInvalidRequest("unknown session"))
		return
	}

	if s.streams != nil {
		if !s.streams.TryAcquire(1) {
			_ = httpresponse.Error(w, httpresponse.Err(http.StatusServiceUnavailable))
			return
		}
		defer s.streams.Release(1)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	writer := sse.NewWriter(w)
	if !st.router.attachSSE(writer) {
		_ = httpresponse.Error(w, httpresponse.ErrConflict.With(fmt.Errorf("session %s already has an active stream", sid)))
		return
	}
	w.WriteHeader(http.StatusOK)
	defer st.router.detachSSE()

	if last := r.Header.Get(headerLastEventID); last != "" && s.cfg.eventStore != nil {
		if events, err := s.cfg.eventStore.ReplayAfter(r.Context(), sid, last); err == nil {
			for _, ev := range events {
				_ = writer.WriteEvent(mcpsession.EncodeFrame(ev))
			}
		}
	}

	select {
	case <-r.Context().Done():
	case <-st.router.closeCh:
	}
}

///////////////////////////////////////////////////////////////////////////////
// DELETE

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.stateful() {
		_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed))
		return
	}

	sid := r.Header.Get(headerSessionID)
	if sid == "" {
		_ = httpresponse.Error(w, httpresponse.ErrNotFound)
		return
	}

	s.mu.Lock()
	st, ok := s.sessions[sid]
	if ok {
		delete(s.sessions, sid)
	}
	s.mu.Unlock()
	if !ok {
		_ = httpresponse.Error(w, httpresponse.ErrNotFound)
		return
	}

	st.router.abort()
	_ = st.conn.Shutdown()
	_ = s.cfg.registry.Delete(r.Context(), sid)
	if s.cfg.eventStore != nil {
		_ = s.cfg.eventStore.Drop(r.Context(), sid)
	}
	if s.cfg.onSessionClosed != nil {
		s.cfg.onSessionClosed(sid)
	}
	w.WriteHeader(http.StatusOK)
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

func (s *Server) writeRPCError(w http.ResponseWriter, status int, id jsonrpc.ID, rpcErr *jsonrpc.Error) {
	_ = httpresponse.JSON(w, status, 0, jsonrpc.NewErrorResponse(id, rpcErr))
}

// authorize checks the Authorization header against the bound
// mcpserver.Server's AuthHandler, if any, writing a 401 response and
// returning false on failure. A server with no AuthHandler configured
// always passes.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	token := bearerToken(r.Header.Get("Authorization"))
	if _, err := s.mcp.Authorize(r.Context(), token); err != nil {
		s.writeRPCError(w, http.StatusUnauthorized, jsonrpc.ID{}, mcptype.ToWireError(err))
		return false
	}
	return true
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func acceptsStreamable(accept string) bool {
	lower := strings.ToLower(accept)
	if strings.Contains(lower, "*/*") {
		return true
	}
	return strings.Contains(lower, "application/json") && strings.Contains(lower, "text/event-stream")
}

func supportedProtocolVersion(v string) bool {
	for _, sv := range mcptype.SupportedProtocolVersions {
		if sv == v {
			return true
		}
	}
	return false
}

func firstRequestID(msgs []*jsonrpc.Message) jsonrpc.ID {
	for _, m := range msgs {
		if m.Kind() == jsonrpc.KindRequest && m.ID != nil {
			return *m.ID
		}
	}
	return jsonrpc.ID{}
}
