package streamablehttp_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	mcpserver "github.com/mutablelogic/go-mcp/pkg/mcpserver"
	streamablehttp "github.com/mutablelogic/go-mcp/pkg/transport/streamablehttp"
)

///////////////////////////////////////////////////////////////////////////////
// HELPERS

func newTestServer(t *testing.T, opts ...streamablehttp.Opt) (*httptest.Server, *streamablehttp.Server) {
	t.Helper()
	mcp, err := mcpserver.New("test-server", "0.0.1")
	require.NoError(t, err)

	srv, err := streamablehttp.New(mcp, opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, srv
}

func initializeRequest(t *testing.T, ts *httptest.Server, sessionID string) (*http.Response, map[string]any) {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c","version":"1"}}}`
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_initialize_issues_session_id(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	resp, body := initializeRequest(t, ts, "")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.NotEmpty(resp.Header.Get("Mcp-Session-Id"))
	_, hasResult := body["result"]
	assert.True(hasResult)
}

func Test_post_missing_protocol_version_rejected(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	body := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(body))
	assert.NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusBadRequest, resp.StatusCode)
}

func Test_post_unknown_session_not_found(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	body := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(body))
	assert.NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Mcp-Protocol-Version", "2025-06-18")
	req.Header.Set("Mcp-Session-Id", "does-not-exist")

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusNotFound, resp.StatusCode)
}

func Test_ping_on_established_session(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	resp, _ := initializeRequest(t, ts, "")
	sessionID := resp.Header.Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID)

	body := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(body))
	assert.NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("Mcp-Protocol-Version", "2025-06-18")
	req.Header.Set("Mcp-Session-Id", sessionID)

	pingResp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer pingResp.Body.Close()
	assert.Equal(http.StatusOK, pingResp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(pingResp.Body).Decode(&out))
	_, hasResult := out["result"]
	assert.True(hasResult)
}

func Test_delete_ends_session(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	resp, _ := initializeRequest(t, ts, "")
	sessionID := resp.Header.Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
	assert.NoError(err)
	req.Header.Set("Mcp-Session-Id", sessionID)

	delResp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	delResp.Body.Close()
	assert.Equal(http.StatusOK, delResp.StatusCode)

	// Re-using the session afterwards should now 404.
	body := `{"jsonrpc":"2.0","id":3,"method":"ping"}`
	req2, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(body))
	assert.NoError(err)
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("Accept", "application/json, text/event-stream")
	req2.Header.Set("Mcp-Protocol-Version", "2025-06-18")
	req2.Header.Set("Mcp-Session-Id", sessionID)

	resp2, err := http.DefaultClient.Do(req2)
	assert.NoError(err)
	defer resp2.Body.Close()
	assert.Equal(http.StatusNotFound, resp2.StatusCode)
}

func Test_get_and_delete_rejected_in_stateless_mode(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t, streamablehttp.WithStateless())

	getReq, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	assert.NoError(err)
	getReq.Header.Set("Accept", "text/event-stream")
	getResp, err := http.DefaultClient.Do(getReq)
	assert.NoError(err)
	getResp.Body.Close()
	assert.Equal(http.StatusMethodNotAllowed, getResp.StatusCode)

	delReq, err := http.NewRequest(http.MethodDelete, ts.URL, nil)
	assert.NoError(err)
	delResp, err := http.DefaultClient.Do(delReq)
	assert.NoError(err)
	delResp.Body.Close()
	assert.Equal(http.StatusMethodNotAllowed, delResp.StatusCode)
}

func Test_stateless_post_never_issues_session_id(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t, streamablehttp.WithStateless())

	resp, _ := initializeRequest(t, ts, "")
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Empty(resp.Header.Get("Mcp-Session-Id"))
}

func Test_post_wrong_content_type_rejected(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(`{}`))
	assert.NoError(err)
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
}

func Test_post_missing_accept_rejected(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c","version":"1"}}}`))
	assert.NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(err)
	defer resp.Body.Close()
	assert.Equal(http.StatusNotAcceptable, resp.StatusCode)
}
