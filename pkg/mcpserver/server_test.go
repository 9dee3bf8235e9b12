package mcpserver_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	jsonschema "github.com/google/jsonschema-go/jsonschema"
	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	mcpserver "github.com/mutablelogic/go-mcp/pkg/mcpserver"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

///////////////////////////////////////////////////////////////////////////////
// FAKES

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its message argument" }
func (echoTool) Schema() (*jsonschema.Schema, error) {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"message": {Type: "string"},
		},
		Required: []string{"message"},
	}, nil
}
func (echoTool) Call(_ context.Context, args map[string]any) (mcptype.CallToolResult, error) {
	msg, _ := args["message"].(string)
	return mcptype.CallToolResult{Content: []mcptype.Content{mcptype.NewTextContent(msg)}}, nil
}

type staticResource struct{}

func (staticResource) URI() string         { return "mem://greeting" }
func (staticResource) Name() string        { return "greeting" }
func (staticResource) Description() string { return "a static greeting" }
func (staticResource) MimeType() string    { return "text/plain" }
func (staticResource) Read(context.Context) ([]mcptype.Content, error) {
	return []mcptype.Content{mcptype.NewTextContent("hello")}, nil
}

type greetingPrompt struct{}

func (greetingPrompt) Name() string        { return "greeting" }
func (greetingPrompt) Description() string { return "greets someone by name" }
func (greetingPrompt) Arguments() []mcptype.PromptArgument {
	return []mcptype.PromptArgument{{Name: "name", Required: true}}
}
func (greetingPrompt) Render(_ context.Context, args map[string]string) (mcptype.GetPromptResult, error) {
	return mcptype.GetPromptResult{
		Messages: []mcptype.PromptMessage{
			{Role: "user", Content: mcptype.NewTextContent("hello, " + args["name"])},
		},
	}, nil
}

// loopbackTransport wires a Conn directly back to itself for single-sided
// handler testing (no real peer needed for requests we originate by
// calling Deliver directly).
type loopbackTransport struct {
	sent [][]byte
}

func (l *loopbackTransport) Send(ctx context.Context, data []byte) error {
	l.sent = append(l.sent, append([]byte(nil), data...))
	return nil
}
func (l *loopbackTransport) Close() error { return nil }

func newBoundServer(t *testing.T, opts ...mcpserver.Opt) (*mcpserver.Server, *protocol.Conn, *loopbackTransport) {
	t.Helper()
	srv, err := mcpserver.New("test-server", "0.0.1", opts...)
	require.NoError(t, err)

	lt := &loopbackTransport{}
	conn := protocol.New(lt, protocol.ServerCapabilityChecker(srv.Capabilities()))
	srv.Bind(conn)
	return srv, conn, lt
}

func deliverAndLastResponse(t *testing.T, lt *loopbackTransport, conn *protocol.Conn, req string) map[string]any {
	t.Helper()
	before := len(lt.sent)
	conn.Deliver(context.Background(), []byte(req))
	require.Eventually(t, func() bool { return len(lt.sent) > before }, time.Second, 5*time.Millisecond)
	var out map[string]any
	require.NoError(t, json.Unmarshal(lt.sent[len(lt.sent)-1], &out))
	return out
}

///////////////////////////////////////////////////////////////////////////////
// TESTS

func Test_initialize_advertises_registered_capabilities(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithTools(echoTool{}), mcpserver.WithInstructions("use echo wisely"))

	resp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"c","version":"1"}}}`)

	result, ok := resp["result"].(map[string]any)
	assert.True(ok)
	caps, ok := result["capabilities"].(map[string]any)
	assert.True(ok)
	_, hasTools := caps["tools"]
	assert.True(hasTools)
	assert.Equal("use echo wisely", result["instructions"])
}

func Test_tools_list_and_call(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithTools(echoTool{}))

	listResp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result := listResp["result"].(map[string]any)
	tools := result["tools"].([]any)
	assert.Len(tools, 1)

	callResp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`)
	callResult := callResp["result"].(map[string]any)
	content := callResult["content"].([]any)
	first := content[0].(map[string]any)
	assert.Equal("hi", first["text"])
}

func Test_tools_call_invalid_arguments_rejected(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithTools(echoTool{}))

	resp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{}}}`)
	_, hasError := resp["error"]
	assert.True(hasError)
}

func Test_tools_call_unknown_tool(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithTools(echoTool{}))

	resp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"nope","arguments":{}}}`)
	errObj, ok := resp["error"].(map[string]any)
	assert.True(ok)
	assert.EqualValues(mcptype.CodeMethodNotFound, errObj["code"])
}

func Test_resources_list_and_read(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithResources(staticResource{}))

	listResp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`)
	result := listResp["result"].(map[string]any)
	assert.Len(result["resources"].([]any), 1)

	readResp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"mem://greeting"}}`)
	readResult := readResp["result"].(map[string]any)
	contents := readResult["contents"].([]any)
	first := contents[0].(map[string]any)
	assert.Equal("hello", first["text"])
}

func Test_prompts_list_and_get(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithPrompts(greetingPrompt{}))

	deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`)

	getResp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":2,"method":"prompts/get","params":{"name":"greeting","arguments":{"name":"ada"}}}`)
	result := getResp["result"].(map[string]any)
	messages := result["messages"].([]any)
	msg := messages[0].(map[string]any)
	content := msg["content"].(map[string]any)
	assert.Equal("hello, ada", content["text"])
}

func Test_prompts_get_missing_required_argument(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithPrompts(greetingPrompt{}))

	resp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":3,"method":"prompts/get","params":{"name":"greeting","arguments":{}}}`)
	_, hasError := resp["error"]
	assert.True(hasError)
}

func Test_resources_read_missing_uri_not_found(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithResources(staticResource{}))

	resp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":4,"method":"resources/read","params":{"uri":"mem://nope"}}`)
	_, hasError := resp["error"]
	assert.True(hasError)
}

func Test_duplicate_tool_registration_rejected(t *testing.T) {
	assert := assert.New(t)

	srv, err := mcpserver.New("dup", "0.0.1", mcpserver.WithTools(echoTool{}))
	assert.NoError(err)
	assert.Error(srv.RegisterTool(echoTool{}))
}

type upperCompletion struct{}

func (upperCompletion) Complete(_ context.Context, ref mcptype.CompletionReference, arg mcptype.CompletionArgument) (mcptype.CompletionValues, error) {
	return mcptype.CompletionValues{Values: []string{ref.Name + ":" + strings.ToUpper(arg.Value)}}, nil
}

func Test_completion_complete_invokes_handler(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t, mcpserver.WithCompletionHandler(upperCompletion{}))

	resp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":5,"method":"completion/complete","params":{"ref":{"type":"ref/prompt","name":"greet"},"argument":{"name":"name","value":"ada"}}}`)
	result := resp["result"].(map[string]any)
	completion := result["completion"].(map[string]any)
	values := completion["values"].([]any)
	assert.Equal("greet:ADA", values[0])
}

func Test_completion_complete_without_handler_rejected(t *testing.T) {
	assert := assert.New(t)

	_, conn, lt := newBoundServer(t)

	resp := deliverAndLastResponse(t, lt, conn, `{"jsonrpc":"2.0","id":6,"method":"completion/complete","params":{"ref":{"type":"ref/prompt","name":"greet"},"argument":{"name":"name","value":"ada"}}}`)
	_, hasError := resp["error"]
	assert.True(hasError)
}

type denyAllAuth struct{}

func (denyAllAuth) Authorize(context.Context, string) ([]string, error) {
	return nil, mcptype.ErrAuthenticationRequired("nope")
}

func Test_authorize_delegates_to_handler(t *testing.T) {
	assert := assert.New(t)

	srv, err := mcpserver.New("secured", "0.0.1", mcpserver.WithAuthHandler(denyAllAuth{}))
	assert.NoError(err)

	_, err = srv.Authorize(context.Background(), "any-token")
	assert.Error(err)
}

func Test_authorize_without_handler_allows_everything(t *testing.T) {
	assert := assert.New(t)

	srv, err := mcpserver.New("open", "0.0.1")
	assert.NoError(err)

	scopes, err := srv.Authorize(context.Background(), "")
	assert.NoError(err)
	assert.Nil(scopes)
}
