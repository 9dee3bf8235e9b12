package protocol_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

// captureTransport records every frame sent to it instead of delivering
// anywhere, so dispatch-level behavior (error shaping, batch rejection)
// can be asserted on the raw bytes.
type captureTransport struct {
	sent [][]byte
}

func (c *captureTransport) Send(ctx context.Context, data []byte) error {
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *captureTransport) Close() error { return nil }

func Test_deliver_parse_error(t *testing.T) {
	assert := assert.New(t)

	ct := &captureTransport{}
	conn := protocol.New(ct, protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{}))
	conn.Deliver(context.Background(), []byte("not json"))

	assert.Len(ct.sent, 1)
	var resp jsonrpc.Response
	assert.NoError(json.Unmarshal(ct.sent[0], &resp))
	assert.NotNil(resp.Error)
	assert.Equal(mcptype.CodeParseError, resp.Error.Code)
}

func Test_deliver_batch_with_initialize_rejected(t *testing.T) {
	assert := assert.New(t)

	ct := &captureTransport{}
	conn := protocol.New(ct, protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{Tools: &mcptype.Feature{}}))
	conn.Handle(mcptype.MethodToolsList, func(ctx context.Context, req *jsonrpc.Request) (any, error) {
		return mcptype.ListToolsResult{}, nil
	})

	batch := `[
		{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}},
		{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{}}
	]`
	conn.Deliver(context.Background(), []byte(batch))

	assert.Len(ct.sent, 1)
	var responses []jsonrpc.Response
	assert.NoError(json.Unmarshal(ct.sent[0], &responses))
	for _, r := range responses {
		assert.NotNil(r.Error)
		assert.Equal(mcptype.CodeInvalidRequest, r.Error.Code)
	}
}

func Test_deliver_method_not_found_response(t *testing.T) {
	assert := assert.New(t)

	ct := &captureTransport{}
	conn := protocol.New(ct, protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{}))

	conn.Deliver(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"nope","params":{}}`))

	assert.Eventually(func() bool { return len(ct.sent) == 1 }, time.Second, 5*time.Millisecond)
	var resp jsonrpc.Response
	assert.NoError(json.Unmarshal(ct.sent[0], &resp))
	assert.NotNil(resp.Error)
	assert.Equal(mcptype.CodeMethodNotFound, resp.Error.Code)
}

func Test_deliver_capability_gated_method_rejected(t *testing.T) {
	assert := assert.New(t)

	ct := &captureTransport{}
	// No Tools capability advertised locally.
	conn := protocol.New(ct, protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{}))

	conn.Deliver(context.Background(), []byte(`{"jsonrpc":"2.0","id":9,"method":"tools/list","params":{}}`))

	assert.Eventually(func() bool { return len(ct.sent) == 1 }, time.Second, 5*time.Millisecond)
	var resp jsonrpc.Response
	assert.NoError(json.Unmarshal(ct.sent[0], &resp))
	assert.NotNil(resp.Error)
	assert.Equal(mcptype.CodeUnsupportedCapability, resp.Error.Code)
}

func Test_state_machine_forward_only(t *testing.T) {
	assert := assert.New(t)

	ct := &captureTransport{}
	conn := protocol.New(ct, protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{}))

	assert.Equal(protocol.NotInitialized, conn.State())
	assert.True(conn.BeginInitializing())
	assert.False(conn.BeginInitializing()) // already past NotInitialized
	assert.True(conn.MarkInitialized())
	assert.False(conn.MarkInitialized()) // already Initialized
	assert.Equal(protocol.Initialized, conn.State())

	assert.NoError(conn.Shutdown())
	assert.Equal(protocol.Shutdown, conn.State())
}
