package protocol_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	protocol "github.com/mutablelogic/go-mcp/pkg/protocol"
)

func Test_call_roundtrip(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	server, client := newPipe(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{
		Tools: &mcptype.Feature{},
	}), protocol.ClientCapabilityChecker(mcptype.ClientCapabilities{}))
	client.SetPeerCapabilities(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{Tools: &mcptype.Feature{}}))

	server.Handle(mcptype.MethodToolsList, func(ctx context.Context, req *jsonrpc.Request) (any, error) {
		return mcptype.ListToolsResult{Tools: []mcptype.Tool{{Name: "echo"}}}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	raw, _, err := client.Call(ctx, mcptype.MethodToolsList, nil)
	require.NoError(err)

	var result mcptype.ListToolsResult
	require.NoError(json.Unmarshal(raw, &result))
	assert.Len(result.Tools, 1)
	assert.Equal("echo", result.Tools[0].Name)
}

func Test_call_capability_gate_rejects_unadvertised(t *testing.T) {
	require := require.New(t)

	_, client := newPipe(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{}), protocol.ClientCapabilityChecker(mcptype.ClientCapabilities{}))
	client.SetPeerCapabilities(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{})) // no tools capability

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, err := client.Call(ctx, mcptype.MethodToolsList, nil)
	require.Error(err)
}

func Test_call_method_not_found(t *testing.T) {
	require := require.New(t)

	server, client := newPipe(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{Tools: &mcptype.Feature{}}), protocol.ClientCapabilityChecker(mcptype.ClientCapabilities{}))
	client.SetPeerCapabilities(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{Tools: &mcptype.Feature{}}))
	_ = server

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, err := client.Call(ctx, mcptype.MethodToolsList, nil)
	require.Error(err)
}

func Test_notification_delivered(t *testing.T) {
	assert := assert.New(t)

	server, client := newPipe(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{}), protocol.ClientCapabilityChecker(mcptype.ClientCapabilities{}))
	_ = server

	received := make(chan string, 1)
	client.HandleNotification(mcptype.NotificationMessage, func(ctx context.Context, n *jsonrpc.Notification) {
		received <- n.Method
	})

	require := require.New(t)
	require.NoError(server.Notify(context.Background(), mcptype.NotificationMessage, mcptype.LogMessageParams{Level: mcptype.LogLevelInfo, Data: "hi"}))

	select {
	case m := <-received:
		assert.Equal(mcptype.NotificationMessage, m)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func Test_cancellation_suppresses_response(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server, client := newPipe(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{Tools: &mcptype.Feature{}}), protocol.ClientCapabilityChecker(mcptype.ClientCapabilities{}))
	client.SetPeerCapabilities(protocol.ServerCapabilityChecker(mcptype.ServerCapabilities{Tools: &mcptype.Feature{}}))

	started := make(chan struct{})
	server.Handle(mcptype.MethodToolsCall, func(ctx context.Context, req *jsonrpc.Request) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	callCtx, cancelCall := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelCall()

	done := make(chan error, 1)
	var gotID jsonrpc.ID
	go func() {
		_, id, err := client.Call(callCtx, mcptype.MethodToolsCall, mcptype.CallToolParams{Name: "slow"})
		gotID = id
		done <- err
	}()

	<-started
	require.NoError(client.Cancel(context.Background(), jsonrpc.NewIntID(1), "no longer needed"))

	err := <-done
	assert.Error(err)
	assert.True(gotID.Equal(jsonrpc.NewIntID(1)) || gotID.IsZero())
}
