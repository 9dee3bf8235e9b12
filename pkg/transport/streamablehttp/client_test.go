package streamablehttp_test

import (
	"context"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	mcptype "github.com/mutablelogic/go-mcp/pkg/mcptype"
	streamablehttp "github.com/mutablelogic/go-mcp/pkg/transport/streamablehttp"
)

var testClientInfo = mcptype.Implementation{Name: "go-llm-test", Version: "0.0.0"}

func Test_client_initialize_roundtrip(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	c, err := streamablehttp.New(ts.URL, testClientInfo, mcptype.ClientCapabilities{})
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Initialize(context.Background())
	assert.NoError(err)
	if assert.NotNil(result) {
		assert.Equal("test-server", result.ServerInfo.Name)
	}
}

func Test_client_ping_after_initialize(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	c, err := streamablehttp.New(ts.URL, testClientInfo, mcptype.ClientCapabilities{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Initialize(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err = c.Call(ctx, mcptype.MethodPing, nil)
	assert.NoError(err)
}

func Test_client_bad_url_construction_fails(t *testing.T) {
	assert := assert.New(t)

	_, err := streamablehttp.New("", testClientInfo, mcptype.ClientCapabilities{})
	assert.Error(err)
}

func Test_client_double_initialize_rejected(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t)

	c, err := streamablehttp.New(ts.URL, testClientInfo, mcptype.ClientCapabilities{})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Initialize(context.Background())
	require.NoError(t, err)

	_, err = c.Initialize(context.Background())
	assert.Error(err)
}

func Test_client_stateless_server_roundtrip(t *testing.T) {
	assert := assert.New(t)
	ts, _ := newTestServer(t, streamablehttp.WithStateless())

	c, err := streamablehttp.New(ts.URL, testClientInfo, mcptype.ClientCapabilities{})
	require.NoError(t, err)
	defer c.Close()

	result, err := c.Initialize(context.Background())
	assert.NoError(err)
	assert.NotNil(result)
}
