package jsonrpc_test

import (
	"encoding/json"
	"testing"

	assert "github.com/stretchr/testify/assert"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
)

func Test_id_roundtrip(t *testing.T) {
	assert := assert.New(t)

	cases := []jsonrpc.ID{
		jsonrpc.NewIntID(1),
		jsonrpc.NewStringID("1"),
		jsonrpc.NewStringID("abc"),
		jsonrpc.ID{},
	}

	for _, id := range cases {
		data, err := json.Marshal(id)
		assert.NoError(err)

		var out jsonrpc.ID
		assert.NoError(json.Unmarshal(data, &out))
		assert.True(id.Equal(out), "roundtrip mismatch for %#v", id)
	}
}

func Test_id_tag_distinct(t *testing.T) {
	assert := assert.New(t)

	intID := jsonrpc.NewIntID(1)
	strID := jsonrpc.NewStringID("1")

	assert.False(intID.Equal(strID))
	assert.NotEqual(intID.Key(), strID.Key())
}

func Test_message_kind(t *testing.T) {
	assert := assert.New(t)

	req, err := jsonrpc.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	assert.NoError(err)
	assert.Equal(jsonrpc.KindRequest, req.Kind())

	notif, err := jsonrpc.DecodeMessage([]byte(`{"jsonrpc":"2.0","method":"notifications/cancelled"}`))
	assert.NoError(err)
	assert.Equal(jsonrpc.KindNotification, notif.Kind())

	resp, err := jsonrpc.DecodeMessage([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	assert.NoError(err)
	assert.Equal(jsonrpc.KindResponse, resp.Kind())
}

func Test_decode_body_batch(t *testing.T) {
	assert := assert.New(t)

	msgs, err := jsonrpc.DecodeBody([]byte(`[{"jsonrpc":"2.0","id":1,"method":"ping"},{"jsonrpc":"2.0","method":"notifications/cancelled"}]`))
	assert.NoError(err)
	assert.Len(msgs, 2)
	assert.Equal(jsonrpc.KindRequest, msgs[0].Kind())
	assert.Equal(jsonrpc.KindNotification, msgs[1].Kind())
}

func Test_decode_body_empty_batch_invalid(t *testing.T) {
	assert := assert.New(t)

	_, err := jsonrpc.DecodeBody([]byte(`[]`))
	assert.Error(err)
}

func Test_encode_responses_single_vs_batch(t *testing.T) {
	assert := assert.New(t)

	one, err := jsonrpc.EncodeResponses([]*jsonrpc.Response{
		jsonrpc.NewResultResponse(jsonrpc.NewIntID(1), json.RawMessage(`{}`)),
	})
	assert.NoError(err)
	assert.NotContains(string(one), "[")

	many, err := jsonrpc.EncodeResponses([]*jsonrpc.Response{
		jsonrpc.NewResultResponse(jsonrpc.NewIntID(1), json.RawMessage(`{}`)),
		jsonrpc.NewResultResponse(jsonrpc.NewIntID(2), json.RawMessage(`{}`)),
	})
	assert.NoError(err)
	assert.Contains(string(many), "[")
}
