package stdio_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	assert "github.com/stretchr/testify/assert"

	stdio "github.com/mutablelogic/go-mcp/pkg/transport/stdio"
)

type recordingReceiver struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingReceiver) Deliver(ctx context.Context, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, string(data))
}

func (r *recordingReceiver) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func Test_run_delivers_one_message_per_frame(t *testing.T) {
	assert := assert.New(t)

	body1 := `{"jsonrpc":"2.0","id":1,"method":"ping"}`
	body2 := `{"jsonrpc":"2.0","id":2,"method":"ping"}`
	input := bytes.NewBufferString(frame(body1) + frame(body2))
	recv := &recordingReceiver{}

	ctx := context.Background()
	err := stdio.Run(ctx, input, recv)
	assert.NoError(err)

	msgs := recv.snapshot()
	if assert.Len(msgs, 2) {
		assert.Equal(body1, msgs[0])
		assert.Equal(body2, msgs[1])
	}
}

func Test_run_ignores_unknown_headers(t *testing.T) {
	assert := assert.New(t)

	body := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
	input := bytes.NewBufferString(fmt.Sprintf("X-Trace-Id: abc\r\nContent-Length: %d\r\n\r\n%s", len(body), body))
	recv := &recordingReceiver{}

	assert.NoError(stdio.Run(context.Background(), input, recv))
	assert.Len(recv.snapshot(), 1)
}

func Test_run_truncated_stream_returns_cleanly(t *testing.T) {
	assert := assert.New(t)

	input := bytes.NewBufferString("Content-Length: 40\r\n\r\n{\"jsonrpc\":\"2.0\"")
	recv := &recordingReceiver{}

	assert.NoError(stdio.Run(context.Background(), input, recv))
	assert.Len(recv.snapshot(), 0)
}

func Test_send_writes_content_length_framed_message(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	tr := stdio.New(&buf)
	defer tr.Close()

	body := `{"jsonrpc":"2.0","id":1,"result":{}}`
	assert.NoError(tr.Send(context.Background(), []byte(body)))

	assert.Eventually(func() bool {
		return buf.Len() > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(frame(body), buf.String())
}

func Test_send_after_close_errors(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	tr := stdio.New(&buf)
	assert.NoError(tr.Close())

	err := tr.Send(context.Background(), []byte("x"))
	assert.Error(err)
}
