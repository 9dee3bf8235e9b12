package sse_test

import (
	"testing"

	assert "github.com/stretchr/testify/assert"

	sse "github.com/mutablelogic/go-mcp/pkg/sse"
)

func Test_parser_simple(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte("data: hello world\n\n"))
	assert.Len(events, 1)
	assert.Equal("hello world", events[0].Data)
	assert.Equal("", events[0].Event)
	assert.Equal("", events[0].ID)
}

func Test_parser_event_type(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte("event: message\ndata: hello\n\n"))
	assert.Len(events, 1)
	assert.Equal("message", events[0].Event)
	assert.Equal("hello", events[0].Data)
}

func Test_parser_multiline_data(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte("data: line 1\ndata: line 2\ndata: line 3\n\n"))
	assert.Len(events, 1)
	assert.Equal("line 1\nline 2\nline 3", events[0].Data)
}

func Test_parser_id_sticks(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte("id: 123\ndata: test\n\n"))
	assert.Len(events, 1)
	assert.Equal("123", events[0].ID)
	assert.Equal("123", p.LastEventID())

	// A subsequent event with no id inherits the last seen id.
	events = p.Feed([]byte("data: again\n\n"))
	assert.Len(events, 1)
	assert.Equal("123", events[0].ID)
}

func Test_parser_retry(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte("retry: 5000\ndata: test\n\n"))
	assert.Len(events, 1)
	assert.EqualValues(5000, events[0].Retry)
}

func Test_parser_comments_ignored(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte(": this is a comment\ndata: actual data\n\n"))
	assert.Len(events, 1)
	assert.Equal("actual data", events[0].Data)
}

func Test_parser_empty_data_blank_line_discards(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte("event: ping\n\n"))
	assert.Len(events, 0)
}

func Test_parser_id_with_nul_ignored(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	events := p.Feed([]byte("id: a\x00b\ndata: x\n\n"))
	assert.Len(events, 1)
	assert.Equal("", events[0].ID)
	assert.Equal("", p.LastEventID())
}

func Test_parser_incremental_matches_single_feed(t *testing.T) {
	assert := assert.New(t)

	full := "event: message\ndata: {\"a\":1}\n\n"

	single := sse.New()
	wantEvents := single.Feed([]byte(full))

	// Exercise several arbitrary partitions of the same byte string.
	partitions := [][]string{
		{"event: m", "essage\ndata: ", "{\"a\":1}\n\n"},
		{string(full[:5]), full[5:10], full[10:]},
		{full[:1], full[1:2], full[2:]},
	}

	for _, parts := range partitions {
		p := sse.New()
		var got []sse.Event
		for _, part := range parts {
			got = append(got, p.Feed([]byte(part))...)
		}
		assert.Equal(wantEvents, got)
	}
}

func Test_parser_scenario_E(t *testing.T) {
	// Concrete scenario E from spec.md §8.
	assert := assert.New(t)

	p := sse.New()
	var events []sse.Event
	events = append(events, p.Feed([]byte("event: m"))...)
	events = append(events, p.Feed([]byte("essage\ndata: "))...)
	events = append(events, p.Feed([]byte("{\"a\":1}\n\n"))...)

	assert.Len(events, 1)
	assert.Equal("message", events[0].Event)
	assert.Equal(`{"a":1}`, events[0].Data)
}

func Test_parser_never_panics_on_malformed_input(t *testing.T) {
	assert := assert.New(t)

	p := sse.New()
	assert.NotPanics(func() {
		p.Feed([]byte("\r\n\r\n:::\nretry: notanumber\nid: \nfield-with-no-colon\n\n"))
	})
}

func Test_writer_roundtrip_through_parser(t *testing.T) {
	assert := assert.New(t)

	var buf []byte
	bufWriter := &sliceWriter{&buf}
	w := sse.NewWriter(bufWriter)

	assert.NoError(w.WriteEvent(sse.Event{ID: "42", Event: "message", Data: "line1\nline2", Retry: 1000}))

	p := sse.New()
	events := p.Feed(buf)
	assert.Len(events, 1)
	assert.Equal("42", events[0].ID)
	assert.Equal("message", events[0].Event)
	assert.Equal("line1\nline2", events[0].Data)
	assert.EqualValues(1000, events[0].Retry)
}

type sliceWriter struct {
	buf *[]byte
}

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}
