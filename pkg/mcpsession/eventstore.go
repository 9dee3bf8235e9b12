package mcpsession

import (
	"context"
	"fmt"
	"sync"

	llm "github.com/mutablelogic/go-mcp"
	sse "github.com/mutablelogic/go-mcp/pkg/sse"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// StoredEvent pairs an SSE frame with the per-stream monotonic id it was
// stored under, so a reconnecting client's Last-Event-ID can be resolved
// back to a position in the stream.
type StoredEvent struct {
	ID   string
	Data string
}

// EventStore buffers SSE frames per logical stream (one stream per POST
// response or per the server-initiated GET stream) so a client that drops
// its connection can resume with Last-Event-ID instead of losing events.
type EventStore interface {
	// Append stores data under a new monotonic id for streamID and returns
	// the event's id.
	Append(ctx context.Context, streamID string, data string) (eventID string, err error)

	// ReplayAfter returns every event stored after lastEventID, in order.
	// An empty lastEventID replays the whole buffered stream.
	ReplayAfter(ctx context.Context, streamID string, lastEventID string) ([]StoredEvent, error)

	// Drop discards a stream's buffered events, e.g. once a client
	// acknowledges it no longer needs them or the session is deleted.
	Drop(ctx context.Context, streamID string) error
}

///////////////////////////////////////////////////////////////////////////////
// MEMORY EVENT STORE

type memoryStream struct {
	counter uint64
	events  []StoredEvent
}

// MemoryEventStore is an in-memory, unbounded-per-stream EventStore. It is
// intended for a single-process server or for tests; a production
// multi-replica deployment would back this with shared storage instead.
type MemoryEventStore struct {
	mu      sync.Mutex
	streams map[string]*memoryStream
}

var _ EventStore = (*MemoryEventStore)(nil)

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{streams: make(map[string]*memoryStream)}
}

func (m *MemoryEventStore) Append(_ context.Context, streamID string, data string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[streamID]
	if !ok {
		s = &memoryStream{}
		m.streams[streamID] = s
	}
	s.counter++
	id := fmt.Sprintf("%s:%d", streamID, s.counter)
	s.events = append(s.events, StoredEvent{ID: id, Data: data})
	return id, nil
}

func (m *MemoryEventStore) ReplayAfter(_ context.Context, streamID string, lastEventID string) ([]StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[streamID]
	if !ok {
		return nil, llm.ErrNotFound.Withf("event stream %q", streamID)
	}
	if lastEventID == "" {
		out := make([]StoredEvent, len(s.events))
		copy(out, s.events)
		return out, nil
	}

	for i, ev := range s.events {
		if ev.ID == lastEventID {
			out := make([]StoredEvent, len(s.events)-i-1)
			copy(out, s.events[i+1:])
			return out, nil
		}
	}
	// Last-Event-ID not found (e.g. buffer was trimmed): replay everything
	// we still have rather than silently dropping events.
	out := make([]StoredEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (m *MemoryEventStore) Drop(_ context.Context, streamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streams, streamID)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// HELPERS

// EncodeFrame renders a StoredEvent as an sse.Event ready for sse.Writer.
func EncodeFrame(ev StoredEvent) sse.Event {
	return sse.Event{ID: ev.ID, Event: "message", Data: ev.Data}
}
