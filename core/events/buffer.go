package events

import (
	"strings"
	"sync"

	"escrowd/core/types"
)

// PayloadEvent is implemented by events that carry a structured payload in
// addition to their type tag.
type PayloadEvent interface {
	Event
	Event() *types.Event
}

// Buffer retains the most recent events in memory so read surfaces can expose
// a short history without an external indexer. Older entries are evicted once
// the capacity is exceeded.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	entries  []*types.Event
}

const defaultBufferCapacity = 1024

// NewBuffer constructs a ring buffer emitter. A non-positive capacity falls
// back to the default.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	return &Buffer{capacity: capacity}
}

// Emit implements the Emitter interface. Events without a payload are retained
// as bare type markers.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	payload := &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
	if pe, ok := evt.(PayloadEvent); ok {
		if inner := pe.Event(); inner != nil {
			payload = inner
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, payload)
	if len(b.entries) > b.capacity {
		b.entries = b.entries[len(b.entries)-b.capacity:]
	}
}

// List returns up to limit retained events whose type matches the supplied
// prefix, newest last. A zero or negative limit returns all matches.
func (b *Buffer) List(prefix string, limit int) []*types.Event {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	matched := make([]*types.Event, 0, len(b.entries))
	for _, entry := range b.entries {
		if prefix != "" && !strings.HasPrefix(entry.Type, prefix) {
			continue
		}
		matched = append(matched, entry)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}
