package records

import (
	"context"
	"encoding/json"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	kinds map[Kind][]json.RawMessage
}

// NewMemoryStore keeps collections in process memory. Saved records are
// copied so callers cannot alias stored bytes.
func NewMemoryStore() Store {
	return &memoryStore{kinds: map[Kind][]json.RawMessage{}}
}

func (m *memoryStore) LoadAll(ctx context.Context, kind Kind) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("load", kind, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRecords(m.kinds[kind]), nil
}

func (m *memoryStore) SaveAll(ctx context.Context, kind Kind, recs []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return unavailable("save", kind, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[kind] = cloneRecords(recs)
	return nil
}

func cloneRecords(in []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(in))
	for i, r := range in {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out
}
