// Package records is the durable mapping from an entity kind to an ordered
// collection of records. Callers load and replace whole collections; any
// read-modify-write must hold the kind's lock from Locks.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

type Kind string

const (
	KindQuestion  Kind = "questions"
	KindResult    Kind = "results"
	KindCandidate Kind = "candidates"
)

// ErrUnavailable marks a failure to read or write state. It is distinct from
// a legitimately empty collection.
var ErrUnavailable = errors.New("record store unavailable")

type Store interface {
	// LoadAll returns an empty slice when nothing has been saved for kind yet.
	LoadAll(ctx context.Context, kind Kind) ([]json.RawMessage, error)
	// SaveAll replaces the whole collection for kind.
	SaveAll(ctx context.Context, kind Kind, recs []json.RawMessage) error
}

func unavailable(op string, kind Kind, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, kind, err)
}

// Load decodes every record of kind into T.
func Load[T any](ctx context.Context, s Store, kind Kind) ([]T, error) {
	raw, err := s.LoadAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			return nil, unavailable("decode", kind, fmt.Errorf("record %d: %w", i, err))
		}
		out = append(out, v)
	}
	return out, nil
}

// Save encodes items and replaces the collection for kind.
func Save[T any](ctx context.Context, s Store, kind Kind, items []T) error {
	raw := make([]json.RawMessage, 0, len(items))
	for i := range items {
		b, err := json.Marshal(items[i])
		if err != nil {
			return fmt.Errorf("encode %s record %d: %w", kind, i, err)
		}
		raw = append(raw, b)
	}
	return s.SaveAll(ctx, kind, raw)
}

// Fence serializes a kind across processes that share one backing store.
// Acquire blocks until the kind is held or ctx ends.
type Fence interface {
	Acquire(ctx context.Context, kind Kind) (release func(), err error)
}

// Locks hands out one mutex per kind so that a read-modify-write on one
// collection never blocks another. sync.Mutex switches to starvation mode
// under contention, so waiters are served in bounded time. With a Fence the
// in-process mutex is taken first, then the fence.
type Locks struct {
	mu    sync.Mutex
	kinds map[Kind]*sync.Mutex
	fence Fence
}

type LocksOption func(*Locks)

// WithFence adds a cross-process lock, needed when several instances write
// to the same database.
func WithFence(f Fence) LocksOption { return func(l *Locks) { l.fence = f } }

func NewLocks(opts ...LocksOption) *Locks {
	l := &Locks{kinds: map[Kind]*sync.Mutex{}}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Lock blocks until kind is held and returns the matching unlock. A fence
// failure releases the mutex and returns an error wrapping ErrUnavailable.
func (l *Locks) Lock(ctx context.Context, kind Kind) (unlock func(), err error) {
	l.mu.Lock()
	m, ok := l.kinds[kind]
	if !ok {
		m = &sync.Mutex{}
		l.kinds[kind] = m
	}
	l.mu.Unlock()

	m.Lock()
	if l.fence == nil {
		return m.Unlock, nil
	}
	release, err := l.fence.Acquire(ctx, kind)
	if err != nil {
		m.Unlock()
		return nil, unavailable("lock", kind, err)
	}
	return func() {
		release()
		m.Unlock()
	}, nil
}
