package materializer

import (
	"context"
	"sync"

	"go.trai.ch/pipecache/internal/core/domain"
)

type memoEntry struct {
	done  chan struct{}
	value domain.Value
	ok    bool
}

// Memo maps combined cache keys to the values produced earlier in the same run.
// A key is either reserved by the caller computing it or completed.
type Memo struct {
	mu      sync.Mutex
	entries map[string]*memoEntry
}

// NewMemo creates an empty Memo.
func NewMemo() *Memo {
	return &Memo{entries: make(map[string]*memoEntry)}
}

// LookupOrReserve returns the memoized value for key with found set to true.
// Otherwise it reserves key for the caller, who must later call Store or Release.
// While another caller holds the reservation it blocks until that caller finishes
// or ctx is done.
func (m *Memo) LookupOrReserve(ctx context.Context, key string) (domain.Value, bool, error) {
	for {
		m.mu.Lock()
		e, exists := m.entries[key]
		if !exists {
			m.entries[key] = &memoEntry{done: make(chan struct{})}
			m.mu.Unlock()
			return nil, false, nil
		}
		m.mu.Unlock()

		select {
		case <-e.done:
			if e.ok {
				return e.value, true, nil
			}
			// Released after a failure: race for a fresh reservation.
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Store completes the reservation of key with v and wakes up waiters.
func (m *Memo) Store(key string, v domain.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entries[key]
	if !exists {
		e = &memoEntry{done: make(chan struct{})}
		m.entries[key] = e
	}
	if e.ok {
		return
	}
	e.value = v
	e.ok = true
	close(e.done)
}

// Release drops an uncompleted reservation so that a waiter can take it over.
func (m *Memo) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entries[key]
	if !exists || e.ok {
		return
	}
	delete(m.entries, key)
	close(e.done)
}

// Len returns the number of completed entries.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if e.ok {
			n++
		}
	}
	return n
}
