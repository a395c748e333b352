// Package session keeps the document being edited in an opaque key-value store, so an
// editing session survives process restarts. The whole document is the unit of save and
// restore.
package session

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Store.Get for a missing key.
	ErrNotFound = errors.New("session: key not found")
	// ErrUnavailable wraps backend failures (unreachable server, unwritable directory).
	ErrUnavailable = errors.New("session: store unavailable")
)

// Store is the key-value contract the Manager persists through.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Ping reports whether the store can currently be written.
	Ping(ctx context.Context) error
}

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Ping always succeeds unless ctx is done.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
