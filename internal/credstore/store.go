// Package credstore provides durable key-value storage for the serialized
// session. Only the session manager writes here; every other component
// reads session state through the manager. Keys are the four bootstrap
// values (token, refresh_token, role, user_id) plus the optional driver id.
package credstore

import (
	"context"
	"errors"
	"sync"
)

// Well-known keys for the persisted session.
const (
	KeyToken        = "token"
	KeyRefreshToken = "refresh_token"
	KeyRole         = "role"
	KeyUserID       = "user_id"
	KeyDriverID     = "driver_id"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("credstore: key not found")

// Store is durable key-value storage for session credentials.
// Implementations must tolerate concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Memory is an in-memory Store for tests and ephemeral sessions.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}

	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value

	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)

	return nil
}

func (m *Memory) Close() error {
	return nil
}

// Len reports the number of stored keys. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.values)
}
