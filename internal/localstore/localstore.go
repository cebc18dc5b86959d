// Package localstore holds client-local state: the per-visitor session
// (cart, applied discount) and the per-instance durable values (order
// counter, notification phone number).
package localstore

import (
	"errors"
	"strconv"
	"sync"
)

// KV is a string key-value container. Callers decide whether failures matter.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Counter hands out increasing integers.
type Counter interface {
	Incr(key string) (int64, error)
}

// ErrUnavailable is returned by a Memory store switched to failing mode.
var ErrUnavailable = errors.New("storage unavailable")

// Memory is an in-process KV and Counter.
type Memory struct {
	mu      sync.Mutex
	values  map[string]string
	failing bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

// SetFailing makes every subsequent operation fail with ErrUnavailable.
func (m *Memory) SetFailing(failing bool) {
	m.mu.Lock()
	m.failing = failing
	m.mu.Unlock()
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return "", false, ErrUnavailable
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return ErrUnavailable
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) Incr(key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, ErrUnavailable
	}
	n, _ := strconv.ParseInt(m.values[key], 10, 64)
	n++
	m.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}
