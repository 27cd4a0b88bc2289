package kv

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process [DB] for tests.
//
// Update works on a copy of the data and swaps it in on success, so a failing
// fn leaves nothing behind. Set FailWrites to make every commit fail, which is
// how tests simulate a full or broken store.
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailWrites, when non-nil, is returned by every commit.
	FailWrites error

	closed bool
}

// NewMemory returns an empty [Memory].
func NewMemory() *Memory {
	return &Memory{data: map[string][]byte{}}
}

func (m *Memory) View(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	return fn(&memoryTx{data: m.data, readOnly: true})
}

func (m *Memory) Update(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	work := maps.Clone(m.data)

	err := fn(&memoryTx{data: work})
	if err != nil {
		return err
	}

	if m.FailWrites != nil {
		return m.FailWrites
	}

	m.data = work

	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

type memoryTx struct {
	data     map[string][]byte
	readOnly bool
}

func (t *memoryTx) Get(_ context.Context, key string) ([]byte, error) {
	val, ok := t.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	return slices.Clone(val), nil
}

func (t *memoryTx) Put(_ context.Context, key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}

	t.data[key] = slices.Clone(value)

	return nil
}

func (t *memoryTx) Delete(_ context.Context, key string) error {
	if t.readOnly {
		return ErrReadOnly
	}

	delete(t.data, key)

	return nil
}

func (t *memoryTx) Keys(_ context.Context, prefix string) ([]string, error) {
	keys := []string{}

	for key := range t.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}

	slices.Sort(keys)

	return keys, nil
}

// Compile-time interface check.
var _ DB = (*Memory)(nil)
