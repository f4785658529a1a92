package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory keeps everything in a map. Update holds the write lock for the
// whole callback and applies the buffered writes only on success.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) View(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return fn(&memoryTxn{base: m.data})
}

func (m *Memory) Update(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	txn := &memoryTxn{
		base:     m.data,
		writable: true,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]struct{}),
	}
	if err := fn(txn); err != nil {
		return err
	}
	for key := range txn.deletes {
		delete(m.data, key)
	}
	for key, value := range txn.writes {
		m.data[key] = value
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memoryTxn struct {
	base     map[string][]byte
	writable bool
	writes   map[string][]byte
	deletes  map[string]struct{}
}

func (t *memoryTxn) Get(key string) ([]byte, error) {
	if value, ok := t.writes[key]; ok {
		return append([]byte(nil), value...), nil
	}
	if _, ok := t.deletes[key]; ok {
		return nil, ErrNotFound
	}
	value, ok := t.base[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (t *memoryTxn) Set(key string, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	delete(t.deletes, key)
	t.writes[key] = append([]byte(nil), value...)
	return nil
}

func (t *memoryTxn) Delete(key string) error {
	if !t.writable {
		return ErrReadOnly
	}
	delete(t.writes, key)
	t.deletes[key] = struct{}{}
	return nil
}

func (t *memoryTxn) Iterate(prefix string, fn func(key string, value []byte) error) error {
	keys := make([]string, 0)
	seen := make(map[string]struct{})
	for key := range t.base {
		if strings.HasPrefix(key, prefix) {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for key := range t.writes {
		if _, ok := seen[key]; !ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, err := t.Get(key)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}
