package keylock

import (
	"strings"
	"sync"
)

// Mutex serializes callers that share a key while letting different keys
// proceed in parallel. Entries are reference counted and dropped once the
// last holder releases them.
type Mutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Mutex {
	return &Mutex{locks: make(map[string]*entry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (m *Mutex) Lock(key string) func() {
	key = strings.TrimSpace(key)

	m.mu.Lock()
	item, ok := m.locks[key]
	if !ok {
		item = &entry{}
		m.locks[key] = item
	}
	item.refs++
	m.mu.Unlock()

	item.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			item.mu.Unlock()
			m.mu.Lock()
			item.refs--
			if item.refs == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
		})
	}
}

// Len reports how many keys are currently held or awaited.
func (m *Mutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
