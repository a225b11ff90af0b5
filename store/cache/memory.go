package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	defaultMemoryCapacity = 1000
	defaultTTL            = 10 * time.Minute
)

// Memory is a size-bounded LRU layer with per-entry expiry.
type Memory struct {
	capacity   int
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // front is most recently used
}

type entry struct {
	key       string
	value     string
	expiresAt time.Time
	element   *list.Element
}

var _ Layer = (*Memory)(nil)

// NewMemory creates an LRU layer. Non-positive arguments select the defaults.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Memory{
		capacity:   capacity,
		defaultTTL: ttl,
		now:        time.Now,
		entries:    make(map[string]*entry),
		order:      list.New(),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.now().After(e.expiresAt) {
		m.remove(e)
		return "", false, nil
	}
	m.order.MoveToFront(e.element)
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.value = value
		e.expiresAt = m.now().Add(ttl)
		m.order.MoveToFront(e.element)
		return nil
	}

	for len(m.entries) >= m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.remove(oldest.Value.(*entry))
	}

	e := &entry{key: key, value: value, expiresAt: m.now().Add(ttl)}
	e.element = m.order.PushFront(e)
	m.entries[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		m.remove(e)
	}
	return nil
}

func (*Memory) Close() error {
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// CleanupExpired removes expired entries and returns how many were removed.
func (m *Memory) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for _, e := range m.entries {
		if now.After(e.expiresAt) {
			m.remove(e)
			removed++
		}
	}
	return removed
}

// remove must be called with mu held.
func (m *Memory) remove(e *entry) {
	m.order.Remove(e.element)
	delete(m.entries, e.key)
}
