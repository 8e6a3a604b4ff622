// Package cache provides the injected cache used by catalog search.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache stores values by key. Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	// Invalidate drops every entry whose key starts with prefix. An empty
	// prefix drops everything.
	Invalidate(prefix string)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process TTL cache with a size bound.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxItems int
	entries  map[string]entry
	now      func() time.Time
}

// NewMemory returns a cache whose entries expire after ttl. When maxItems is
// reached, expired entries are swept and then the oldest entry is evicted.
func NewMemory(ttl time.Duration, maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = 1024
	}
	return &Memory{
		ttl:      ttl,
		maxItems: maxItems,
		entries:  make(map[string]entry),
		now:      time.Now,
	}
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxItems {
		m.evictLocked()
	}
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(m.ttl)}
}

func (m *Memory) Invalidate(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix == "" {
		m.entries = make(map[string]entry)
		return
	}
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
}

// Len returns the number of live and expired entries held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) evictLocked() {
	now := m.now()
	var oldestKey string
	var oldest time.Time
	for key, e := range m.entries {
		if m.ttl > 0 && now.After(e.expiresAt) {
			delete(m.entries, key)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = key, e.expiresAt
		}
	}
	if len(m.entries) >= m.maxItems && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(string) (any, bool) { return nil, false }
func (Noop) Set(string, any)        {}
func (Noop) Invalidate(string)      {}
