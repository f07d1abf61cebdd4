package session

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	fields    map[string]string
	value     string
	expiresAt time.Time
}

// MemoryBackend keeps records in process memory. It backs tests and DEV_MODE;
// production deployments share a Redis or DynamoDB backend between handlers.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend creates an empty MemoryBackend using the wall clock.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock replaces the clock used for expiry checks.
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// lookup returns a live entry, evicting it if it has expired.
func (m *MemoryBackend) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryBackend) SetFields(_ context.Context, key string, fields map[string]string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{fields: maps.Clone(fields), expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) GetFields(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok || e.fields == nil {
		return nil, ErrKeyNotFound
	}
	return maps.Clone(e.fields), nil
}

func (m *MemoryBackend) SetValue(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryBackend) GetValue(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok || e.fields != nil {
		return "", ErrKeyNotFound
	}
	return e.value, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key)
	delete(m.entries, key)
	return ok, nil
}

func (m *MemoryBackend) ScanValues(_ context.Context, prefix string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	for key := range m.entries {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e, ok := m.lookup(key); ok && e.fields == nil {
			out[key] = e.value
		}
	}
	return out, nil
}
