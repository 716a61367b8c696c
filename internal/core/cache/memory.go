package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultCapacity bounds the in-process cache when no capacity is configured.
const DefaultCapacity = 100

type memoryEntry struct {
	value      []byte
	insertedAt time.Time
	expiresAt  time.Time
}

// Memory is a bounded in-process cache with FIFO eviction and lazy expiry.
//
// When full, Set evicts the single oldest-inserted entry before inserting.
// Overwriting an existing key keeps its original insertion position. Get on
// an expired entry removes it and reports a miss. All operations are total.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]*memoryEntry
	order    []string
	capacity int
	hits     int64
	misses   int64

	// Clock is overridable for tests.
	Clock func() time.Time
}

// NewMemory returns a Memory cache bounded to capacity entries.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		entries:  make(map[string]*memoryEntry, capacity),
		capacity: capacity,
	}
}

// Get returns the payload for key when present and unexpired.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false, nil
	}

	if !m.now().Before(entry.expiresAt) {
		m.removeLocked(key)
		m.misses++
		return nil, false, nil
	}

	m.hits++
	return entry.value, true, nil
}

// Set stores value under key for ttl, evicting the oldest entry when full.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if existing, ok := m.entries[key]; ok {
		existing.value = value
		existing.expiresAt = now.Add(ttl)
		return nil
	}

	if len(m.entries) >= m.capacity {
		m.evictOldestLocked()
	}

	m.entries[key] = &memoryEntry{
		value:      value,
		insertedAt: now,
		expiresAt:  now.Add(ttl),
	}
	m.order = append(m.order, key)
	return nil
}

// Delete removes a single key if present.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	return nil
}

// Clear removes every entry.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry, m.capacity)
	m.order = m.order[:0]
	return nil
}

// Len reports the number of live entries, expiring lazily as it counts.
func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneExpiredLocked()
	return len(m.entries), nil
}

// Stats reports entry counts and hit/miss totals.
func (m *Memory) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneExpiredLocked()

	stats := Stats{
		Entries:  len(m.entries),
		Capacity: m.capacity,
		Hits:     m.hits,
		Misses:   m.misses,
	}
	if len(m.order) > 0 {
		if entry, ok := m.entries[m.order[0]]; ok {
			oldest := entry.insertedAt
			stats.Oldest = &oldest
		}
	}
	return stats, nil
}

func (m *Memory) evictOldestLocked() {
	for len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		if _, ok := m.entries[oldest]; ok {
			delete(m.entries, oldest)
			return
		}
	}
}

func (m *Memory) removeLocked(key string) {
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Memory) pruneExpiredLocked() {
	now := m.now()
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			m.removeLocked(key)
		}
	}
}

func (m *Memory) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now().UTC()
}
