package ticket

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same semantics as the
// Redis-backed one. It serves tests and single-node runs without a
// REDIS_URL configured.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memValue
	buckets map[string][]Entry
	now     func() time.Time
}

type memValue struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memValue),
		buckets: make(map[string][]Entry),
		now:     time.Now,
	}
}

// SetNow overrides the store's clock, for expiry tests.
func (m *MemoryStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *MemoryStore) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := memValue{data: data}
	if ttl > 0 {
		v.expiresAt = m.now().Add(ttl)
	}
	m.values[key] = v
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string, out any) error {
	m.mu.Lock()
	v, ok := m.values[key]
	if ok && !v.expiresAt.IsZero() && !m.now().Before(v.expiresAt) {
		delete(m.values, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(v.data, out)
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Push(ctx context.Context, bucket string, e Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl > 0 {
		e.ExpiresAt = m.now().Add(ttl)
	}
	m.buckets[bucket] = append(m.buckets[bucket], e)
	return nil
}

func (m *MemoryStore) Pop(ctx context.Context, bucket, skipOwner string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.buckets[bucket]
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		m.buckets[bucket] = queue
		if !e.ExpiresAt.IsZero() && !m.now().Before(e.ExpiresAt) {
			continue
		}
		if skipOwner != "" && e.Owner == skipOwner {
			continue
		}
		return &e, nil
	}
	return nil, nil
}

func (m *MemoryStore) RemoveOwner(ctx context.Context, bucket, owner string) error {
	if owner == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.buckets[bucket]
	kept := queue[:0]
	for _, e := range queue {
		if e.Owner != owner {
			kept = append(kept, e)
		}
	}
	m.buckets[bucket] = kept
	return nil
}
