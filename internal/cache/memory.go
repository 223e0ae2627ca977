package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Memory implements Store in process memory. Used in tests and when the
// service runs without redis; expiry is evaluated lazily on read.
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	lists map[string]memoryList

	// Now is the clock used for TTL checks. Tests override it.
	Now func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

type memoryList struct {
	entries   [][]byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		lists: make(map[string]memoryList),
		Now:   time.Now,
	}
}

func (m *Memory) expired(at time.Time) bool {
	return !at.IsZero() && m.Now().After(at)
}

func (m *Memory) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || m.expired(it.expiresAt) {
		return false, nil
	}
	if err := json.Unmarshal(it.data, dst); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *Memory) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = m.Now().Add(ttl)
	}
	m.mu.Lock()
	m.items[key] = memoryItem{data: b, expiresAt: exp}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.items, k)
		delete(m.lists, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendList(ctx context.Context, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	if m.expired(l.expiresAt) {
		l = memoryList{}
	}
	l.entries = append(l.entries, b)
	if ttl > 0 {
		l.expiresAt = m.Now().Add(ttl)
	}
	m.lists[key] = l
	return nil
}

func (m *Memory) GetList(ctx context.Context, key string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.lists[key]
	if !ok || m.expired(l.expiresAt) {
		return nil, nil
	}
	out := make([][]byte, len(l.entries))
	copy(out, l.entries)
	return out, nil
}
