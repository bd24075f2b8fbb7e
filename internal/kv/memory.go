package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process Store used by tests and ephemeral deployments.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]memEntry), now: time.Now}
}

func (m *Memory) live(e memEntry, now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// View runs fn against a read-only snapshot.
func (m *Memory) View(ctx context.Context, fn func(tx ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{m: m, now: m.now()})
}

// Update runs fn in a transaction. Writes are buffered and applied only
// if fn returns nil.
func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, now: m.now(), writes: make(map[string]*memEntry)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, e := range tx.writes {
		if e == nil {
			delete(m.data, k)
		} else {
			m.data[k] = *e
		}
	}
	return nil
}

// PurgeExpired removes expired entries.
func (m *Memory) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for k, e := range m.data {
		if !m.live(e, now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed, nil
}

// Ping always succeeds.
func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// memTx overlays pending writes on the base map. A nil entry in writes
// marks a deletion.
type memTx struct {
	m      *Memory
	now    time.Time
	writes map[string]*memEntry
}

func (t *memTx) Get(key string) (string, error) {
	if e, ok := t.writes[key]; ok {
		if e == nil {
			return "", ErrNotFound
		}
		return e.value, nil
	}
	e, ok := t.m.data[key]
	if !ok || !t.m.live(e, t.now) {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (t *memTx) Keys(prefix string) ([]string, error) {
	var keys []string
	for k, e := range t.m.data {
		if !strings.HasPrefix(k, prefix) || !t.m.live(e, t.now) {
			continue
		}
		if w, ok := t.writes[k]; ok {
			if w == nil {
				continue
			}
		}
		keys = append(keys, k)
	}
	for k, w := range t.writes {
		if w == nil || !strings.HasPrefix(k, prefix) {
			continue
		}
		if e, ok := t.m.data[k]; ok && t.m.live(e, t.now) {
			continue // already collected above
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *memTx) TTL(key string) (time.Duration, error) {
	var e memEntry
	if w, ok := t.writes[key]; ok {
		if w == nil {
			return 0, ErrNotFound
		}
		e = *w
	} else {
		base, ok := t.m.data[key]
		if !ok || !t.m.live(base, t.now) {
			return 0, ErrNotFound
		}
		e = base
	}
	if e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(t.now), nil
}

func (t *memTx) Set(key, value string, ttl time.Duration) error {
	e := &memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = t.now.Add(ttl)
	}
	t.writes[key] = e
	return nil
}

func (t *memTx) SetNX(key, value string, ttl time.Duration) (bool, error) {
	if _, err := t.Get(key); err == nil {
		return false, nil
	}
	return true, t.Set(key, value, ttl)
}

func (t *memTx) Delete(key string) error {
	t.writes[key] = nil
	return nil
}
