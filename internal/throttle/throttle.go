// Package throttle limits login attempts per key within a window.
//
// An attempt is counted before the credentials are checked, so concurrent
// requests cannot all slip past the limit. A successful login resets the
// count; what remains counted is failures since the last success.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Limiter tracks login attempts for a key.
type Limiter interface {
	// Attempt records one attempt for key and reports whether it may
	// proceed. It returns false once key has used up its attempts for
	// the current window.
	Attempt(ctx context.Context, key string) (bool, error)
	// Reset forgets all attempts for key.
	Reset(ctx context.Context, key string) error
}

// Memory is an in-process Limiter for single-instance deployments.
type Memory struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	nextSweep time.Time
}

type entry struct {
	count   int
	expires time.Time
}

// NewMemory allows up to max attempts per key within window.
func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func (m *Memory) Attempt(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	e := m.live(key)
	if e == nil {
		e = &entry{expires: m.now().Add(m.window)}
		m.entries[key] = e
	}
	if e.count >= m.max {
		return false, nil
	}
	e.count++
	return true, nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// live returns the unexpired entry for key. Callers hold m.mu.
func (m *Memory) live(key string) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil
	}
	return e
}

// sweep drops every expired entry, at most once per window. Callers hold m.mu.
func (m *Memory) sweep() {
	now := m.now()
	if now.Before(m.nextSweep) {
		return
	}
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.nextSweep = now.Add(m.window)
}
