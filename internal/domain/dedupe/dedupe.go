// Package dedupe serialises work per key so that at most one scoring run
// touches a session at a time within a process.
package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrGuardFull is returned when the guard already tracks its maximum number of keys.
var ErrGuardFull = errors.New("session guard full")

// Guard hands out exclusive, per-key ownership.
type Guard interface {
	// Acquire blocks until the caller owns id or ctx is done. The returned
	// release is idempotent.
	Acquire(ctx context.Context, id string) (release func(), err error)

	// Size is the number of keys currently owned.
	Size() int64
}

// slot is closed when its owner releases the key.
type slot struct {
	done chan struct{}
}

// inMemoryGuard keeps one slot per owned key.
// For bounded mode (maxSize > 0) acquiring a new key fails once maxSize keys are owned.
type inMemoryGuard struct {
	mu      sync.Mutex
	held    map[string]*slot
	maxSize int
	size    atomic.Int64
}

// NewInMemoryGuard creates a guard with configuration options.
func NewInMemoryGuard(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: 100_000,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.held = make(map[string]*slot)
	return g
}

// claim takes id if free. It returns the current owner's slot otherwise.
func (g *inMemoryGuard) claim(id string) (release func(), owner *slot, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, busy := g.held[id]; busy {
		return nil, s, nil
	}
	if g.maxSize > 0 && len(g.held) >= g.maxSize {
		return nil, nil, ErrGuardFull
	}
	s := &slot{done: make(chan struct{})}
	g.held[id] = s
	g.size.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.held[id] == s {
				delete(g.held, id)
				g.size.Add(-1)
			}
			g.mu.Unlock()
			close(s.done)
		})
	}, nil, nil
}

func (g *inMemoryGuard) Acquire(ctx context.Context, id string) (func(), error) {
	for {
		release, owner, err := g.claim(id)
		if err != nil {
			return nil, err
		}
		if release != nil {
			return release, nil
		}
		select {
		case <-owner.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}
