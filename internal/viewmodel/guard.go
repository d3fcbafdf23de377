package viewmodel

import (
	"context"
	"strconv"
	"sync"
)

// RegistrationGuard marks registrations as in flight so a repeated trigger does
// not issue a second POST while the first is pending.
type RegistrationGuard interface {
	// TryAcquire claims key. ok is false when the key is already held. The
	// returned release must be called once the registration completes.
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// MemoryGuard is a process local RegistrationGuard.
type MemoryGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewMemoryGuard constructs an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inflight: make(map[string]struct{})}
}

// TryAcquire implements RegistrationGuard.
func (g *MemoryGuard) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inflight[key]; held {
		return nil, false, nil
	}
	g.inflight[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, true, nil
}

// GuardKey builds the guard key for a registration of eventID within scope.
func GuardKey(scope string, eventID int64) string {
	id := strconv.FormatInt(eventID, 10)
	if scope == "" {
		return id
	}
	return scope + ":" + id
}
