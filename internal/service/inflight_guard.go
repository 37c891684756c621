package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InflightGuard rejects a write while an identical one is still running.
type InflightGuard interface {
	// Acquire returns a release func when key was free, or ok=false when
	// another holder has it.
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

func enrollmentKey(studentID, subjectID int64) string {
	return fmt.Sprintf("%d:%d", studentID, subjectID)
}

// MemoryInflightGuard tracks held keys in process memory.
type MemoryInflightGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryInflightGuard constructs an empty guard.
func NewMemoryInflightGuard() *MemoryInflightGuard {
	return &MemoryInflightGuard{held: make(map[string]struct{})}
}

// Acquire implements InflightGuard.
func (g *MemoryInflightGuard) Acquire(_ context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return nil, false, nil
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true, nil
}

type inflightStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// SharedInflightGuard shares held keys across replicas through a TTL store.
// A local guard is consulted first so same-process duplicates never reach
// the store, and it keeps working when the store is unreachable.
type SharedInflightGuard struct {
	store  inflightStore
	local  *MemoryInflightGuard
	ttl    time.Duration
	logger *zap.Logger
}

// NewSharedInflightGuard constructs the guard. ttl bounds how long a crashed
// holder can block the key.
func NewSharedInflightGuard(store inflightStore, ttl time.Duration, logger *zap.Logger) *SharedInflightGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SharedInflightGuard{store: store, local: NewMemoryInflightGuard(), ttl: ttl, logger: logger}
}

// Acquire implements InflightGuard.
func (g *SharedInflightGuard) Acquire(ctx context.Context, key string) (func(), bool, error) {
	releaseLocal, ok, _ := g.local.Acquire(ctx, key)
	if !ok {
		return nil, false, nil
	}
	token, ok, err := g.store.Acquire(ctx, key, g.ttl)
	if err != nil {
		g.logger.Warn("shared in-flight guard unavailable, using local guard only", zap.String("key", key), zap.Error(err))
		return releaseLocal, true, nil
	}
	if !ok {
		releaseLocal()
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.store.Release(ctx, key, token); err != nil {
			g.logger.Warn("release shared in-flight guard", zap.String("key", key), zap.Error(err))
		}
		releaseLocal()
	}, true, nil
}
