// Package guard protects advancement processing against duplicate
// notice creation. It tracks which (dancer, level, dance) tuples have
// already produced a notice and serializes concurrent finalization
// passes touching the same dancer.
package guard

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Guard records advancement keys to ensure at-most-once notice
// creation and hands out per-dancer critical sections.
type Guard interface {
	// SeenAndRecord atomically checks if key was seen and records it if
	// not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key, allowing it to be recorded again. Used
	// when a notice was claimed but failed to persist.
	Unrecord(ctx context.Context, key string)

	// Do runs fn while holding the lock for key. Two finalization calls
	// racing for the same dancer serialize here.
	Do(key string, fn func() error) error

	Size() int64
}

// Default guard configuration constants.
const (
	defaultMaxSize   = 100000
	defaultLockCount = 64
)

// inMemoryGuard implements Guard with a bounded seen-set (FIFO
// eviction of the oldest keys) and a fixed shard of keyed mutexes.
type inMemoryGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order for eviction
	maxSize int
	size    atomic.Int64

	locks []sync.Mutex
}

// Option applies a configuration option to the in-memory guard.
type Option func(*inMemoryGuard)

// WithMaxSize bounds the seen-set. Zero or negative means unbounded.
func WithMaxSize(n int) Option {
	return func(g *inMemoryGuard) {
		g.maxSize = n
	}
}

// WithLockCount sets the number of key-lock shards.
func WithLockCount(n int) Option {
	return func(g *inMemoryGuard) {
		if n > 0 {
			g.locks = make([]sync.Mutex, n)
		}
	}
}

// New creates an in-memory guard with configuration options.
func New(opts ...Option) Guard {
	g := &inMemoryGuard{
		maxSize: defaultMaxSize,
		locks:   make([]sync.Mutex, defaultLockCount),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.seen = make(map[string]struct{})
	return g
}

func (g *inMemoryGuard) SeenAndRecord(_ context.Context, key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.seen[key]; exists {
		return true
	}
	if g.maxSize > 0 && len(g.seen) >= g.maxSize {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
		g.size.Add(-1)
	}
	g.seen[key] = struct{}{}
	if g.maxSize > 0 {
		g.order = append(g.order, key)
	}
	g.size.Add(1)
	return false
}

func (g *inMemoryGuard) Unrecord(_ context.Context, key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.seen[key]; !exists {
		return
	}
	delete(g.seen, key)
	if g.maxSize > 0 {
		for i, k := range g.order {
			if k == key {
				g.order = append(g.order[:i], g.order[i+1:]...)
				break
			}
		}
	}
	g.size.Add(-1)
}

func (g *inMemoryGuard) Do(key string, fn func() error) error {
	lock := &g.locks[shard(key, len(g.locks))]
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

func (g *inMemoryGuard) Size() int64 {
	return g.size.Load()
}

func shard(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n)) //nolint:gosec // hash bucket index, not security sensitive
}
