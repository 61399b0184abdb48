package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	// shardCount is the number of counter shards. Keys hash to shards so
	// distinct clients rarely contend on the same lock.
	shardCount = 64

	// DefaultSweepInterval is how often idle counters are evicted.
	DefaultSweepInterval = time.Minute
)

// counter is the per-key window state. Guarded by its shard's mutex so
// the read-check-increment is a single atomic unit.
type counter struct {
	windowStart time.Time
	count       int
	window      time.Duration
	lastSeen    time.Time
}

type shard struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// MemoryStore is a sharded in-memory Store. Counters are created lazily
// on first use and evicted by a background sweep once idle for a full
// window, bounding memory to the keys active in roughly the last window.
type MemoryStore struct {
	shards [shardCount]*shard
	done   chan struct{}
	once   sync.Once
}

// NewMemoryStore creates a memory store and starts its eviction sweep.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &MemoryStore{done: make(chan struct{})}
	for i := range s.shards {
		s.shards[i] = &shard{counters: make(map[string]*counter)}
	}
	go s.sweep(sweepInterval)
	return s
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[key]
	if !ok {
		c = &counter{windowStart: now}
		sh.counters[key] = c
	}

	if now.Sub(c.windowStart) >= window {
		c.windowStart = now
		c.count = 0
	}

	c.count++
	c.window = window
	c.lastSeen = now

	remaining := limit - c.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   c.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   c.windowStart.Add(window),
	}, nil
}

// Ping always succeeds: the process owning the map is the process
// answering the health check.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close stops the eviction sweep. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evict(time.Now())
		}
	}
}

// evict removes counters whose window has expired and which have not
// been touched for at least one full window duration. The per-shard
// lock keeps eviction from racing a concurrent Take on the same key.
func (s *MemoryStore) evict(now time.Time) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, c := range sh.counters {
			if now.Sub(c.lastSeen) >= c.window {
				delete(sh.counters, key)
			}
		}
		sh.mu.Unlock()
	}
}

// size reports the number of live counters. Used by tests.
func (s *MemoryStore) size() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.counters)
		sh.mu.Unlock()
	}
	return n
}
