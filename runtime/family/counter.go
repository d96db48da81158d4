package family

import (
	"sync"
	"sync/atomic"
	"time"
)

// counterEntry is the last observed value for one (metricName, labelKey)
// series, used by rate/increase/irate to compute deltas across calls.
type counterEntry struct {
	value     float64
	timestamp int64
	seen      time.Time
}

const shardCount = 32

// CounterWindow is the process-wide cache backing rate/increase/irate: one
// entry per (metricName, label set), sharded to keep per-key updates
// independent. Idle entries are reclaimed only when a caller invokes Sweep;
// the window starts no goroutine of its own, so tests and short-lived
// processes never leak background work. Nothing in this module calls Sweep.
type CounterWindow struct {
	shards [shardCount]struct {
		mu      sync.Mutex
		entries map[string]counterEntry
	}
	idle time.Duration

	discarded int64
}

// NewCounterWindow constructs a window that evicts entries idle longer
// than idle on Sweep. idle <= 0 defaults to 10 minutes.
func NewCounterWindow(idle time.Duration) *CounterWindow {
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	w := &CounterWindow{idle: idle}
	for i := range w.shards {
		w.shards[i].entries = make(map[string]counterEntry)
	}
	return w
}

func (w *CounterWindow) shard(key string) *struct {
	mu      sync.Mutex
	entries map[string]counterEntry
} {
	h := fnv32(key)
	return &w.shards[h%shardCount]
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// observe records value at timestamp for key and returns the previous
// observation, if any. An observation older than the series' last accepted
// timestamp is discarded rather than applied: the stored entry is left
// untouched, accepted is false, and the discard is counted so operators can
// see it in diagnostics.
func (w *CounterWindow) observe(key string, value float64, timestamp int64, now time.Time) (prev counterEntry, had, accepted bool) {
	sh := w.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	prev, had = sh.entries[key]
	if had && timestamp < prev.timestamp {
		atomic.AddInt64(&w.discarded, 1)
		return prev, had, false
	}
	sh.entries[key] = counterEntry{value: value, timestamp: timestamp, seen: now}
	return prev, had, true
}

// Discarded reports how many observations were dropped for carrying a
// timestamp older than their series' last accepted observation.
func (w *CounterWindow) Discarded() int64 {
	return atomic.LoadInt64(&w.discarded)
}

// Sweep removes entries not observed within the window's idle duration.
func (w *CounterWindow) Sweep(now time.Time) {
	for i := range w.shards {
		sh := &w.shards[i]
		sh.mu.Lock()
		for k, e := range sh.entries {
			if now.Sub(e.seen) > w.idle {
				delete(sh.entries, k)
			}
		}
		sh.mu.Unlock()
	}
}
