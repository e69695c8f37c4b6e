// Package usagestats counts how the conversion engine is used: which
// candidate positions get committed, from which state, and how long key
// events take. Counters are opaque names; sinks decide where they go.
package usagestats

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Sink receives usage events. Implementations must be safe for concurrent use.
type Sink interface {
	IncrementCount(name string)
	UpdateTiming(name string, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncrementCount(string)              {}
func (Nop) UpdateTiming(string, time.Duration) {}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) IncrementCount(name string) {
	for _, s := range m {
		s.IncrementCount(name)
	}
}

func (m Multi) UpdateTiming(name string, d time.Duration) {
	for _, s := range m {
		s.UpdateTiming(name, d)
	}
}

// Timing aggregates durations recorded under one name.
type Timing struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

func (t *Timing) add(d time.Duration) {
	if t.Count == 0 || d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
	t.Count++
	t.Total += d
}

// Merge folds o into t.
func (t *Timing) Merge(o Timing) {
	if o.Count == 0 {
		return
	}
	if t.Count == 0 || o.Min < t.Min {
		t.Min = o.Min
	}
	if o.Max > t.Max {
		t.Max = o.Max
	}
	t.Count += o.Count
	t.Total += o.Total
}

// Average returns Total/Count, or zero when nothing was recorded.
func (t Timing) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// Memory keeps counters in process.
type Memory struct {
	mu      sync.Mutex
	counts  map[string]int64
	timings map[string]Timing
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{
		counts:  make(map[string]int64),
		timings: make(map[string]Timing),
	}
}

func (m *Memory) IncrementCount(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
}

func (m *Memory) UpdateTiming(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.timings[name]
	t.add(d)
	m.timings[name] = t
}

// Count returns the current value of a counter.
func (m *Memory) Count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// Timing returns the aggregate recorded under name.
func (m *Memory) Timing(name string) Timing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timings[name]
}

// Counts returns a copy of every counter.
func (m *Memory) Counts() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.counts)
}

// Drain returns and clears everything recorded so far.
func (m *Memory) Drain() (map[string]int64, map[string]Timing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts, timings := m.counts, m.timings
	m.counts = make(map[string]int64)
	m.timings = make(map[string]Timing)
	return counts, timings
}

// Restore adds counts and timings back, used when a flush fails.
func (m *Memory) Restore(counts map[string]int64, timings map[string]Timing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range counts {
		m.counts[k] += v
	}
	for k, v := range timings {
		t := m.timings[k]
		t.Merge(v)
		m.timings[k] = t
	}
}

// Backend persists drained statistics.
type Backend interface {
	AddCounts(ctx context.Context, counts map[string]int64) error
	AddTimings(ctx context.Context, timings map[string]Timing) error
}

// Flush moves everything recorded in m to b. On failure the drained values
// are put back so the next flush retries them.
func Flush(ctx context.Context, m *Memory, b Backend) error {
	counts, timings := m.Drain()
	if len(counts) == 0 && len(timings) == 0 {
		return nil
	}
	if err := b.AddCounts(ctx, counts); err != nil {
		m.Restore(counts, timings)
		return fmt.Errorf("flush usage counts: %w", err)
	}
	if err := b.AddTimings(ctx, timings); err != nil {
		m.Restore(nil, timings)
		return fmt.Errorf("flush usage timings: %w", err)
	}
	return nil
}

// FlushEvery flushes m to b on every tick until ctx is done, then flushes
// once more. Flush errors are passed to onError and do not stop the loop.
func FlushEvery(ctx context.Context, interval time.Duration, m *Memory, b Backend, onError func(error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return Flush(context.WithoutCancel(ctx), m, b)
		case <-ticker.C:
			if err := Flush(ctx, m, b); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
