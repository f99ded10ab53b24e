// Package metrics provides in-memory client-side statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failed    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64
	Failed      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// RenderSnapshot reports how well renders were coalesced.
type RenderSnapshot struct {
	Requested int64
	Rendered  int64
}

// Ratio returns requested renders per producer run (1 means no coalescing).
func (r RenderSnapshot) Ratio() float64 {
	if r.Rendered == 0 {
		return 0
	}
	return float64(r.Requested) / float64(r.Rendered)
}

// Snapshot represents the full client statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Turn          *OperationSnapshot
	FirstToken    *OperationSnapshot
	Think         *OperationSnapshot
	ServerTotal   *OperationSnapshot
	Replay        *OperationSnapshot
	Render        RenderSnapshot
}

// Operation names for the collector.
const (
	OpTurn        = "turn"
	OpFirstToken  = "first_token"
	OpThink       = "think"
	OpServerTotal = "server_total"
	OpReplay      = "replay"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	render    RenderSnapshot
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordFailure counts a failed operation without timing it.
func (c *Collector) RecordFailure(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).Failed++
}

// RecordRenders replaces the render counters with the gate's totals.
func (c *Collector) RecordRenders(requested, rendered int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.render = RenderSnapshot{Requested: int64(requested), Rendered: int64(rendered)}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || (m.Count == 0 && m.Failed == 0) {
		return nil
	}

	snap := &OperationSnapshot{
		Count:  m.Count,
		Failed: m.Failed,
	}
	if m.Count > 0 {
		snap.TotalTimeMs = m.TotalTime.Milliseconds()
		snap.AvgTimeMs = float64(m.TotalTime.Milliseconds()) / float64(m.Count)
		snap.MinTimeMs = m.MinTime.Milliseconds()
		snap.MaxTimeMs = m.MaxTime.Milliseconds()
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Turn:          snapshotOp(c.ops[OpTurn]),
		FirstToken:    snapshotOp(c.ops[OpFirstToken]),
		Think:         snapshotOp(c.ops[OpThink]),
		ServerTotal:   snapshotOp(c.ops[OpServerTotal]),
		Replay:        snapshotOp(c.ops[OpReplay]),
		Render:        c.render,
	}
}

// Reset clears all collected metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.ops = make(map[string]*OperationMetrics)
	c.render = RenderSnapshot{}
}
