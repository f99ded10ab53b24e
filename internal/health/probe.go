// Package health polls the backend's status route for a liveness indicator.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the polling period.
const DefaultInterval = 5 * time.Second

// Level is the indicator's state.
type Level int

const (
	Unknown Level = iota
	Online
	Degraded
	Offline
)

func (l Level) String() string {
	switch l {
	case Online:
		return "online"
	case Degraded:
		return "degraded"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Reading is one observation of the backend.
type Reading struct {
	Level     Level
	Status    string
	Err       error
	CheckedAt time.Time
}

// Checker fetches the backend's self-reported status.
type Checker interface {
	Status(ctx context.Context) (string, error)
}

// Indicator holds the latest reading. It is independent of turn and
// history state and safe for concurrent use.
type Indicator struct {
	mu       sync.RWMutex
	current  Reading
	onChange func(Reading)
}

// OnChange registers fn to receive readings whose level differs from the previous one.
func (i *Indicator) OnChange(fn func(Reading)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onChange = fn
}

// Current returns the latest reading.
func (i *Indicator) Current() Reading {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.current
}

func (i *Indicator) set(r Reading) {
	i.mu.Lock()
	changed := r.Level != i.current.Level
	i.current = r
	fn := i.onChange
	i.mu.Unlock()

	if changed && fn != nil {
		fn(r)
	}
}

// Probe polls a Checker on a fixed interval.
type Probe struct {
	checker   Checker
	indicator *Indicator
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewProbe creates a probe updating indicator.
func NewProbe(checker Checker, indicator *Indicator, interval time.Duration, logger *slog.Logger) *Probe {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		checker:   checker,
		indicator: indicator,
		interval:  interval,
		timeout:   interval,
		logger:    logger,
	}
}

// Check performs one probe and records it.
func (p *Probe) Check(ctx context.Context) Reading {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	status, err := p.checker.Status(ctx)
	r := Reading{Status: status, Err: err, CheckedAt: time.Now()}
	switch {
	case err != nil:
		r.Level = Offline
	case status == "online":
		r.Level = Online
	default:
		r.Level = Degraded
	}

	prev := p.indicator.Current().Level
	if r.Level != prev {
		p.logger.Info("backend status changed", "from", prev.String(), "to", r.Level.String(), "error", err)
	}
	p.indicator.set(r)
	return r
}

// Run checks immediately and then every interval until ctx is cancelled.
func (p *Probe) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
