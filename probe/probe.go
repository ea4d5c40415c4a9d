// Package probe provides the per-tick timing inputs read by the overlay.
package probe

import (
	"sync/atomic"
	"time"
)

// Probe reports its most recent measurement in nanoseconds
type Probe interface {
	LastValue() uint64
}

// Static always reports the same value
type Static uint64

// LastValue implements Probe.
func (s Static) LastValue() uint64 { return uint64(s) }

// Stopwatch measures the main-thread time spent between Begin and End
type Stopwatch struct {
	now   func() time.Time
	begin time.Time
	last  atomic.Uint64
}

// NewStopwatch creates a Stopwatch reading the given clock (time.Now if nil)
func NewStopwatch(now func() time.Time) *Stopwatch {
	if now == nil {
		now = time.Now
	}
	return &Stopwatch{now: now}
}

// Begin starts a span
func (s *Stopwatch) Begin() {
	s.begin = s.now()
}

// End closes the span opened by Begin. Calling End without Begin is a no-op.
func (s *Stopwatch) End() {
	if s.begin.IsZero() {
		return
	}
	s.last.Store(durationNs(s.now().Sub(s.begin)))
	s.begin = time.Time{}
}

// LastValue returns the duration of the last completed span
func (s *Stopwatch) LastValue() uint64 {
	return s.last.Load()
}

// IntervalProbe measures the time between successive Mark calls, e.g.
// present-to-present time of the render loop.
type IntervalProbe struct {
	now  func() time.Time
	prev time.Time
	last atomic.Uint64
}

// NewIntervalProbe creates an IntervalProbe reading the given clock (time.Now if nil)
func NewIntervalProbe(now func() time.Time) *IntervalProbe {
	if now == nil {
		now = time.Now
	}
	return &IntervalProbe{now: now}
}

// Mark records a frame boundary
func (p *IntervalProbe) Mark() {
	t := p.now()
	if !p.prev.IsZero() {
		p.last.Store(durationNs(t.Sub(p.prev)))
	}
	p.prev = t
}

// LastValue returns the last measured interval
func (p *IntervalProbe) LastValue() uint64 {
	return p.last.Load()
}

func durationNs(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d)
}
