package probe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances by step on every read
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestStatic(t *testing.T) {
	var p Probe = Static(42)
	assert.Equal(t, uint64(42), p.LastValue())
}

func TestStopwatch(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0), step: 3 * time.Millisecond}
	sw := NewStopwatch(clock.now)

	assert.Zero(t, sw.LastValue())

	sw.Begin()
	sw.End()
	assert.Equal(t, uint64(3*time.Millisecond), sw.LastValue())

	// End without a Begin keeps the previous span
	sw.End()
	assert.Equal(t, uint64(3*time.Millisecond), sw.LastValue())
}

func TestIntervalProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0), step: 16 * time.Millisecond}
	p := NewIntervalProbe(clock.now)

	p.Mark()
	assert.Zero(t, p.LastValue())

	p.Mark()
	assert.Equal(t, uint64(16*time.Millisecond), p.LastValue())

	clock.step = 33 * time.Millisecond
	p.Mark()
	assert.Equal(t, uint64(33*time.Millisecond), p.LastValue())
}
