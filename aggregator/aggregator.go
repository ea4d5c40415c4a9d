// Package aggregator turns a per-tick stream of CPU/GPU timings into
// windowed averages and a derived frames-per-second estimate.
package aggregator

import (
	"sync"
	"time"
)

// DefaultWindow is the smoothing window used when none is configured
const DefaultWindow = 500 * time.Millisecond

// initialFrameCapacity covers a 500ms window at 2000 fps without growing
const initialFrameCapacity = 1000

// Aggregator accumulates timing samples for the current window
type Aggregator struct {
	mutex       sync.Mutex
	accCPU      float64
	accGPU      float64
	sampleCount int
	windowStart time.Time
	frameTimes  []uint64 // max(cpu, gpu) of every sample in the window
	minFrame    uint64
	maxFrame    uint64
	latest      DisplayMetrics
}

// New creates an Aggregator whose first window opens at start
func New(start time.Time) *Aggregator {
	return &Aggregator{
		windowStart: start,
		frameTimes:  make([]uint64, 0, initialFrameCapacity),
	}
}

// RecordSample adds a sample to the current window
func (a *Aggregator) RecordSample(s TimingSample) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.accCPU += float64(s.CPUTimeNs)
	a.accGPU += float64(s.GPUTimeNs)
	a.sampleCount++

	ft := s.frameTimeNs()
	if a.sampleCount == 1 {
		a.minFrame, a.maxFrame = ft, ft
	} else {
		a.minFrame = min(a.minFrame, ft)
		a.maxFrame = max(a.maxFrame, ft)
	}
	a.frameTimes = append(a.frameTimes, ft)
}

// MaybeFlush publishes the window's DisplayMetrics once window has elapsed
// since the window opened and at least one sample was recorded. Otherwise it
// reports false and leaves the window untouched.
func (a *Aggregator) MaybeFlush(now time.Time, window time.Duration) (DisplayMetrics, bool) {
	report, ok := a.MaybeFlushReport(now, window)
	if !ok {
		return DisplayMetrics{}, false
	}
	return report.Metrics, true
}

// MaybeFlushReport is MaybeFlush with the full window statistics attached
func (a *Aggregator) MaybeFlushReport(now time.Time, window time.Duration) (*WindowReport, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if now.Sub(a.windowStart) < window || a.sampleCount == 0 {
		return nil, false
	}

	report := a.calculateReport(now)

	a.latest = report.Metrics
	a.accCPU = 0
	a.accGPU = 0
	a.sampleCount = 0
	a.frameTimes = a.frameTimes[:0]
	a.minFrame = 0
	a.maxFrame = 0
	a.windowStart = now

	return report, true
}

// calculateReport computes the statistics for the window ending at now
func (a *Aggregator) calculateReport(now time.Time) *WindowReport {
	report := &WindowReport{
		Metrics:     newDisplayMetrics(a.accCPU, a.accGPU, a.sampleCount),
		WindowStart: a.windowStart,
		WindowEnd:   now,
		SampleCount: a.sampleCount,
		MinFrameMs:  float64(a.minFrame) / nsPerMs,
		MaxFrameMs:  float64(a.maxFrame) / nsPerMs,
	}

	p := CalculateMultiplePercentiles(a.frameTimes, []float64{50, 95, 99})
	report.P50FrameMs = float64(p[50]) / nsPerMs
	report.P95FrameMs = float64(p[95]) / nsPerMs
	report.P99FrameMs = float64(p[99]) / nsPerMs

	return report
}

// Latest returns the most recently published metrics, zero before the first flush
func (a *Aggregator) Latest() DisplayMetrics {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.latest
}

// SampleCount returns the number of samples in the current window
func (a *Aggregator) SampleCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.sampleCount
}

// Accumulated returns the current window's CPU and GPU sums in nanoseconds
func (a *Aggregator) Accumulated() (cpuNs, gpuNs float64) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.accCPU, a.accGPU
}

// WindowStart returns the time the current window opened
func (a *Aggregator) WindowStart() time.Time {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.windowStart
}
