// Package overlay drives the aggregator once per host tick and fans
// completed windows out to the configured sinks.
package overlay

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/OriD-19/perf_overlay/aggregator"
	"github.com/OriD-19/perf_overlay/logger"
	"github.com/OriD-19/perf_overlay/probe"
	"github.com/OriD-19/perf_overlay/publish"
)

// Overlay owns the aggregator for the lifetime of the host view
type Overlay struct {
	agg    *aggregator.Aggregator
	cpu    probe.Probe
	gpu    probe.Probe
	now    func() time.Time
	window time.Duration
	sinks  []publish.Sink
	log    *zap.Logger
}

// Option configures an Overlay
type Option func(*Overlay)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Overlay) { o.now = now }
}

// WithWindow sets the smoothing window
func WithWindow(d time.Duration) Option {
	return func(o *Overlay) { o.window = d }
}

// WithSinks adds report consumers
func WithSinks(sinks ...publish.Sink) Option {
	return func(o *Overlay) { o.sinks = append(o.sinks, sinks...) }
}

// New creates an Overlay reading the given CPU and GPU probes
func New(cpu, gpu probe.Probe, log *zap.Logger, opts ...Option) *Overlay {
	o := &Overlay{
		cpu:    cpu,
		gpu:    gpu,
		now:    time.Now,
		window: aggregator.DefaultWindow,
		log:    log,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.agg = aggregator.New(o.now())
	return o
}

// Tick records this tick's sample, then flushes the window if it has
// elapsed. It returns the metrics to display.
func (o *Overlay) Tick(ctx context.Context) aggregator.DisplayMetrics {
	o.agg.RecordSample(aggregator.TimingSample{
		CPUTimeNs: o.cpu.LastValue(),
		GPUTimeNs: o.gpu.LastValue(),
	})

	report, ok := o.agg.MaybeFlushReport(o.now(), o.window)
	if !ok {
		return o.agg.Latest()
	}

	log := logger.FromContext(ctx, o.log)
	for _, s := range o.sinks {
		if err := s.Publish(ctx, report); err != nil {
			log.Warn("publish report failed", zap.Error(err), zap.String("sink", fmt.Sprintf("%T", s)))
		}
	}
	return report.Metrics
}

// Metrics returns the last published metrics without ticking
func (o *Overlay) Metrics() aggregator.DisplayMetrics {
	return o.agg.Latest()
}

// Close closes every sink that holds resources
func (o *Overlay) Close() error {
	var firstErr error
	for _, s := range o.sinks {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			o.log.Warn("close sink failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

var (
	fpsColor  = color.RGBA{0, 255, 0, 255}
	timeColor = color.RGBA{255, 255, 255, 255}
)

// Line is one row of the overlay panel
type Line struct {
	Text  string
	Color color.RGBA
}

// Lines formats m the way the overlay panel shows it: FPS in green, the
// stage timings in white.
func Lines(m aggregator.DisplayMetrics) []Line {
	return []Line{
		{Text: fmt.Sprintf("FPS: %.0f", m.FPS), Color: fpsColor},
		{Text: fmt.Sprintf("CPU: %.2f ms", m.CPUMs), Color: timeColor},
		{Text: fmt.Sprintf("GPU: %.2f ms", m.GPUMs), Color: timeColor},
	}
}
