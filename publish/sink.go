// Package publish delivers completed window reports to their consumers.
package publish

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/OriD-19/perf_overlay/aggregator"
	"github.com/OriD-19/perf_overlay/logger"
)

// ErrQueueFull is returned when a non-blocking sink had to drop a report
var ErrQueueFull = errors.New("publish queue full, report dropped")

// Sink receives every completed window report
type Sink interface {
	Publish(ctx context.Context, report *aggregator.WindowReport) error
}

// LogSink writes each report as a structured log entry
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Publish implements Sink.
func (s *LogSink) Publish(ctx context.Context, report *aggregator.WindowReport) error {
	logger.FromContext(ctx, s.log).Info("window closed",
		zap.Float64("fps", report.Metrics.FPS),
		zap.Float64("cpu_ms", report.Metrics.CPUMs),
		zap.Float64("gpu_ms", report.Metrics.GPUMs),
		zap.Int("samples", report.SampleCount),
		zap.Float64("p95_frame_ms", report.P95FrameMs),
		zap.Duration("window", report.WindowEnd.Sub(report.WindowStart)),
	)
	return nil
}
