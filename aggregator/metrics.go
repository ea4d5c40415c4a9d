package aggregator

import (
	"time"
)

// TimingSample is one tick's worth of host timings
type TimingSample struct {
	CPUTimeNs uint64
	GPUTimeNs uint64
}

// frameTimeNs is the time the slower stage took for this tick
func (s TimingSample) frameTimeNs() uint64 {
	return max(s.CPUTimeNs, s.GPUTimeNs)
}

// DisplayMetrics is the smoothed snapshot published once per window
type DisplayMetrics struct {
	CPUMs float64 `json:"cpu_ms"`
	GPUMs float64 `json:"gpu_ms"`
	FPS   float64 `json:"fps"`
}

// WindowReport represents everything known about a completed window
type WindowReport struct {
	Metrics     DisplayMetrics `json:"metrics"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	SampleCount int            `json:"sample_count"`
	MinFrameMs  float64        `json:"min_frame_ms"`
	MaxFrameMs  float64        `json:"max_frame_ms"`
	P50FrameMs  float64        `json:"p50_frame_ms"`
	P95FrameMs  float64        `json:"p95_frame_ms"`
	P99FrameMs  float64        `json:"p99_frame_ms"`
	AgentID     string         `json:"agent_id,omitempty"`
}

// nsPerMs converts nanosecond sums to milliseconds
const nsPerMs = 1_000_000.0

func newDisplayMetrics(accCPU, accGPU float64, count int) DisplayMetrics {
	cpuMs := accCPU / float64(count) / nsPerMs
	gpuMs := accGPU / float64(count) / nsPerMs

	// A frame cannot finish faster than its slowest stage.
	maxMs := max(cpuMs, gpuMs)
	fps := 0.0
	if maxMs > 0 {
		fps = 1000 / maxMs
	}

	return DisplayMetrics{
		CPUMs: cpuMs,
		GPUMs: gpuMs,
		FPS:   fps,
	}
}
