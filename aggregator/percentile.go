package aggregator

import (
	"slices"
)

// selectionThreshold is the size above which quickselect replaces a full sort
const selectionThreshold = 1000

// CalculatePercentile returns the nth percentile of a slice of frame times.
// The input slice is not modified.
func CalculatePercentile(frameTimes []uint64, percentile float64) uint64 {
	if len(frameTimes) == 0 {
		return 0
	}

	if len(frameTimes) <= selectionThreshold {
		sorted := slices.Clone(frameTimes)
		slices.Sort(sorted)
		return sorted[percentileIndex(len(sorted), percentile)]
	}

	data := slices.Clone(frameTimes)
	return nthFrame(data, percentileIndex(len(data), percentile))
}

// CalculateMultiplePercentiles sorts once for small inputs and answers every
// requested percentile from the same copy.
func CalculateMultiplePercentiles(frameTimes []uint64, percentiles []float64) map[float64]uint64 {
	result := make(map[float64]uint64, len(percentiles))

	if len(frameTimes) == 0 {
		for _, p := range percentiles {
			result[p] = 0
		}
		return result
	}

	if len(frameTimes) > selectionThreshold {
		for _, p := range percentiles {
			result[p] = CalculatePercentile(frameTimes, p)
		}
		return result
	}

	sorted := slices.Clone(frameTimes)
	slices.Sort(sorted)
	for _, p := range percentiles {
		result[p] = sorted[percentileIndex(len(sorted), p)]
	}
	return result
}

// percentileIndex floors the fractional rank and clamps it into range
func percentileIndex(n int, percentile float64) int {
	idx := int(float64(n-1) * (percentile / 100.0))
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

// nthFrame returns the k-th smallest frame time, reordering frames in place.
// Above selectionThreshold samples this avoids sorting the whole window.
func nthFrame(frames []uint64, k int) uint64 {
	lo, hi := 0, len(frames)-1
	for lo < hi {
		lt, gt := partitionAround(frames, lo, hi)
		switch {
		case k < lt:
			hi = lt - 1
		case k > gt:
			lo = gt + 1
		default:
			return frames[k]
		}
	}
	return frames[lo]
}

// partitionAround splits frames[lo:hi+1] three ways around its middle value
// and returns the bounds of the run equal to it. Repeated frame times are
// common since timers are quantized.
func partitionAround(frames []uint64, lo, hi int) (lt, gt int) {
	pivot := frames[lo+(hi-lo)/2]
	lt, gt = lo, hi
	for i := lo; i <= gt; {
		switch {
		case frames[i] < pivot:
			frames[lt], frames[i] = frames[i], frames[lt]
			lt++
			i++
		case frames[i] > pivot:
			frames[gt], frames[i] = frames[i], frames[gt]
			gt--
		default:
			i++
		}
	}
	return lt, gt
}
