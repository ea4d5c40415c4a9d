package aggregator

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func frameTimesMs(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(i+1) * 1_000_000
	}
	return out
}

func TestCalculatePercentile(t *testing.T) {
	frames := frameTimesMs(100)

	assert.Equal(t, uint64(50_000_000), CalculatePercentile(frames, 50))
	assert.Equal(t, uint64(95_000_000), CalculatePercentile(frames, 95))
	assert.Equal(t, uint64(99_000_000), CalculatePercentile(frames, 99))
	assert.Equal(t, uint64(1_000_000), CalculatePercentile(frames, 0))
	assert.Equal(t, uint64(100_000_000), CalculatePercentile(frames, 100))
	assert.Zero(t, CalculatePercentile(nil, 50))
}

func TestCalculatePercentileLeavesInputUntouched(t *testing.T) {
	frames := []uint64{5, 3, 9, 1}
	CalculatePercentile(frames, 50)
	assert.Equal(t, []uint64{5, 3, 9, 1}, frames)
}

func TestCalculatePercentileSelectionMatchesSort(t *testing.T) {
	frames := frameTimesMs(5000)
	r := rand.New(rand.NewPCG(1, 2))
	r.Shuffle(len(frames), func(i, j int) { frames[i], frames[j] = frames[j], frames[i] })

	for _, p := range []float64{1, 50, 90, 95, 99, 100} {
		want := uint64(percentileIndex(len(frames), p)+1) * 1_000_000
		assert.Equal(t, want, CalculatePercentile(frames, p), "p%v", p)
	}
}

func TestCalculateMultiplePercentiles(t *testing.T) {
	frames := frameTimesMs(100)
	got := CalculateMultiplePercentiles(frames, []float64{50, 95, 99})

	assert.Equal(t, map[float64]uint64{
		50: 50_000_000,
		95: 95_000_000,
		99: 99_000_000,
	}, got)

	empty := CalculateMultiplePercentiles(nil, []float64{50, 99})
	assert.Equal(t, map[float64]uint64{50: 0, 99: 0}, empty)
}

func TestCalculatePercentileSelectionWithRepeats(t *testing.T) {
	frames := make([]uint64, 3000)
	for i := range frames {
		frames[i] = 16_000_000
	}
	frames[10] = 50_000_000
	frames[2500] = 1_000_000

	assert.Equal(t, uint64(1_000_000), CalculatePercentile(frames, 0))
	assert.Equal(t, uint64(16_000_000), CalculatePercentile(frames, 50))
	assert.Equal(t, uint64(16_000_000), CalculatePercentile(frames, 99))
	assert.Equal(t, uint64(50_000_000), CalculatePercentile(frames, 100))
}
