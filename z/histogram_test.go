package z

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistogramBounds(t *testing.T) {
	bounds := HistogramBounds(3, 6)
	require.Equal(t, []float64{8, 16, 32, 64}, bounds)
}

func TestHistogramUpdate(t *testing.T) {
	h := NewHistogramData(HistogramBounds(3, 10))
	for _, v := range []int64{8, 64, 512, 512} {
		h.Update(v)
	}

	require.Equal(t, int64(4), h.Count)
	require.Equal(t, int64(8), h.Min)
	require.Equal(t, int64(512), h.Max)
	require.Equal(t, int64(1096), h.Sum)
	require.Equal(t, 274.0, h.Mean())
}

func TestHistogramCopy(t *testing.T) {
	h := NewHistogramData(HistogramBounds(3, 6))
	h.Update(16)

	c := h.Copy()
	c.Update(32)
	require.Equal(t, int64(1), h.Count)
	require.Equal(t, int64(2), c.Count)
}

func TestHistogramString(t *testing.T) {
	var h *HistogramData
	require.Equal(t, "", h.String())

	h = NewHistogramData(HistogramBounds(3, 6))
	h.Update(16)
	h.Update(1 << 20) // Past the last bound, lands in the overflow bucket.
	s := h.String()
	require.Contains(t, s, "Count: 2")
	require.Contains(t, s, "infinity")
}
