package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hdr "github.com/grafana/hdrhistogram"
)

func newTestHistogram(t *testing.T) *hdr.Histogram {
	t.Helper()
	h, err := hdr.New(1, 3600000000, 3)
	require.NoError(t, err)
	return h
}

func TestEncodeDecodePlainRoundTrip(t *testing.T) {
	h := newTestHistogram(t)
	for _, v := range []int64{1, 100, 1000, 1000000, 3599999999} {
		require.NoError(t, h.RecordValues(v, 1))
	}

	encoded, err := Encode(h)
	require.NoError(t, err)

	decoded, err := Decode(encoded, nil)
	require.NoError(t, err)

	assert.Equal(t, h.TotalCount(), decoded.TotalCount())
	assert.Equal(t, h.Min(), decoded.Min())
	assert.Equal(t, h.Max(), decoded.Max())
	for _, p := range []float64{0, 50, 90, 99, 99.9, 100} {
		assert.Equal(t, h.ValueAtPercentile(p), decoded.ValueAtPercentile(p), "percentile %v", p)
	}
}

func TestEncodeDecodeCompressedRoundTrip(t *testing.T) {
	h := newTestHistogram(t)
	for i := int64(0); i < 1000; i++ {
		require.NoError(t, h.Record(i*37))
	}

	encoded, err := EncodeCompressed(h)
	require.NoError(t, err)

	decoded, err := Decode(encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, h.TotalCount(), decoded.TotalCount())
	assert.Equal(t, h.ValueAtPercentile(99), decoded.ValueAtPercentile(99))
}

func TestEncodeEmptyHistogramRoundTrip(t *testing.T) {
	h := newTestHistogram(t)

	encoded, err := Encode(h)
	require.NoError(t, err)

	decoded, err := Decode(encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), decoded.TotalCount())
}

func TestDecodeIntoExistingTarget(t *testing.T) {
	src := newTestHistogram(t)
	require.NoError(t, src.RecordValues(42, 7))

	encoded, err := Encode(src)
	require.NoError(t, err)

	target := newTestHistogram(t)
	require.NoError(t, target.RecordValues(1, 1)) // should be wiped by Reset on decode

	decoded, err := Decode(encoded, target)
	require.NoError(t, err)
	assert.Same(t, target, decoded)
	assert.Equal(t, int64(7), decoded.TotalCount())
}

func TestDecodeIncompatibleTargetRejected(t *testing.T) {
	src := newTestHistogram(t)
	encoded, err := Encode(src)
	require.NoError(t, err)

	mismatched, err := hdr.New(1, 1000, 2)
	require.NoError(t, err)

	_, err = Decode(encoded, mismatched)
	require.Error(t, err)
	kind, ok := hdr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, hdr.IncompatibleHistograms, kind)
}

func TestDecodeUnrecognizedCookie(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0, 0, 0, 0, 0, 0}, nil)
	require.Error(t, err)
	kind, ok := hdr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, hdr.CookieMismatch, kind)
}

func TestDecodeTruncatedFrame(t *testing.T) {
	_, err := Decode([]byte{1, 2}, nil)
	require.Error(t, err)
	kind, ok := hdr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, hdr.Malformed, kind)
}
