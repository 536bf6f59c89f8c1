package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "[0.5,-2,3.25]", Format([]float32{0.5, -2, 3.25}))
	assert.Equal(t, "[]", Format(nil))
}

func TestParseAcceptsFormattedLiteral(t *testing.T) {
	in := []float32{0.123456, -1e-7, 42}
	out, err := Parse(Format(in))
	require.NoError(t, err)
	assert.InDeltaSlice(t, in, out, 1e-9)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no brackets":   "1,2,3",
		"empty":         "[]",
		"empty element": "[1,,3]",
		"trailing":      "[1,2,]",
		"not a number":  "[1,abc]",
		"nan":           "[1,NaN]",
		"inf":           "[+Inf,1]",
	}
	for name, literal := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(literal)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseToleratesWhitespace(t *testing.T) {
	out, err := Parse(" [1, 2 ,3] ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, out)
}

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-12)

	d, err = CosineDistance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1, d, 1e-12)

	d, err = CosineDistance([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 1e-12)

	d, err = CosineDistance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	_, err = CosineDistance([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestCosineDistanceIsScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{2, 4, 6}
	d, err := CosineDistance(a, b)
	require.NoError(t, err)
	assert.True(t, math.Abs(d) < 1e-6)
}
