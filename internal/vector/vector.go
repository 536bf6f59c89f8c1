// Package vector handles the textual vector literal used by the store and
// the distance metric applied to embeddings.
package vector

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a stored vector literal cannot be parsed
var ErrMalformed = errors.New("malformed vector literal")

// Format renders a vector as a bracketed, comma separated literal, e.g. [0.1,-2.5,3]
func Format(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*12 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', 10, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Parse reads a literal produced by Format. It never pads or truncates:
// any empty or non-finite component is an error.
func Parse(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: missing brackets", ErrMalformed)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return nil, fmt.Errorf("%w: empty vector", ErrMalformed)
	}
	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d: %v", ErrMalformed, i, err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: component %d is not finite", ErrMalformed, i)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// CosineDistance returns 1 - cos(a, b). A zero vector has distance 1 to everything.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// clamp rounding noise so distance stays within [0, 2]
	cos = math.Max(-1, math.Min(1, cos))
	return 1 - cos, nil
}
