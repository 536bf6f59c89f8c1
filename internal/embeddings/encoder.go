package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultDimension matches sentence-transformers/all-MiniLM-L6-v2
const DefaultDimension = 384

// ErrDimensionMismatch is returned when an encoder produces a vector of the wrong length
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Encoder turns text into fixed-length vectors. Implementations must be
// deterministic: identical text yields an identical vector, and EncodeBatch
// must return exactly what Encode would return for each item.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// DimensionChecked rejects any vector whose length differs from the configured dimension
type DimensionChecked struct {
	Encoder
	dimension int
}

// NewDimensionChecked wraps enc so that every vector it returns has exactly dimension components
func NewDimensionChecked(enc Encoder, dimension int) *DimensionChecked {
	return &DimensionChecked{Encoder: enc, dimension: dimension}
}

// Dimension returns the enforced vector length
func (d *DimensionChecked) Dimension() int {
	return d.dimension
}

func (d *DimensionChecked) Encode(ctx context.Context, text string) ([]float32, error) {
	vec, err := d.Encoder.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := d.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (d *DimensionChecked) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := d.Encoder.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if err := d.check(vec); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return vecs, nil
}

func (d *DimensionChecked) check(vec []float32) error {
	if len(vec) != d.dimension {
		return fmt.Errorf("%w: got %d, want %d (model %s)", ErrDimensionMismatch, len(vec), d.dimension, d.ModelName())
	}
	return nil
}

// EmptyText is sent in place of a blank description to providers that reject
// empty input, so every row still gets a vector
const EmptyText = "(no description)"

func nonEmpty(text string) string {
	if strings.TrimSpace(text) == "" {
		return EmptyText
	}
	return text
}

func nonEmptyAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = nonEmpty(text)
	}
	return out
}

const probeText = "encoder probe"

// Probe encodes a fixed string once so that an unreachable or misconfigured
// model fails at startup rather than on the first request.
func Probe(ctx context.Context, enc Encoder) error {
	if _, err := enc.Encode(ctx, probeText); err != nil {
		return fmt.Errorf("failed to probe encoder %s: %w", enc.ModelName(), err)
	}
	return nil
}

// encodeEach is the fallback batch path for providers with no native batch endpoint
func encodeEach(ctx context.Context, enc Encoder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := enc.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to encode text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
