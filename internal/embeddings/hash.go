package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEncoder is an offline encoder based on signed feature hashing of word
// tokens and character trigrams. It needs no model files, which makes it the
// encoder of choice for tests and local development.
type HashEncoder struct {
	dimension int
}

// NewHashEncoder creates a hashing encoder producing vectors of the given dimension
func NewHashEncoder(dimension int) (*HashEncoder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be greater than 0")
	}
	return &HashEncoder{dimension: dimension}, nil
}

func (e *HashEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, e.dimension)
	for _, tok := range tokenize(text) {
		e.add(vec, "w:"+tok, 1.0)
		padded := "#" + tok + "#"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			e.add(vec, "t:"+string(runes[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.dimension)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (e *HashEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return encodeEach(ctx, e, texts)
}

func (e *HashEncoder) ModelName() string {
	return fmt.Sprintf("hash-%d", e.dimension)
}

func (e *HashEncoder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
