package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/transaction-risk-analyzer/internal/embeddings"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

// DefaultTopK is the number of nearest transactions a search returns
const DefaultTopK = 20

var ErrEmptyQuery = errors.New("query text must not be empty")

// Store is anything that can rank embedded transactions by distance to a vector
type Store interface {
	QueryByDistance(ctx context.Context, query []float32, k int) ([]types.Candidate, error)
}

type searchOptions struct {
	topK int
}

// SearchOption is a function that modifies searchOptions
type SearchOption func(*searchOptions)

// WithTopK sets how many nearest transactions are returned
func WithTopK(k int) SearchOption {
	return func(opts *searchOptions) {
		opts.topK = k
	}
}

// Searcher encodes query text and retrieves its nearest transactions. It must
// be given the same encoder configuration the indexer used.
type Searcher struct {
	encoder embeddings.Encoder
	store   Store
	topK    int
	logger  *log.Logger
}

func NewSearcher(encoder embeddings.Encoder, store Store, logger *log.Logger, opts ...SearchOption) *Searcher {
	options := searchOptions{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&options)
	}
	if options.topK <= 0 {
		options.topK = DefaultTopK
	}
	return &Searcher{
		encoder: encoder,
		store:   store,
		topK:    options.topK,
		logger:  logger,
	}
}

// TopK returns the configured result limit
func (s *Searcher) TopK() int {
	return s.topK
}

// Search returns at most TopK embedded transactions ordered by ascending distance
func (s *Searcher) Search(ctx context.Context, text string) ([]types.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	s.logger.Debug("Performing vector search", "query", text, "top_k", s.topK)
	startTime := time.Now()

	query, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding for query: %w", err)
	}

	candidates, err := s.store.QueryByDistance(ctx, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar transactions: %w", err)
	}

	results := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasEmbedding() {
			s.logger.Warn("Store returned a transaction without an embedding", "id", c.ID)
			continue
		}
		results = append(results, c)
	}
	if len(results) > s.topK {
		results = results[:s.topK]
	}

	s.logger.Info("Vector search completed",
		"query", text,
		"results", len(results),
		"duration", time.Since(startTime))

	return results, nil
}
