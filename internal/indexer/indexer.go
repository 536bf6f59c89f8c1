// Package indexer assigns embeddings to transactions that do not have one yet.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/transaction-risk-analyzer/internal/embeddings"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

const (
	DefaultBatchSize = 32
	DefaultPause     = 200 * time.Millisecond
)

// Store is the subset of the transaction store the indexer needs
type Store interface {
	SelectUnembedded(ctx context.Context, limit int) ([]types.Transaction, error)
	// WriteEmbeddings commits all vectors of one batch together and never
	// overwrites a row that already has an embedding
	WriteEmbeddings(ctx context.Context, embeddings map[int64][]float32) (int, error)
}

// Config controls batching and throttling
type Config struct {
	BatchSize int
	Pause     time.Duration
	Progress  Progress
}

func NewConfig() Config {
	return Config{
		BatchSize: DefaultBatchSize,
		Pause:     DefaultPause,
	}
}

func (c Config) WithBatchSize(n int) Config {
	c.BatchSize = n
	return c
}

func (c Config) WithPause(d time.Duration) Config {
	c.Pause = d
	return c
}

func (c Config) WithProgress(p Progress) Config {
	c.Progress = p
	return c
}

func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0")
	}
	if c.Pause < 0 {
		return fmt.Errorf("pause must not be negative")
	}
	return nil
}

// Stats summarises a run
type Stats struct {
	Batches  int
	Selected int
	Written  int
}

type Indexer struct {
	store   Store
	encoder embeddings.Encoder
	config  Config
	logger  *log.Logger
}

func New(store Store, encoder embeddings.Encoder, config Config, logger *log.Logger) (*Indexer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Progress == nil {
		config.Progress = nopProgress{}
	}
	return &Indexer{
		store:   store,
		encoder: encoder,
		config:  config,
		logger:  logger,
	}, nil
}

// Run embeds batches until a selection comes back empty. Batches committed
// before a failure stay committed; a failed batch stops the run.
func (ix *Indexer) Run(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { ix.config.Progress.Done(stats) }()

	ix.logger.Info("Starting embedding indexer", "batch_size", ix.config.BatchSize, "model", ix.encoder.ModelName())

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rows, err := ix.store.SelectUnembedded(ctx, ix.config.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to select unembedded transactions: %w", err)
		}
		if len(rows) == 0 {
			ix.logger.Info("No more rows to embed",
				"batches", stats.Batches,
				"written", stats.Written,
				"duration", time.Since(start))
			return stats, nil
		}

		written, err := ix.indexBatch(ctx, rows)
		if err != nil {
			return stats, fmt.Errorf("batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Selected += len(rows)
		stats.Written += written

		ix.logger.Debug("Embedded batch", "batch", stats.Batches, "rows", len(rows), "written", written)
		if err := ix.config.Progress.Written(written); err != nil {
			ix.logger.Warn("Failed to update progress", "error", err)
		}

		if written == 0 {
			// every row in the batch was embedded concurrently by someone else,
			// or the store refuses the write; either way selecting again would spin
			return stats, errors.New("batch made no progress")
		}

		if err := sleep(ctx, ix.config.Pause); err != nil {
			return stats, err
		}
	}
}

func (ix *Indexer) indexBatch(ctx context.Context, rows []types.Transaction) (int, error) {
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Description
	}

	vecs, err := ix.encoder.EncodeBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to encode batch: %w", err)
	}
	if len(vecs) != len(rows) {
		return 0, fmt.Errorf("encoder returned %d vectors for %d rows", len(vecs), len(rows))
	}

	batch := make(map[int64][]float32, len(rows))
	for i, row := range rows {
		batch[row.ID] = vecs[i]
	}

	written, err := ix.store.WriteEmbeddings(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to write embeddings: %w", err)
	}
	return written, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
