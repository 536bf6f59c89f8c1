package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/transaction-risk-analyzer/internal/db"
	"github.com/lox/transaction-risk-analyzer/internal/memstore"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

// Store is the full set of operations the binaries need from a transaction store
type Store interface {
	Insert(ctx context.Context, t types.Transaction) (int64, error)
	SelectUnembedded(ctx context.Context, limit int) ([]types.Transaction, error)
	WriteEmbeddings(ctx context.Context, embeddings map[int64][]float32) (int, error)
	QueryByDistance(ctx context.Context, query []float32, k int) ([]types.Candidate, error)
	Count(ctx context.Context) (int, error)
	CountUnembedded(ctx context.Context) (int, error)
	Close() error
}

var (
	_ Store = (*db.DB)(nil)
	_ Store = (*memstore.Store)(nil)
)

// ErrEphemeralStore is returned when a command that shares data with other
// processes is pointed at the in-memory store
var ErrEphemeralStore = errors.New("the memory store is discarded when this command exits, use --store sqlite")

// SetupPersistentStore opens the configured store and rejects the in-memory
// backend, whose rows no other process can see
func SetupPersistentStore(config CommonConfig, logger *log.Logger) (Store, error) {
	if config.Store == "memory" {
		return nil, ErrEphemeralStore
	}
	return SetupStore(config, logger)
}

// SetupStore opens the configured transaction store
func SetupStore(config CommonConfig, logger *log.Logger) (Store, error) {
	switch config.Store {
	case "sqlite":
		database, err := db.New(config.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return database, nil
	case "memory":
		store, err := memstore.New(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory store: %w", err)
		}
		logger.Warn("Using in-memory store, nothing will be persisted")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store: %s", config.Store)
	}
}
