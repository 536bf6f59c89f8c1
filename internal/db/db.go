package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/exp/slices"

	"github.com/lox/transaction-risk-analyzer/internal/types"
	"github.com/lox/transaction-risk-analyzer/internal/vector"
)

// ErrMalformedVector is returned when a stored embedding cannot be used for a distance query
var ErrMalformedVector = errors.New("malformed stored vector")

// DB is the SQLite backed transaction store
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// New opens (creating if needed) the transactions database in dataDir
func New(dataDir string, logger *log.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, "transactions.db"), logger)
}

// Open opens the database at path. Use ":memory:" for a throwaway store.
func Open(path string, logger *log.Logger) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &DB{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_number TEXT NOT NULL,
			transaction_date TEXT NOT NULL,
			description TEXT,
			category TEXT NOT NULL DEFAULT '',
			amount DECIMAL(15,2) NOT NULL,
			embedding_vec TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create transactions table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Insert stores a new transaction and returns its id. Any embedding on t is ignored;
// embeddings are only ever assigned by WriteEmbeddings.
func (d *DB) Insert(ctx context.Context, t types.Transaction) (int64, error) {
	var description sql.NullString
	if t.Description != "" {
		description = sql.NullString{String: t.Description, Valid: true}
	}
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO transactions (account_number, transaction_date, description, category, amount)
		VALUES (?, ?, ?, ?, ?)
	`, t.AccountNumber, t.Date, description, t.Category, t.Amount.String())
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	d.logger.Debug("Inserted transaction", "id", id, "account", t.AccountNumber, "amount", t.Amount)
	return id, nil
}

// SelectUnembedded returns up to limit rows that have no embedding yet, oldest first.
// A NULL description comes back as an empty string.
func (d *DB) SelectUnembedded(ctx context.Context, limit int) ([]types.Transaction, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, account_number, transaction_date, IFNULL(description, ''), category, amount
		FROM transactions
		WHERE embedding_vec IS NULL
		ORDER BY id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select unembedded transactions: %w", err)
	}
	defer rows.Close()

	var out []types.Transaction
	for rows.Next() {
		var t types.Transaction
		if err := rows.Scan(&t.ID, &t.AccountNumber, &t.Date, &t.Description, &t.Category, &t.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return out, nil
}

// WriteEmbeddings assigns vectors to rows in a single SQL transaction. Rows that
// already carry an embedding are left untouched. An empty vector, or one whose
// length differs from the stored embeddings, rejects the whole batch. It
// returns the number of rows written.
func (d *DB) WriteEmbeddings(ctx context.Context, embeddings map[int64][]float32) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(embeddings))
	for id := range embeddings {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	dim, err := storedDimension(ctx, tx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		vec := embeddings[id]
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != dim {
			return 0, fmt.Errorf("%w: id %d has %d components, store holds %d", ErrMalformedVector, id, len(vec), dim)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE transactions SET embedding_vec = ?
		WHERE id = ? AND embedding_vec IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	var written int
	for _, id := range ids {
		result, err := stmt.ExecContext(ctx, vector.Format(embeddings[id]), id)
		if err != nil {
			return 0, fmt.Errorf("failed to write embedding for id %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		written += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit embeddings: %w", err)
	}
	return written, nil
}

// storedDimension returns the length of an existing embedding, or 0 when no row
// has one yet
func storedDimension(ctx context.Context, tx *sql.Tx) (int, error) {
	var literal string
	err := tx.QueryRowContext(ctx, `
		SELECT embedding_vec FROM transactions
		WHERE embedding_vec IS NOT NULL
		ORDER BY id LIMIT 1
	`).Scan(&literal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stored embedding: %w", err)
	}
	vec, err := vector.Parse(literal)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedVector, err)
	}
	return len(vec), nil
}

// QueryByDistance returns the k embedded transactions closest to query by cosine
// distance, nearest first. Equal distances are ordered by id.
func (d *DB) QueryByDistance(ctx context.Context, query []float32, k int) ([]types.Candidate, error) {
	if k <= 0 {
		return []types.Candidate{}, nil
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, account_number, transaction_date, IFNULL(description, ''), category, amount, embedding_vec
		FROM transactions
		WHERE embedding_vec IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embedded transactions: %w", err)
	}
	defer rows.Close()

	var candidates []types.Candidate
	for rows.Next() {
		var c types.Candidate
		var literal string
		if err := rows.Scan(&c.ID, &c.AccountNumber, &c.Date, &c.Description, &c.Category, &c.Amount, &literal); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		vec, err := vector.Parse(literal)
		if err != nil {
			return nil, fmt.Errorf("%w: id %d: %v", ErrMalformedVector, c.ID, err)
		}
		if len(vec) != len(query) {
			return nil, fmt.Errorf("%w: id %d has %d components, query has %d", ErrMalformedVector, c.ID, len(vec), len(query))
		}
		c.Distance, err = vector.CosineDistance(query, vec)
		if err != nil {
			return nil, fmt.Errorf("failed to compute distance for id %d: %w", c.ID, err)
		}
		c.Embedding = vec
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	types.SortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}
	return candidates, nil
}

// Get returns a single transaction by id, or nil if it does not exist
func (d *DB) Get(ctx context.Context, id int64) (*types.Transaction, error) {
	var t types.Transaction
	var literal sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT id, account_number, transaction_date, IFNULL(description, ''), category, amount, embedding_vec
		FROM transactions WHERE id = ?
	`, id).Scan(&t.ID, &t.AccountNumber, &t.Date, &t.Description, &t.Category, &t.Amount, &literal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if literal.Valid {
		vec, err := vector.Parse(literal.String)
		if err != nil {
			return nil, fmt.Errorf("%w: id %d: %v", ErrMalformedVector, id, err)
		}
		t.Embedding = vec
	}
	return &t, nil
}

// Count returns the number of transactions in the database
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// CountUnembedded returns the number of transactions still waiting for an embedding
func (d *DB) CountUnembedded(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE embedding_vec IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unembedded transactions: %w", err)
	}
	return count, nil
}

