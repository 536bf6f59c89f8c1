package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/charmbracelet/log"
)

// Migration is a single schema change, applied at most once per database
type Migration struct {
	ID   int
	Name string
	Up   func(ctx context.Context, tx *sql.Tx) error
}

// migrations are applied in order. Append new ones; never renumber.
var migrations = []Migration{
	{
		ID:   1,
		Name: "index unembedded rows",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_transactions_unembedded
				ON transactions(id) WHERE embedding_vec IS NULL
			`)
			return err
		},
	},
	{
		ID:   2,
		Name: "index account numbers",
		Up: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				CREATE INDEX IF NOT EXISTS idx_transactions_account
				ON transactions(account_number)
			`)
			return err
		},
	},
}

// ApplyMigrations applies all pending migrations, each in its own transaction
func ApplyMigrations(ctx context.Context, db *sql.DB, logger *log.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		logger.Info("Applying migration", "id", m.ID, "name", m.Name)
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.ID, err)
		}
		if err := m.Up(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO migrations (id) VALUES (?)`, m.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.ID, err)
		}
	}
	return nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan migration id: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}
