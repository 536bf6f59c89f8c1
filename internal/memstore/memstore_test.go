package memstore

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/transaction-risk-analyzer/internal/db"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(log.New(io.Discard))
	require.NoError(t, err)
	return s
}

func tx(description, amount string) types.Transaction {
	return types.Transaction{
		AccountNumber: "ACC120",
		Date:          "2025-02-01",
		Description:   description,
		Category:      "Transfer",
		Amount:        decimal.RequireFromString(amount),
	}
}

func TestInsertSelectWrite(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, err := s.Insert(ctx, tx("Coffee", "4.5"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, tx("", "12"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, []int64{a, b})

	rows, err := s.SelectUnembedded(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, a, rows[0].ID)

	n, err := s.WriteEmbeddings(ctx, map[int64][]float32{a: {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// write-once: a second assignment is ignored
	n, err = s.WriteEmbeddings(ctx, map[int64][]float32{a: {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rows, err = s.SelectUnembedded(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, b, rows[0].ID)

	total, _ := s.Count(ctx)
	pending, _ := s.CountUnembedded(ctx)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, pending)
}

func TestQueryByDistance(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	far, _ := s.Insert(ctx, tx("Netflix Subscription", "15"))
	near, _ := s.Insert(ctx, tx("International Transfer", "9000.25"))
	mid, _ := s.Insert(ctx, tx("Wire Transfer International", "25000"))
	_, _ = s.Insert(ctx, tx("Pending", "1"))

	_, err := s.WriteEmbeddings(ctx, map[int64][]float32{
		far:  {0, 1},
		near: {1, 0.01},
		mid:  {1, 0.5},
	})
	require.NoError(t, err)

	results, err := s.QueryByDistance(ctx, []float32{1, 0}, 20)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int64{near, mid, far}, []int64{results[0].ID, results[1].ID, results[2].ID})
	assert.Equal(t, "International Transfer", results[0].Description)
	assert.True(t, decimal.RequireFromString("9000.25").Equal(results[0].Amount))
	assert.InDelta(t, 1.0, results[2].Distance, 1e-6)

	top, err := s.QueryByDistance(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestQueryByDistanceEmpty(t *testing.T) {
	s := newStore(t)
	results, err := s.QueryByDistance(context.Background(), []float32{1, 0}, 20)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryByDistanceDimensionMismatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id, _ := s.Insert(ctx, tx("Coffee", "3"))
	_, err := s.WriteEmbeddings(ctx, map[int64][]float32{id: {1, 0, 0}})
	require.NoError(t, err)

	_, err = s.QueryByDistance(ctx, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, db.ErrMalformedVector)

	other, _ := s.Insert(ctx, tx("Rent", "900"))
	_, err = s.WriteEmbeddings(ctx, map[int64][]float32{other: {1, 0}})
	assert.ErrorIs(t, err, db.ErrMalformedVector)
	pending, _ := s.CountUnembedded(ctx)
	assert.Equal(t, 1, pending)
}
