package risk

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/transaction-risk-analyzer/internal/anomaly"
	"github.com/lox/transaction-risk-analyzer/internal/embeddings"
	"github.com/lox/transaction-risk-analyzer/internal/indexer"
	"github.com/lox/transaction-risk-analyzer/internal/memstore"
	"github.com/lox/transaction-risk-analyzer/internal/rules"
	"github.com/lox/transaction-risk-analyzer/internal/search"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

func TestFuse(t *testing.T) {
	tests := []struct {
		rule, anomaly int
		want          types.Severity
	}{
		{1, 1, types.SeverityHigh},
		{1, 0, types.SeverityMedium},
		{0, 1, types.SeveritySuspicious},
		{0, 0, types.SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fuse(tt.rule, tt.anomaly), "rule=%d anomaly=%d", tt.rule, tt.anomaly)
	}
}

// newPipeline builds a pipeline over an in-memory store holding the given
// transactions, all indexed
func newPipeline(t *testing.T, txs ...types.Transaction) *Pipeline {
	t.Helper()
	ctx := context.Background()
	logger := log.New(io.Discard)

	store, err := memstore.New(logger)
	require.NoError(t, err)
	for _, tx := range txs {
		_, err := store.Insert(ctx, tx)
		require.NoError(t, err)
	}

	enc, err := embeddings.NewHashEncoder(128)
	require.NoError(t, err)

	ix, err := indexer.New(store, enc, indexer.NewConfig().WithPause(0), logger)
	require.NoError(t, err)
	_, err = ix.Run(ctx)
	require.NoError(t, err)

	scorer, err := anomaly.NewScorer(anomaly.NewConfig(), logger)
	require.NoError(t, err)

	return NewPipeline(search.NewSearcher(enc, store, logger), rules.NewEngine(), scorer, logger)
}

func transaction(description, amount string) types.Transaction {
	return types.Transaction{
		AccountNumber: "ACC101",
		Date:          "2025-05-01",
		Description:   description,
		Category:      "Transfer",
		Amount:        decimal.RequireFromString(amount),
	}
}

func TestScoreScenario(t *testing.T) {
	p := newPipeline(t,
		transaction("Wire Transfer International", "25000"),
		transaction("Coffee", "50"),
	)

	results, err := p.Score(context.Background(), types.NewQuery("Transfer"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	byDescription := map[string]types.SearchResult{}
	for _, r := range results {
		byDescription[r.Description] = r
	}

	wire := byDescription["Wire Transfer International"]
	assert.Equal(t, 1, wire.RuleFlag)
	assert.Equal(t, "Amount > 5000 & Contains 'International' & Contains 'Wire Transfer'", wire.Explanation)
	assert.Equal(t, 1, wire.AnomalyFlag)
	assert.Equal(t, types.SeverityHigh, wire.Severity)

	coffee := byDescription["Coffee"]
	assert.Equal(t, 0, coffee.RuleFlag)
	assert.Equal(t, rules.NoRuleTriggered, coffee.Explanation)
	assert.Equal(t, 0, coffee.AnomalyFlag)
	assert.Equal(t, types.SeverityLow, coffee.Severity)

	assert.Equal(t, "Wire Transfer International", results[0].Description)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestScoreIsDeterministic(t *testing.T) {
	p := newPipeline(t,
		transaction("Salary Deposit", "4200"),
		transaction("Bonus Payout", "18000"),
		transaction("Rent Payment", "1500"),
		transaction("Netflix Subscription", "15.99"),
		transaction("International Transfer", "9000"),
		transaction("Amazon Purchase", "89.10"),
	)

	q := types.Query{Text: "payout", MinAmount: decimal.NewFromInt(10000)}
	first, err := p.Score(context.Background(), q)
	require.NoError(t, err)
	second, err := p.Score(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, r := range first {
		assert.Contains(t, []types.Severity{types.SeverityHigh, types.SeverityMedium, types.SeveritySuspicious, types.SeverityLow}, r.Severity)
	}
}

func TestScoreEmptyStore(t *testing.T) {
	p := newPipeline(t)
	results, err := p.Score(context.Background(), types.NewQuery("Transfer"))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScoreEmptyQuery(t *testing.T) {
	p := newPipeline(t, transaction("Coffee", "3"))
	_, err := p.Score(context.Background(), types.NewQuery(""))
	assert.ErrorIs(t, err, search.ErrEmptyQuery)
}
