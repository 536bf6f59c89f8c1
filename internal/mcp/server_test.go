package mcp

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/transaction-risk-analyzer/internal/types"
)

type stubScorer struct {
	got     types.Query
	results []types.SearchResult
	err     error
}

func (s *stubScorer) Score(_ context.Context, q types.Query) ([]types.SearchResult, error) {
	s.got = q
	return s.results, s.err
}

type stubStatus struct{ total, pending int }

func (s stubStatus) Count(context.Context) (int, error)           { return s.total, nil }
func (s stubStatus) CountUnembedded(context.Context) (int, error) { return s.pending, nil }

func request(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return content.Text
}

func TestScoreTransactions(t *testing.T) {
	scorer := &stubScorer{results: []types.SearchResult{{
		ID:            1,
		AccountNumber: "ACC101",
		Date:          "2025-06-01",
		Description:   "Wire Transfer International",
		Amount:        decimal.NewFromInt(25000),
		Explanation:   "Amount > 1000",
		Severity:      types.SeverityHigh,
	}}}
	s := New(scorer, stubStatus{}, log.New(io.Discard))

	result, err := s.scoreTransactionsHandler(context.Background(), request(map[string]interface{}{
		"query":      "Transfer",
		"min_amount": "1000",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Transfer", scorer.got.Text)
	assert.True(t, decimal.NewFromInt(1000).Equal(scorer.got.MinAmount))

	out := text(t, result)
	assert.Contains(t, out, "[High Risk] 2025-06-01: 25000.00 - Wire Transfer International")
	assert.Contains(t, out, "Rules: Amount > 1000")
}

func TestScoreTransactionsDefaults(t *testing.T) {
	scorer := &stubScorer{}
	s := New(scorer, stubStatus{}, log.New(io.Discard))

	result, err := s.scoreTransactionsHandler(context.Background(), request(map[string]interface{}{"query": "coffee"}))
	require.NoError(t, err)
	assert.True(t, types.DefaultMinAmount.Equal(scorer.got.MinAmount))
	assert.Contains(t, text(t, result), "No indexed transactions found")

	_, err = s.scoreTransactionsHandler(context.Background(), request(map[string]interface{}{"query": "coffee", "min_amount": 250.5}))
	require.NoError(t, err)
	assert.Equal(t, "250.5", scorer.got.MinAmount.String())
}

func TestScoreTransactionsInvalidInput(t *testing.T) {
	s := New(&stubScorer{}, stubStatus{}, log.New(io.Discard))

	_, err := s.scoreTransactionsHandler(context.Background(), request(map[string]interface{}{}))
	assert.Error(t, err)

	_, err = s.scoreTransactionsHandler(context.Background(), request(map[string]interface{}{"query": "x", "min_amount": "lots"}))
	assert.Error(t, err)

	_, err = s.scoreTransactionsHandler(context.Background(), request(map[string]interface{}{"query": "x", "min_amount": true}))
	assert.Error(t, err)
}

func TestScoreTransactionsFailure(t *testing.T) {
	s := New(&stubScorer{err: errors.New("store unavailable")}, stubStatus{}, log.New(io.Discard))
	_, err := s.scoreTransactionsHandler(context.Background(), request(map[string]interface{}{"query": "x"}))
	assert.ErrorContains(t, err, "store unavailable")
}

func TestIndexStatus(t *testing.T) {
	s := New(&stubScorer{}, stubStatus{total: 10, pending: 3}, log.New(io.Discard))
	result, err := s.indexStatusHandler(context.Background(), request(nil))
	require.NoError(t, err)
	assert.Equal(t, "Transactions: 10\nIndexed: 7\nPending: 3\n", text(t, result))
}

func TestMCPServerBuilds(t *testing.T) {
	assert.NotNil(t, New(&stubScorer{}, stubStatus{}, log.New(io.Discard)).MCPServer())
}
