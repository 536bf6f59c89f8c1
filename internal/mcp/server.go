package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/shopspring/decimal"

	"github.com/lox/transaction-risk-analyzer/internal/types"
)

// Scorer runs a risk query
type Scorer interface {
	Score(ctx context.Context, query types.Query) ([]types.SearchResult, error)
}

// IndexStatus reports how much of the store has been indexed
type IndexStatus interface {
	Count(ctx context.Context) (int, error)
	CountUnembedded(ctx context.Context) (int, error)
}

type Server struct {
	scorer Scorer
	status IndexStatus
	logger *log.Logger
}

func New(scorer Scorer, status IndexStatus, logger *log.Logger) *Server {
	return &Server{
		scorer: scorer,
		status: status,
		logger: logger,
	}
}

// MCPServer builds the MCP server with every tool registered
func (s *Server) MCPServer() *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"Transaction Risk Analyzer",
		"1.0.0",
	)

	mcpServer.AddTool(mcp.NewTool("score_transactions",
		mcp.WithDescription("Find transactions similar to a query and score each one for fraud risk"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query, e.g. 'Transfer' or 'Bonus Payout'"),
		),
		mcp.WithString("min_amount",
			mcp.Description("Amount above which the amount rule fires (default: 5000)"),
		),
	), s.scoreTransactionsHandler)

	mcpServer.AddTool(mcp.NewTool("index_status",
		mcp.WithDescription("Report how many transactions are stored and how many still need an embedding"),
	), s.indexStatusHandler)

	return mcpServer
}

// Run serves the tools over stdio until stdin closes
func (s *Server) Run() error {
	if err := server.ServeStdio(s.MCPServer()); err != nil {
		return err
	}
	return nil
}

func (s *Server) scoreTransactionsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, ok := request.Params.Arguments["query"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return nil, errors.New("query must be a non-empty string")
	}

	query := types.NewQuery(text)
	if v, ok := request.Params.Arguments["min_amount"]; ok {
		amount, err := parseAmount(v)
		if err != nil {
			return nil, err
		}
		query.MinAmount = amount
	}

	results, err := s.scorer.Score(ctx, query)
	if err != nil {
		s.logger.Error("Failed to score transactions", "query", text, "error", err)
		return nil, fmt.Errorf("failed to score transactions: %w", err)
	}

	return mcp.NewToolResultText(formatResults(query, results)), nil
}

func (s *Server) indexStatusHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	total, err := s.status.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	pending, err := s.status.CountUnembedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count unembedded transactions: %w", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Transactions: %d\nIndexed: %d\nPending: %d\n", total, total-pending, pending)), nil
}

func parseAmount(v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case string:
		amount, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("min_amount must be a valid number: %w", err)
		}
		return amount, nil
	default:
		return decimal.Decimal{}, errors.New("min_amount must be a number or string")
	}
}

func formatResults(query types.Query, results []types.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No indexed transactions found for %q\n", query.Text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d transactions for %q (min amount %s)\n\n", len(results), query.Text, query.MinAmount)
	for _, r := range results {
		fmt.Fprintf(&b, "[%s] %s: %s - %s\n", r.Severity, r.Date, r.Amount.StringFixed(2), r.Description)
		fmt.Fprintf(&b, "  Account: %s\n", r.AccountNumber)
		if r.Category != "" {
			fmt.Fprintf(&b, "  Category: %s\n", r.Category)
		}
		fmt.Fprintf(&b, "  Distance: %.4f\n", r.Distance)
		fmt.Fprintf(&b, "  Rules: %s\n", r.Explanation)
		fmt.Fprintf(&b, "  Anomaly score: %.4f\n", r.AnomalyScore)
		b.WriteString("\n")
	}
	return b.String()
}
