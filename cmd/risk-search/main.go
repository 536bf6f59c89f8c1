package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/lox/transaction-risk-analyzer/internal/commands"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
	commands.RulesConfig

	Query     string `help:"Search query - what you're looking for" required:""`
	MinAmount string `help:"Amount above which the amount rule fires" default:"5000"`
	JSON      bool   `help:"Print results as JSON" default:"false"`
}

func (c *CLI) Run() error {
	logger, err := commands.SetupLogger(c.CommonConfig)
	if err != nil {
		return err
	}
	ctx := context.Background()

	minAmount, err := decimal.NewFromString(c.MinAmount)
	if err != nil {
		return fmt.Errorf("invalid min amount %q: %w", c.MinAmount, err)
	}

	store, err := commands.SetupPersistentStore(c.CommonConfig, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	encoder, err := commands.SetupEncoder(ctx, c.EmbeddingConfig, logger)
	if err != nil {
		return err
	}
	defer commands.CloseEncoder(encoder, logger)

	pipeline, err := commands.SetupPipeline(encoder, store, c.RulesConfig, logger)
	if err != nil {
		return err
	}

	results, err := pipeline.Score(ctx, types.Query{Text: c.Query, MinAmount: minAmount})
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"results": results})
	}

	fmt.Printf("=== RISK RESULTS (%d) ===\n\n", len(results))
	for _, r := range results {
		printResult(r)
	}
	return nil
}

// printResult prints the details of a scored transaction
func printResult(r types.SearchResult) {
	fmt.Printf("%s: %s - %s\n", r.Date, r.Amount.StringFixed(2), r.Description)
	fmt.Printf("  Severity: %s\n", r.Severity)
	fmt.Printf("  Account: %s\n", r.AccountNumber)
	if r.Category != "" {
		fmt.Printf("  Category: %s\n", r.Category)
	}
	fmt.Printf("  Distance: %.4f\n", r.Distance)
	fmt.Printf("  Rules: %s\n", r.Explanation)
	fmt.Printf("  Anomaly: %d (score %.4f)\n", r.AnomalyFlag, r.AnomalyScore)
	fmt.Println()
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("risk-search"),
		kong.Description("Score transactions similar to a query for fraud risk"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
