package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/lox/transaction-risk-analyzer/internal/commands"
	"github.com/lox/transaction-risk-analyzer/internal/indexer"
)

type IndexerCLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
	Update UpdateCmd `cmd:"" default:"1" help:"Embed every transaction that does not have an embedding yet."`
	Status StatusCmd `cmd:"" help:"Show how many transactions still need an embedding."`
	Test   TestCmd   `cmd:"" help:"Test embedding generation for a given text input."`
}

type UpdateCmd struct {
	BatchSize  int           `help:"Number of transactions embedded per batch" default:"32" env:"BATCH_SIZE"`
	Pause      time.Duration `help:"Pause between batches" default:"200ms"`
	NoProgress bool          `help:"Disable progress bar" default:"false"`
}

type StatusCmd struct{}

type TestCmd struct {
	Text string `help:"Text to generate embedding for" required:""`
}

func (c *UpdateCmd) Run(cli *IndexerCLI) error {
	logger, err := commands.SetupLogger(cli.CommonConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := commands.SetupPersistentStore(cli.CommonConfig, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	encoder, err := commands.SetupEncoder(ctx, cli.EmbeddingConfig, logger)
	if err != nil {
		return err
	}
	defer commands.CloseEncoder(encoder, logger)

	config := indexer.NewConfig().
		WithBatchSize(c.BatchSize).
		WithPause(c.Pause)
	if !c.NoProgress {
		pending, err := store.CountUnembedded(ctx)
		if err != nil {
			return fmt.Errorf("failed to count unembedded transactions: %w", err)
		}
		config = config.WithProgress(indexer.NewBarProgress(pending, os.Stderr))
	}

	ix, err := indexer.New(store, encoder, config, logger)
	if err != nil {
		return err
	}

	stats, err := ix.Run(ctx)
	if err != nil {
		return fmt.Errorf("indexing stopped after %d batches: %w", stats.Batches, err)
	}
	fmt.Printf("Embedded %d transactions in %d batches\n", stats.Written, stats.Batches)
	return nil
}

func (c *StatusCmd) Run(cli *IndexerCLI) error {
	logger, err := commands.SetupLogger(cli.CommonConfig)
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := commands.SetupPersistentStore(cli.CommonConfig, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count transactions: %w", err)
	}
	pending, err := store.CountUnembedded(ctx)
	if err != nil {
		return fmt.Errorf("failed to count unembedded transactions: %w", err)
	}
	fmt.Printf("Transactions: %d\nIndexed:      %d\nPending:      %d\n", total, total-pending, pending)
	return nil
}

func (c *TestCmd) Run(cli *IndexerCLI) error {
	logger, err := commands.SetupLogger(cli.CommonConfig)
	if err != nil {
		return err
	}
	ctx := context.Background()

	encoder, err := commands.SetupEncoder(ctx, cli.EmbeddingConfig, logger)
	if err != nil {
		return err
	}
	defer commands.CloseEncoder(encoder, logger)

	start := time.Now()
	vec, err := encoder.Encode(ctx, c.Text)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}
	fmt.Printf("Model: %s\nDimension: %d\nDuration: %s\n", encoder.ModelName(), len(vec), time.Since(start))
	if len(vec) > 8 {
		vec = vec[:8]
	}
	fmt.Printf("First components: %v\n", vec)
	return nil
}

func main() {
	_ = godotenv.Load()

	cli := &IndexerCLI{}
	ctx := kong.Parse(cli,
		kong.Name("risk-indexer"),
		kong.Description("Embed transaction descriptions for similarity search"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
