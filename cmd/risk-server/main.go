package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/lox/transaction-risk-analyzer/internal/commands"
	"github.com/lox/transaction-risk-analyzer/internal/embeddings"
	"github.com/lox/transaction-risk-analyzer/internal/indexer"
	"github.com/lox/transaction-risk-analyzer/internal/seed"
	"github.com/lox/transaction-risk-analyzer/internal/server"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
	commands.RulesConfig

	Addr           string   `help:"Address to listen on" default:":8000" env:"ADDR"`
	AllowedOrigins []string `help:"Origins allowed to call the API" default:"http://localhost:3000" env:"ALLOWED_ORIGINS"`
	DemoRows       int      `help:"Insert and index this many synthetic transactions before serving" default:"0"`
}

func (c *CLI) Run() error {
	logger, err := commands.SetupLogger(c.CommonConfig)
	if err != nil {
		return err
	}
	if c.Store == "memory" && c.DemoRows <= 0 {
		return fmt.Errorf("the memory store starts empty, use --demo-rows or --store sqlite")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := commands.SetupStore(c.CommonConfig, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	encoder, err := commands.SetupEncoder(ctx, c.EmbeddingConfig, logger)
	if err != nil {
		return err
	}
	defer commands.CloseEncoder(encoder, logger)

	if c.DemoRows > 0 {
		if err := loadDemo(ctx, store, encoder, c.DemoRows, logger); err != nil {
			return err
		}
	}

	pipeline, err := commands.SetupPipeline(encoder, store, c.RulesConfig, logger)
	if err != nil {
		return err
	}

	config := server.NewConfig().
		WithAddr(c.Addr).
		WithAllowedOrigins(c.AllowedOrigins...)
	return server.New(pipeline, config, logger).ListenAndServe(ctx)
}

func loadDemo(ctx context.Context, store commands.Store, encoder embeddings.Encoder, rows int, logger *log.Logger) error {
	txs := seed.NewGenerator(uint64(time.Now().UnixNano()), time.Now).Generate(rows)
	if _, err := seed.Insert(ctx, store, txs, logger); err != nil {
		return err
	}
	ix, err := indexer.New(store, encoder, indexer.NewConfig().WithPause(0), logger)
	if err != nil {
		return err
	}
	if _, err := ix.Run(ctx); err != nil {
		return fmt.Errorf("failed to index demo transactions: %w", err)
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("risk-server"),
		kong.Description("Serve the transaction risk scoring API"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
