package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/lox/transaction-risk-analyzer/internal/commands"
	"github.com/lox/transaction-risk-analyzer/internal/mcp"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
	commands.RulesConfig
}

func (c *CLI) Run() error {
	logger, err := commands.SetupLogger(c.CommonConfig)
	if err != nil {
		return err
	}
	ctx := context.Background()

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

	return mcp.New(pipeline, store, logger).Run()
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("risk-mcp-server"),
		kong.Description("Expose transaction risk scoring as MCP tools over stdio"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
