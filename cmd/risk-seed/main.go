package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/lox/transaction-risk-analyzer/internal/commands"
	"github.com/lox/transaction-risk-analyzer/internal/qif"
	"github.com/lox/transaction-risk-analyzer/internal/seed"
)

type SeedCLI struct {
	commands.CommonConfig
	Generate GenerateCmd `cmd:"" default:"1" help:"Insert synthetic transactions."`
	Import   ImportCmd   `cmd:"" help:"Import transactions from a QIF file."`
}

type GenerateCmd struct {
	Count int    `help:"Number of synthetic transactions to insert" default:"200"`
	Seed  uint64 `help:"Random seed, 0 picks one from the clock" default:"0"`
}

type ImportCmd struct {
	File       string `arg:"" help:"QIF file to import" type:"existingfile"`
	Account    string `help:"Account number recorded on every imported transaction" required:""`
	DateLayout string `help:"Go time layout of QIF dates" default:"02/01/2006"`
}

func (c *GenerateCmd) Run(cli *SeedCLI) error {
	logger, err := commands.SetupLogger(cli.CommonConfig)
	if err != nil {
		return err
	}

	store, err := commands.SetupPersistentStore(cli.CommonConfig, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	s := c.Seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	txs := seed.NewGenerator(s, time.Now).Generate(c.Count)

	n, err := seed.Insert(context.Background(), store, txs, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Inserted %d transactions (seed %d)\n", n, s)
	return nil
}

func (c *ImportCmd) Run(cli *SeedCLI) error {
	logger, err := commands.SetupLogger(cli.CommonConfig)
	if err != nil {
		return err
	}

	records, err := qif.ParseFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", c.File, err)
	}
	txs, err := qif.ToTransactions(records, c.Account, c.DateLayout)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", c.File, err)
	}

	store, err := commands.SetupPersistentStore(cli.CommonConfig, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := seed.Insert(context.Background(), store, txs, logger)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d transactions from %s\n", n, c.File)
	return nil
}

func main() {
	_ = godotenv.Load()

	cli := &SeedCLI{}
	ctx := kong.Parse(cli,
		kong.Name("risk-seed"),
		kong.Description("Load transactions into the store, synthetic or from a QIF export"),
		kong.UsageOnError(),
	)

	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
