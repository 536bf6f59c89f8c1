// Package seed generates synthetic transactions for local development.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/transaction-risk-analyzer/internal/types"
)

const (
	accountCount = 50
	maxDaysAgo   = 60
	minAmount    = 10.0
	maxAmount    = 20000.0
)

type category struct {
	name         string
	descriptions []string
}

var categories = []category{
	{"Payment", []string{"Payment to Vendor X", "Payment to Contractor Z", "Bill Payment", "Rent Payment"}},
	{"Income", []string{"Salary Credit", "Bonus Payout", "Freelance Income"}},
	{"Shopping", []string{"Amazon Shopping", "Online Shopping Flipkart", "Groceries at Walmart", "Electronics Purchase"}},
	{"Transfer", []string{"International Transfer", "Wire Transfer International", "Transfer to Foreign Account"}},
	{"Transport", []string{"Uber Ride Payment", "Lyft Ride", "Train Ticket"}},
	{"Entertainment", []string{"Netflix Subscription", "Spotify Premium", "Movie Ticket"}},
}

// Accounts returns the account numbers the generator draws from
func Accounts() []string {
	accounts := make([]string, accountCount)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("ACC%d", 101+i)
	}
	return accounts
}

// Generator produces random transactions. The same seed and clock always
// produce the same sequence.
type Generator struct {
	rng      *rand.Rand
	now      func() time.Time
	accounts []string
}

func NewGenerator(seed uint64, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed)),
		now:      now,
		accounts: Accounts(),
	}
}

// Next returns one random transaction
func (g *Generator) Next() types.Transaction {
	c := categories[g.rng.IntN(len(categories))]
	amount := minAmount + g.rng.Float64()*(maxAmount-minAmount)
	daysAgo := g.rng.IntN(maxDaysAgo + 1)
	return types.Transaction{
		AccountNumber: g.accounts[g.rng.IntN(len(g.accounts))],
		Date:          g.now().AddDate(0, 0, -daysAgo).Format(types.DateLayout),
		Description:   c.descriptions[g.rng.IntN(len(c.descriptions))],
		Category:      c.name,
		Amount:        decimal.NewFromFloat(amount).Round(2),
	}
}

// Generate returns n random transactions
func (g *Generator) Generate(n int) []types.Transaction {
	out := make([]types.Transaction, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// Inserter is a store that accepts new transactions
type Inserter interface {
	Insert(ctx context.Context, t types.Transaction) (int64, error)
}

// Insert writes every transaction to the store, stopping at the first error
func Insert(ctx context.Context, store Inserter, txs []types.Transaction, logger *log.Logger) (int, error) {
	for i, t := range txs {
		if _, err := store.Insert(ctx, t); err != nil {
			return i, fmt.Errorf("failed to insert transaction %d: %w", i, err)
		}
	}
	logger.Info("Inserted transactions", "count", len(txs))
	return len(txs), nil
}
