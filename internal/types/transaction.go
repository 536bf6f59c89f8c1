package types

import (
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// DateLayout is the storage format for transaction dates
const DateLayout = "2006-01-02"

// Transaction is a single ledger entry as held by the store
type Transaction struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"account_number"`
	Date          string          `json:"transaction_date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`
	// Embedding is nil until the indexer has processed the row
	Embedding []float32 `json:"-"`
}

// HasEmbedding reports whether the row has been indexed
func (t Transaction) HasEmbedding() bool {
	return len(t.Embedding) > 0
}

// Candidate is a transaction returned by a distance query together with
// its distance to the query vector
type Candidate struct {
	Transaction
	Distance float64
}

// SortCandidates orders candidates by ascending distance, then id
func SortCandidates(candidates []Candidate) {
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
