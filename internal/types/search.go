package types

import "github.com/shopspring/decimal"

// DefaultMinAmount is the amount threshold used when a query omits one
var DefaultMinAmount = decimal.NewFromInt(5000)

// Severity is the fused risk label of a search result
type Severity string

const (
	SeverityHigh       Severity = "High Risk"
	SeverityMedium     Severity = "Medium Risk"
	SeveritySuspicious Severity = "Suspicious"
	SeverityLow        Severity = "Low Risk"
)

// Query is a single scoring request
type Query struct {
	Text      string
	MinAmount decimal.Decimal
}

// NewQuery returns a query using the default minimum amount
func NewQuery(text string) Query {
	return Query{Text: text, MinAmount: DefaultMinAmount}
}

// SearchResult is a retrieved transaction annotated with every risk signal.
// It is built fresh for each query and never persisted.
type SearchResult struct {
	ID            int64           `json:"id"`
	AccountNumber string          `json:"account_number"`
	Date          string          `json:"transaction_date"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Amount        decimal.Decimal `json:"amount"`

	Distance     float64  `json:"distance"`
	RuleFlag     int      `json:"rule_flag"`
	Explanation  string   `json:"explanation"`
	AnomalyFlag  int      `json:"anomaly_flag"`
	AnomalyScore float64  `json:"anomaly_score"`
	Severity     Severity `json:"severity"`
}

// NewSearchResult copies the public fields of a candidate into a result record
func NewSearchResult(c Candidate) SearchResult {
	return SearchResult{
		ID:            c.ID,
		AccountNumber: c.AccountNumber,
		Date:          c.Date,
		Description:   c.Description,
		Category:      c.Category,
		Amount:        c.Amount,
		Distance:      c.Distance,
	}
}
