// Package rules evaluates deterministic risk predicates against retrieved transactions.
package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lox/transaction-risk-analyzer/internal/types"
)

// NoRuleTriggered is the explanation of a row where no predicate fired
const NoRuleTriggered = "No rule triggered"

const fragmentSeparator = " & "

// Predicate is a single named check. Fragment renders the explanation text
// appended when Match returns true.
type Predicate struct {
	Name     string
	Match    func(row types.SearchResult, minAmount decimal.Decimal) bool
	Fragment func(minAmount decimal.Decimal) string
}

// AmountAbove fires when the amount strictly exceeds the query's minimum amount
func AmountAbove() Predicate {
	return Predicate{
		Name: "amount_above_minimum",
		Match: func(row types.SearchResult, minAmount decimal.Decimal) bool {
			return row.Amount.GreaterThan(minAmount)
		},
		Fragment: func(minAmount decimal.Decimal) string {
			return fmt.Sprintf("Amount > %s", minAmount.String())
		},
	}
}

// ContainsKeyword fires when the description contains keyword, matching case
func ContainsKeyword(name, keyword string) Predicate {
	return Predicate{
		Name: name,
		Match: func(row types.SearchResult, _ decimal.Decimal) bool {
			return strings.Contains(row.Description, keyword)
		},
		Fragment: func(decimal.Decimal) string {
			return fmt.Sprintf("Contains '%s'", keyword)
		},
	}
}

// DefaultPredicates returns the built-in rule set in evaluation order
func DefaultPredicates() []Predicate {
	return []Predicate{
		AmountAbove(),
		ContainsKeyword("international", "International"),
		ContainsKeyword("wire_transfer", "Wire Transfer"),
		ContainsKeyword("bonus_payout", "Bonus Payout"),
	}
}

// Outcome is the result of evaluating every predicate against one row
type Outcome struct {
	Flag        int
	Fragments   []string
	Explanation string
}

// Engine holds an ordered list of predicates
type Engine struct {
	predicates []Predicate
}

// NewEngine creates an engine using predicates, or the defaults when none are given
func NewEngine(predicates ...Predicate) *Engine {
	if len(predicates) == 0 {
		predicates = DefaultPredicates()
	}
	return &Engine{predicates: predicates}
}

// Predicates returns the names of the configured predicates in order
func (e *Engine) Predicates() []string {
	names := make([]string, len(e.predicates))
	for i, p := range e.predicates {
		names[i] = p.Name
	}
	return names
}

// Evaluate checks row against every predicate. Predicates are only consulted
// when the query text occurs in the description, ignoring case.
func (e *Engine) Evaluate(query string, minAmount decimal.Decimal, row types.SearchResult) Outcome {
	if !strings.Contains(strings.ToLower(row.Description), strings.ToLower(query)) {
		return Outcome{Explanation: NoRuleTriggered}
	}

	var fragments []string
	for _, p := range e.predicates {
		if p.Match(row, minAmount) {
			fragments = append(fragments, p.Fragment(minAmount))
		}
	}
	if len(fragments) == 0 {
		return Outcome{Explanation: NoRuleTriggered}
	}
	return Outcome{
		Flag:        1,
		Fragments:   fragments,
		Explanation: strings.Join(fragments, fragmentSeparator),
	}
}

// Apply evaluates every row in place
func (e *Engine) Apply(query types.Query, rows []types.SearchResult) {
	for i := range rows {
		outcome := e.Evaluate(query.Text, query.MinAmount, rows[i])
		rows[i].RuleFlag = outcome.Flag
		rows[i].Explanation = outcome.Explanation
	}
}
