// Package risk runs the scoring pipeline: retrieval, rules, anomaly detection
// and severity fusion.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/transaction-risk-analyzer/internal/anomaly"
	"github.com/lox/transaction-risk-analyzer/internal/rules"
	"github.com/lox/transaction-risk-analyzer/internal/search"
	"github.com/lox/transaction-risk-analyzer/internal/types"
)

// Fuse maps a rule flag and an anomaly flag to a severity label
func Fuse(ruleFlag, anomalyFlag int) types.Severity {
	switch {
	case ruleFlag == 1 && anomalyFlag == 1:
		return types.SeverityHigh
	case ruleFlag == 1:
		return types.SeverityMedium
	case anomalyFlag == 1:
		return types.SeveritySuspicious
	default:
		return types.SeverityLow
	}
}

type Pipeline struct {
	searcher *search.Searcher
	rules    *rules.Engine
	scorer   *anomaly.Scorer
	logger   *log.Logger
}

func NewPipeline(searcher *search.Searcher, engine *rules.Engine, scorer *anomaly.Scorer, logger *log.Logger) *Pipeline {
	return &Pipeline{
		searcher: searcher,
		rules:    engine,
		scorer:   scorer,
		logger:   logger,
	}
}

// Score retrieves the nearest transactions for the query and annotates each
// with every risk signal. Results keep ascending distance order. Any failure
// fails the whole query.
func (p *Pipeline) Score(ctx context.Context, query types.Query) ([]types.SearchResult, error) {
	startTime := time.Now()

	candidates, err := p.searcher.Search(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to search transactions: %w", err)
	}

	results := make([]types.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = types.NewSearchResult(c)
	}

	p.rules.Apply(query, results)
	results = p.scorer.Score(results)

	var ruleHits, anomalies int
	for i := range results {
		results[i].Severity = Fuse(results[i].RuleFlag, results[i].AnomalyFlag)
		ruleHits += results[i].RuleFlag
		anomalies += results[i].AnomalyFlag
	}

	p.logger.Info("Scored query",
		"query", query.Text,
		"min_amount", query.MinAmount,
		"results", len(results),
		"rule_flags", ruleHits,
		"anomalies", anomalies,
		"duration", time.Since(startTime))

	return results, nil
}
