package commands

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/transaction-risk-analyzer/internal/anomaly"
	"github.com/lox/transaction-risk-analyzer/internal/embeddings"
	"github.com/lox/transaction-risk-analyzer/internal/risk"
	"github.com/lox/transaction-risk-analyzer/internal/rules"
	"github.com/lox/transaction-risk-analyzer/internal/search"
)

// RulesConfig contains flag definitions for the rule engine
type RulesConfig struct {
	// RulesFile is an optional YAML file of extra keyword rules
	RulesFile string `help:"YAML file with extra keyword rules appended to the built-in ones" type:"existingfile" env:"RULES_FILE"`
}

// SetupPipeline wires search, rules and anomaly scoring into a risk pipeline
func SetupPipeline(encoder embeddings.Encoder, store search.Store, config RulesConfig, logger *log.Logger) (*risk.Pipeline, error) {
	predicates := rules.DefaultPredicates()
	if config.RulesFile != "" {
		extra, err := rules.LoadKeywordPredicates(config.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules from %s: %w", config.RulesFile, err)
		}
		predicates = append(predicates, extra...)
		logger.Info("Loaded keyword rules", "file", config.RulesFile, "count", len(extra))
	}
	engine := rules.NewEngine(predicates...)

	scorer, err := anomaly.NewScorer(anomaly.NewConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create anomaly scorer: %w", err)
	}

	searcher := search.NewSearcher(encoder, store, logger, search.WithTopK(search.DefaultTopK))
	return risk.NewPipeline(searcher, engine, scorer, logger), nil
}
