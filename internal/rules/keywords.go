package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// KeywordRule is the on-disk form of a keyword predicate
type KeywordRule struct {
	Name    string `yaml:"name"`
	Keyword string `yaml:"keyword"`
}

// LoadKeywordPredicates reads a YAML list of keyword rules, e.g.
//
//	- name: crypto
//	  keyword: Crypto Exchange
func LoadKeywordPredicates(filename string) ([]Predicate, error) {
	if err := validateRuleFilePath(filename); err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseKeywordPredicates(data)
}

// ParseKeywordPredicates decodes keyword rules from YAML
func ParseKeywordPredicates(data []byte) ([]Predicate, error) {
	var keywordRules []KeywordRule
	if err := yaml.Unmarshal(data, &keywordRules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(keywordRules))
	predicates := make([]Predicate, 0, len(keywordRules))
	for i, r := range keywordRules {
		if strings.TrimSpace(r.Keyword) == "" {
			return nil, fmt.Errorf("rule %d: keyword is required", i)
		}
		name := r.Name
		if name == "" {
			name = r.Keyword
		}
		if seen[name] {
			return nil, fmt.Errorf("rule %d: duplicate name %q", i, name)
		}
		seen[name] = true
		predicates = append(predicates, ContainsKeyword(name, r.Keyword))
	}
	return predicates, nil
}

func validateRuleFilePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("empty file path")
	}
	ext := strings.ToLower(filepath.Ext(filepath.Clean(path)))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("rule files must have .yaml or .yml extension")
	}
	return nil
}
