// Package anomaly flags transactions whose amount is an outlier within the
// batch being scored. A fresh model is fitted on every call, so an anomaly is
// always relative to the rows returned by the current query.
package anomaly

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"github.com/lox/transaction-risk-analyzer/internal/types"
)

const (
	DefaultContamination = 0.05
	DefaultSeed          = 42
	DefaultTrees         = 100
	DefaultMaxSamples    = 256
)

type Config struct {
	Contamination float64
	Seed          uint64
	Trees         int
	MaxSamples    int
}

func NewConfig() Config {
	return Config{
		Contamination: DefaultContamination,
		Seed:          DefaultSeed,
		Trees:         DefaultTrees,
		MaxSamples:    DefaultMaxSamples,
	}
}

func (c Config) WithContamination(contamination float64) Config {
	c.Contamination = contamination
	return c
}

func (c Config) WithSeed(seed uint64) Config {
	c.Seed = seed
	return c
}

func (c Config) WithTrees(trees int) Config {
	c.Trees = trees
	return c
}

func (c Config) Validate() error {
	if c.Contamination <= 0 || c.Contamination > 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5], got %v", c.Contamination)
	}
	if c.Trees <= 0 {
		return fmt.Errorf("trees must be greater than 0")
	}
	if c.MaxSamples <= 1 {
		return fmt.Errorf("max samples must be greater than 1")
	}
	return nil
}

type Scorer struct {
	config Config
	logger *log.Logger
}

func NewScorer(config Config, logger *log.Logger) (*Scorer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Scorer{config: config, logger: logger}, nil
}

// Score sets AnomalyFlag and AnomalyScore on every row in place and returns
// rows. A higher score is more anomalous. Rows scoring strictly above the
// contamination threshold are flagged; when none do, the most anomalous amount
// is flagged. Rows with equal amounts always get the same flag.
func (s *Scorer) Score(rows []types.SearchResult) []types.SearchResult {
	if len(rows) == 0 {
		return rows
	}

	amounts := make([]float64, len(rows))
	for i, r := range rows {
		amounts[i] = r.Amount.InexactFloat64()
		rows[i].AnomalyFlag = 0
		rows[i].AnomalyScore = 0
	}
	if constant(amounts) {
		s.logger.Debug("Batch has no variance, nothing to flag", "rows", len(rows))
		return rows
	}

	rng := rand.New(rand.NewPCG(s.config.Seed, s.config.Seed))
	f := fitForest(amounts, s.config.Trees, s.config.MaxSamples, rng)

	scores := make([]float64, len(rows))
	for i, x := range amounts {
		scores[i] = f.score(x)
	}
	offset := percentile(scores, 1-s.config.Contamination)
	for i := range rows {
		rows[i].AnomalyScore = scores[i] - offset
	}

	flagged := 0
	for i := range rows {
		if rows[i].AnomalyScore > 0 {
			rows[i].AnomalyFlag = 1
			flagged++
		}
	}
	if flagged == 0 {
		// nothing clears the threshold: flag the top ranked amount and every
		// row sharing it
		top := amounts[rank(amounts, scores)[0]]
		for i := range rows {
			if amounts[i] == top {
				rows[i].AnomalyFlag = 1
				flagged++
			}
		}
	}

	s.logger.Debug("Scored batch", "rows", len(rows), "flagged", flagged, "offset", offset)
	return rows
}

// rank orders row indices from most to least anomalous. Equal scores are
// ordered by distance from the median amount, then by amount, then by position.
func rank(amounts, scores []float64) []int {
	median := percentile(amounts, 0.5)
	idx := make([]int, len(amounts))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if c := compareDesc(scores[a], scores[b]); c != 0 {
			return c
		}
		if c := compareDesc(math.Abs(amounts[a]-median), math.Abs(amounts[b]-median)); c != 0 {
			return c
		}
		return compareDesc(amounts[a], amounts[b])
	})
	return idx
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

// percentile returns the q-quantile of values using linear interpolation
func percentile(values []float64, q float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
