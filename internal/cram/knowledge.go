// Package cram selects and shrinks content so a rendered context fits a
// character budget.
package cram

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
	"github.com/rcliao/agent-context/internal/score"
	"github.com/rcliao/agent-context/internal/trim"
)

// Formatter renders documents in ranking order.
type Formatter interface {
	Format(k knowledge.Knowledge, ranking knowledge.Ranking) prompt.Context
}

// Strategy selects how an over-budget knowledge set is shrunk.
type Strategy string

const (
	// StrategyTrim progressively trims the lowest-density documents.
	StrategyTrim Strategy = "trim"
	// StrategyWhole evicts whole documents, lowest density first.
	StrategyWhole Strategy = "whole"
)

// Tunable defaults.
const (
	DefaultWholeExponent = 1.5
	DefaultTrimExponent  = 0.5
	DefaultTrimBatch     = 0.1
)

// KnowledgeConfig configures a KnowledgeCrammer. Zero fields take defaults.
type KnowledgeConfig struct {
	Ranker        knowledge.Ranker // default knowledge.OverviewRanker
	Scorer        score.Scorer     // default score.Uniform
	Formatter     Formatter        // default format.Envelope
	EagerTrimmer  trim.Trimmer     // default trim.Eager
	Trimmer       trim.Trimmer     // must shrink non-empty content; default trim.Terminating(trim.LastBlock)
	Strategy      Strategy
	WholeExponent float64
	TrimExponent  float64
	TrimBatch     float64 // fraction of remaining documents trimmed per round
	Logger        *zap.Logger
}

// KnowledgeCrammer fits a knowledge set into a budget.
type KnowledgeCrammer struct {
	cfg    KnowledgeConfig
	logger *zap.Logger
}

// NewKnowledgeCrammer fills in defaults for unset config fields.
func NewKnowledgeCrammer(cfg KnowledgeConfig) *KnowledgeCrammer {
	if cfg.Ranker == nil {
		cfg.Ranker = knowledge.OverviewRanker{}
	}
	if cfg.Scorer == nil {
		cfg.Scorer = score.Uniform
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.NewEnvelope()
	}
	if cfg.EagerTrimmer == nil {
		cfg.EagerTrimmer = trim.Eager
	}
	if cfg.Trimmer == nil {
		cfg.Trimmer = trim.Terminating(trim.LastBlock)
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyTrim
	}
	if cfg.WholeExponent <= 0 {
		cfg.WholeExponent = DefaultWholeExponent
	}
	if cfg.TrimExponent <= 0 {
		cfg.TrimExponent = DefaultTrimExponent
	}
	if cfg.TrimBatch <= 0 || cfg.TrimBatch > 1 {
		cfg.TrimBatch = DefaultTrimBatch
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeCrammer{cfg: cfg, logger: logger.Named("cram")}
}

// Cram renders k within budget. A zero Scores value means the configured
// scorer computes weights; explicit scores are rescored when the scorer is a
// score.Rescorer. Documents already present with identical content in prior
// are not sent again. The result is empty when budget <= 0 or nothing is
// left after filtering.
func (c *KnowledgeCrammer) Cram(k knowledge.Knowledge, budget int, scores knowledge.Scores, prior prompt.Context) (prompt.Context, error) {
	if budget <= 0 || k.IsEmpty() {
		return prompt.Context{}, nil
	}

	ranking := c.cfg.Ranker.Rank(k)
	k = k.Restrict(ranking.Index())

	s := c.score(k, scores)
	k = k.Restrict(s.NonZero())
	k = k.Transform(c.cfg.EagerTrimmer.Trim)
	k = k.Minus(prior.Knowledge())
	if k.IsEmpty() {
		return prompt.Context{}, nil
	}
	ranking = ranking.Restrict(k.Index())
	s = s.Restrict(k.Index())

	out := c.cfg.Formatter.Format(k, ranking)
	if out.Cost() <= budget {
		return out, nil
	}

	switch c.cfg.Strategy {
	case StrategyWhole:
		return c.evict(k, budget, s, ranking), nil
	case StrategyTrim:
		return c.trim(k, budget, s, ranking)
	default:
		return prompt.Context{}, fmt.Errorf("unknown cram strategy %q", c.cfg.Strategy)
	}
}

// score computes weights for k, or redistributes explicit ones. Paths that
// come in at zero (or are missing from explicit scores) stay at zero.
func (c *KnowledgeCrammer) score(k knowledge.Knowledge, scores knowledge.Scores) knowledge.Scores {
	if scores.IsEmpty() {
		return c.cfg.Scorer.Score(k).Restrict(k.Index())
	}
	incoming := scores.Restrict(k.Index())
	r, ok := c.cfg.Scorer.(score.Rescorer)
	if !ok {
		return incoming
	}
	return r.Rescore(k, incoming).Restrict(incoming.NonZero())
}

// density = score / cost^exp × (len / cost), where cost is the formatted
// cost of the document on its own.
func (c *KnowledgeCrammer) density(p, content string, weight, exp float64, ranking knowledge.Ranking) float64 {
	cost := c.cfg.Formatter.Format(knowledge.Of(p, content), ranking).Cost()
	if cost <= 0 {
		return math.Inf(1)
	}
	fc := float64(cost)
	return weight / math.Pow(fc, exp) * (float64(len(content)) / fc)
}

// byDensity orders paths by descending density, ties lexicographic.
func (c *KnowledgeCrammer) byDensity(k knowledge.Knowledge, s knowledge.Scores, exp float64, ranking knowledge.Ranking) []string {
	d := make(map[string]float64, k.Len())
	for p, content := range k.All() {
		d[p] = c.density(p, content, s.Get(p), exp, ranking)
	}
	paths := k.Paths()
	slices.SortStableFunc(paths, func(a, b string) int {
		if r := cmp.Compare(d[b], d[a]); r != 0 {
			return r
		}
		return cmp.Compare(a, b)
	})
	return paths
}

func (c *KnowledgeCrammer) evict(k knowledge.Knowledge, budget int, s knowledge.Scores, ranking knowledge.Ranking) prompt.Context {
	order := c.byDensity(k, s, c.cfg.WholeExponent, ranking)
	for i := len(order) - 1; i >= 0; i-- {
		k = k.Without(knowledge.IndexOf(order[i]))
		c.logger.Debug("evicted document", zap.String("path", order[i]), zap.Int("remaining", k.Len()))
		if k.IsEmpty() {
			return prompt.Context{}
		}
		out := c.cfg.Formatter.Format(k, ranking.Restrict(k.Index()))
		if out.Cost() <= budget {
			return out
		}
	}
	return prompt.Context{}
}

func (c *KnowledgeCrammer) trim(k knowledge.Knowledge, budget int, s knowledge.Scores, ranking knowledge.Ranking) (prompt.Context, error) {
	for round := 1; ; round++ {
		if k.IsEmpty() {
			return prompt.Context{}, nil
		}
		order := c.byDensity(k, s, c.cfg.TrimExponent, ranking)
		n := max(1, int(c.cfg.TrimBatch*float64(len(order))))
		worst := order[len(order)-n:]
		for _, p := range worst {
			content, _ := k.Get(p)
			next := c.cfg.Trimmer.Trim(p, content)
			if next != "" && len(next) >= len(content) {
				return prompt.Context{}, fmt.Errorf("trim %s: %w", p, ErrTrimStalled)
			}
			k = k.With(p, next)
		}
		out := c.cfg.Formatter.Format(k, ranking.Restrict(k.Index()))
		c.logger.Debug("trim round",
			zap.Int("round", round),
			zap.Int("trimmed", n),
			zap.Int("cost", out.Cost()),
			zap.Int("budget", budget),
		)
		if out.Cost() <= budget {
			return out, nil
		}
	}
}
