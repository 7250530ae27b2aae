package cram

import (
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
)

const (
	DefaultDepth          = 10
	DefaultFillTarget     = 0.8
	DefaultEditFillTarget = 0.5
)

// ExampleConfig configures history cramming. Zero fields take defaults.
type ExampleConfig struct {
	Depth      int     // skipped candidates tolerated before stopping
	FillTarget float64 // stop once this share of the budget is used
	Logger     *zap.Logger
}

// ExampleCrammer selects past exchanges from a relevance-ordered stream.
type ExampleCrammer struct {
	depth      int
	fillTarget float64
	logger     *zap.Logger
}

func NewExampleCrammer(cfg ExampleConfig) *ExampleCrammer {
	return newExampleCrammer(cfg, DefaultFillTarget)
}

func newExampleCrammer(cfg ExampleConfig, fill float64) *ExampleCrammer {
	if cfg.Depth <= 0 {
		cfg.Depth = DefaultDepth
	}
	if cfg.FillTarget <= 0 || cfg.FillTarget > 1 {
		cfg.FillTarget = fill
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExampleCrammer{depth: cfg.Depth, fillTarget: cfg.FillTarget, logger: logger.Named("cram")}
}

// Cram walks examples once, most relevant first, and returns the selected
// ones in chronological order.
func (c *ExampleCrammer) Cram(examples iter.Seq[prompt.Example], budget int) prompt.Context {
	picked := c.walk(examples, budget, func(ex prompt.Example) []prompt.Chunk {
		return []prompt.Chunk{prompt.ExampleChunk(ex, ex.Chat)}
	}, nil)
	return assemble(picked)
}

// walk runs the overscan selection. expand renders one candidate; the whole
// rendering is accepted or skipped as a unit. accepted, if set, is called for
// each selected example before the next candidate is expanded.
func (c *ExampleCrammer) walk(examples iter.Seq[prompt.Example], budget int, expand func(prompt.Example) []prompt.Chunk, accepted func(prompt.Example)) [][]prompt.Chunk {
	if budget <= 0 {
		return nil
	}
	var picked [][]prompt.Chunk
	openings := make(map[string]bool)
	remaining := budget
	skipped := 0
	floor := float64(budget) * (1 - c.fillTarget)

	for ex := range examples {
		opening := ex.Chat.Opening()
		if openings[opening] {
			continue
		}
		group := expand(ex)
		cost := 0
		for _, ch := range group {
			cost += ch.Cost()
		}
		if cost > remaining {
			skipped++
			if skipped > c.depth {
				c.logger.Debug("example scan depth reached", zap.Int("skipped", skipped))
				break
			}
			continue
		}
		openings[opening] = true
		picked = append(picked, group)
		remaining -= cost
		if accepted != nil {
			accepted(ex)
		}
		if float64(remaining) < floor {
			break
		}
	}
	return picked
}

// assemble reverses the most-relevant-first selection into chronological order.
func assemble(picked [][]prompt.Chunk) prompt.Context {
	var chunks []prompt.Chunk
	for _, group := range slices.Backward(picked) {
		chunks = append(chunks, group...)
	}
	return prompt.ContextOf(chunks...)
}

// EditFormatter renders the corrections appended after an example.
type EditFormatter interface {
	Deletion(path string) prompt.Chunk
	Document(path, content string) prompt.Chunk
}

// EditCrammer selects past exchanges and follows each with the deletions and
// updates needed to bring its embedded documents up to date.
type EditCrammer struct {
	examples  *ExampleCrammer
	formatter EditFormatter
}

// NewEditCrammer defaults the fill target to DefaultEditFillTarget and the
// formatter to format.Envelope.
func NewEditCrammer(cfg ExampleConfig, f EditFormatter) *EditCrammer {
	if f == nil {
		f = format.NewEnvelope()
	}
	return &EditCrammer{examples: newExampleCrammer(cfg, DefaultEditFillTarget), formatter: f}
}

// Cram returns the selected exchanges with their corrections, and every path
// referenced by a selected exchange.
func (c *EditCrammer) Cram(examples iter.Seq[prompt.Example], budget int, current knowledge.Knowledge) (prompt.Context, knowledge.Index) {
	surfaced := make(map[string]bool)
	var touched []string
	picked := c.examples.walk(examples, budget, func(ex prompt.Example) []prompt.Chunk {
		group := []prompt.Chunk{prompt.ExampleChunk(ex, ex.Chat)}
		for p, content := range ex.Knowledge.All() {
			if surfaced[p] {
				continue
			}
			now, ok := current.Get(p)
			switch {
			case !ok:
				group = append(group, c.formatter.Deletion(p))
			case now != content:
				group = append(group, c.formatter.Document(p, now))
			}
		}
		return group
	}, func(ex prompt.Example) {
		for _, p := range ex.Knowledge.Paths() {
			if !surfaced[p] {
				surfaced[p] = true
				touched = append(touched, p)
			}
		}
	})
	return assemble(picked), knowledge.IndexOf(touched...)
}
