// Package score assigns relevance weights to knowledge documents.
//
// A zero weight is the sanctioned way to exclude a document: crammers drop
// zero-weight paths, and rescorers never move weight onto a path whose
// incoming weight is zero.
package score

import (
	"path"
	"regexp"
	"strings"

	"github.com/rcliao/agent-context/internal/knowledge"
)

// Scorer computes weights from scratch.
type Scorer interface {
	Score(k knowledge.Knowledge) knowledge.Scores
}

// Rescorer redistributes an existing weight map.
type Rescorer interface {
	Rescore(k knowledge.Knowledge, s knowledge.Scores) knowledge.Scores
}

// Func adapts a function to Scorer.
type Func func(k knowledge.Knowledge) knowledge.Scores

func (f Func) Score(k knowledge.Knowledge) knowledge.Scores { return f(k) }

// Uniform gives every document weight one.
var Uniform Scorer = Func(func(k knowledge.Knowledge) knowledge.Scores {
	return knowledge.Constant(k.Index(), 1)
})

// Exclude zeroes documents whose path or base name matches one of the glob patterns.
type Exclude struct {
	Inner    Scorer
	Patterns []string
}

func (e Exclude) Score(k knowledge.Knowledge) knowledge.Scores {
	inner := e.Inner
	if inner == nil {
		inner = Uniform
	}
	return e.mask(inner.Score(k))
}

func (e Exclude) Rescore(k knowledge.Knowledge, s knowledge.Scores) knowledge.Scores {
	if r, ok := e.Inner.(Rescorer); ok {
		s = r.Rescore(k, s)
	}
	return e.mask(s)
}

func (e Exclude) mask(s knowledge.Scores) knowledge.Scores {
	w := s.Map()
	for p := range w {
		if e.matches(p) {
			w[p] = 0
		}
	}
	return knowledge.ScoresOf(w)
}

func (e Exclude) matches(p string) bool {
	for _, pattern := range e.Patterns {
		if ok, _ := path.Match(pattern, p); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(p)); ok {
			return true
		}
	}
	return false
}

var wordRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Keyword weighs documents by occurrences of query terms in path and content.
// Documents without any hit keep Floor so they stay eligible.
type Keyword struct {
	Query string
	Floor float64
}

// DefaultKeywordFloor is the weight of a document no query term hits.
const DefaultKeywordFloor = 0.1

func (q Keyword) Score(k knowledge.Knowledge) knowledge.Scores {
	floor := q.Floor
	if floor <= 0 {
		floor = DefaultKeywordFloor
	}
	terms := wordRegex.FindAllString(strings.ToLower(q.Query), -1)
	w := make(map[string]float64, k.Len())
	for p, content := range k.All() {
		hay := strings.ToLower(p + "\n" + content)
		hits := 0
		for _, t := range terms {
			hits += strings.Count(hay, t)
			if strings.Contains(strings.ToLower(p), t) {
				hits += 3
			}
		}
		w[p] = floor + float64(hits)
	}
	return knowledge.ScoresOf(w)
}
