package score

import (
	"path"
	"strings"

	"github.com/rcliao/agent-context/internal/knowledge"
)

const (
	DefaultDamping    = 0.85
	DefaultIterations = 20
	minLinkName       = 3
)

// LinkRank propagates weight along mentions between documents, PageRank
// style, using the incoming weights as the teleport distribution. A document
// mentions another when its content contains the other's path or base name.
type LinkRank struct {
	Damping    float64
	Iterations int
}

func (r LinkRank) Score(k knowledge.Knowledge) knowledge.Scores {
	return r.Rescore(k, Uniform.Score(k))
}

// Rescore keeps the total weight and leaves zero-weight paths at zero.
func (r LinkRank) Rescore(k knowledge.Knowledge, s knowledge.Scores) knowledge.Scores {
	damping := r.Damping
	if damping <= 0 || damping >= 1 {
		damping = DefaultDamping
	}
	iterations := r.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	prior := s.Restrict(k.Index())
	total := prior.Total()
	if total <= 0 {
		return prior
	}
	personal := prior.Normalize().Map()
	paths := k.Paths()
	links := mentions(k, paths)

	rank := make(map[string]float64, len(paths))
	for _, p := range paths {
		rank[p] = personal[p]
	}
	for range iterations {
		next := make(map[string]float64, len(paths))
		for _, p := range paths {
			next[p] += (1 - damping) * personal[p]
		}
		for _, a := range paths {
			outs := links[a]
			if len(outs) == 0 {
				for _, p := range paths {
					next[p] += damping * rank[a] * personal[p]
				}
				continue
			}
			share := damping * rank[a] / float64(len(outs))
			for _, b := range outs {
				next[b] += share
			}
		}
		rank = next
	}

	out := make(map[string]float64, len(paths))
	for _, p := range paths {
		if prior.Get(p) == 0 {
			out[p] = 0
			continue
		}
		out[p] = rank[p]
	}
	return knowledge.ScoresOf(out).Normalize().Scale(total)
}

func mentions(k knowledge.Knowledge, paths []string) map[string][]string {
	links := make(map[string][]string, len(paths))
	for _, a := range paths {
		content, _ := k.Get(a)
		for _, b := range paths {
			if a == b {
				continue
			}
			base := path.Base(b)
			if strings.Contains(content, b) || (len(base) >= minLinkName && strings.Contains(content, base)) {
				links[a] = append(links[a], b)
			}
		}
	}
	return links
}
