package knowledge

import "slices"

// Ranking is an immutable total order over a set of paths.
type Ranking struct {
	paths []string
}

// RankingOf builds a Ranking, keeping the first occurrence of duplicates.
func RankingOf(paths ...string) Ranking {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return Ranking{paths: out}
}

func (r Ranking) Len() int { return len(r.paths) }

// Paths returns a copy of the ordered paths.
func (r Ranking) Paths() []string { return slices.Clone(r.paths) }

func (r Ranking) Index() Index { return IndexOf(r.paths...) }

// Position returns the zero-based rank of path, or -1.
func (r Ranking) Position(path string) int {
	return slices.Index(r.paths, path)
}

// Restrict keeps paths in idx, preserving order.
func (r Ranking) Restrict(idx Index) Ranking {
	out := make([]string, 0, len(r.paths))
	for _, p := range r.paths {
		if idx.Contains(p) {
			out = append(out, p)
		}
	}
	return Ranking{paths: out}
}

func (r Ranking) Reverse() Ranking {
	out := slices.Clone(r.paths)
	slices.Reverse(out)
	return Ranking{paths: out}
}

// Head returns the first n paths.
func (r Ranking) Head(n int) Ranking {
	n = max(0, min(n, len(r.paths)))
	return Ranking{paths: slices.Clone(r.paths[:n])}
}
