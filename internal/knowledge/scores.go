package knowledge

import (
	"cmp"
	"maps"
	"slices"
)

// Scores is an immutable weight per path.
type Scores struct {
	w map[string]float64
}

// ScoresOf copies weights into a Scores value.
func ScoresOf(weights map[string]float64) Scores {
	return Scores{w: maps.Clone(weights)}
}

// Constant assigns the same weight to every path in idx.
func Constant(idx Index, weight float64) Scores {
	w := make(map[string]float64, idx.Len())
	for p := range idx.set {
		w[p] = weight
	}
	return Scores{w: w}
}

func (s Scores) Len() int { return len(s.w) }

func (s Scores) IsEmpty() bool { return len(s.w) == 0 }

// Get returns the weight of path, zero when absent.
func (s Scores) Get(path string) float64 { return s.w[path] }

func (s Scores) Has(path string) bool {
	_, ok := s.w[path]
	return ok
}

func (s Scores) Index() Index {
	return IndexOf(slices.Collect(maps.Keys(s.w))...)
}

// NonZero returns the paths with a non-zero weight.
func (s Scores) NonZero() Index {
	var paths []string
	for p, v := range s.w {
		if v != 0 {
			paths = append(paths, p)
		}
	}
	return IndexOf(paths...)
}

func (s Scores) Restrict(idx Index) Scores {
	out := make(map[string]float64)
	for p, v := range s.w {
		if idx.Contains(p) {
			out[p] = v
		}
	}
	return Scores{w: out}
}

// Difference drops the paths in idx.
func (s Scores) Difference(idx Index) Scores {
	out := make(map[string]float64)
	for p, v := range s.w {
		if !idx.Contains(p) {
			out[p] = v
		}
	}
	return Scores{w: out}
}

// Add sums weights path by path; missing weights count as zero.
func (s Scores) Add(other Scores) Scores {
	out := maps.Clone(s.w)
	if out == nil {
		out = make(map[string]float64, len(other.w))
	}
	for p, v := range other.w {
		out[p] += v
	}
	return Scores{w: out}
}

func (s Scores) Scale(f float64) Scores {
	out := make(map[string]float64, len(s.w))
	for p, v := range s.w {
		out[p] = v * f
	}
	return Scores{w: out}
}

// Union keeps every path, taking the larger weight where both define one.
func (s Scores) Union(other Scores) Scores {
	out := maps.Clone(s.w)
	if out == nil {
		out = make(map[string]float64, len(other.w))
	}
	for p, v := range other.w {
		if cur, ok := out[p]; !ok || v > cur {
			out[p] = v
		}
	}
	return Scores{w: out}
}

// Intersect keeps shared paths with the smaller weight.
func (s Scores) Intersect(other Scores) Scores {
	out := make(map[string]float64)
	for p, v := range s.w {
		if o, ok := other.w[p]; ok {
			out[p] = min(v, o)
		}
	}
	return Scores{w: out}
}

func (s Scores) Total() float64 {
	total := 0.0
	for _, v := range s.w {
		total += v
	}
	return total
}

// Normalize scales weights so they sum to one. All-zero scores are returned as is.
func (s Scores) Normalize() Scores {
	total := s.Total()
	if total == 0 {
		return s
	}
	return s.Scale(1 / total)
}

// Ranking orders paths by descending weight, ties broken lexicographically.
func (s Scores) Ranking() Ranking {
	paths := slices.Collect(maps.Keys(s.w))
	slices.SortFunc(paths, func(a, b string) int {
		if c := cmp.Compare(s.w[b], s.w[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return Ranking{paths: paths}
}

// Map returns a copy of the weights.
func (s Scores) Map() map[string]float64 { return maps.Clone(s.w) }
