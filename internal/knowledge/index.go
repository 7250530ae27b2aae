package knowledge

import (
	"maps"
	"slices"
)

// Index is an immutable set of paths.
type Index struct {
	set map[string]struct{}
}

// IndexOf builds an Index from paths. Duplicates collapse.
func IndexOf(paths ...string) Index {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return Index{set: set}
}

func (x Index) Len() int { return len(x.set) }

func (x Index) Contains(path string) bool {
	_, ok := x.set[path]
	return ok
}

// Sorted returns the paths in lexicographic order.
func (x Index) Sorted() []string {
	return slices.Sorted(maps.Keys(x.set))
}

func (x Index) Union(other Index) Index {
	out := maps.Clone(x.set)
	if out == nil {
		out = make(map[string]struct{}, len(other.set))
	}
	maps.Copy(out, other.set)
	return Index{set: out}
}

func (x Index) Intersect(other Index) Index {
	out := make(map[string]struct{})
	for p := range x.set {
		if other.Contains(p) {
			out[p] = struct{}{}
		}
	}
	return Index{set: out}
}

func (x Index) Difference(other Index) Index {
	out := make(map[string]struct{})
	for p := range x.set {
		if !other.Contains(p) {
			out[p] = struct{}{}
		}
	}
	return Index{set: out}
}

// Complement returns universe minus x. Path sets have no natural universe,
// so the caller supplies one; de Morgan's laws hold against a fixed universe.
func (x Index) Complement(universe Index) Index {
	return universe.Difference(x)
}

func (x Index) Equal(other Index) bool {
	if len(x.set) != len(other.set) {
		return false
	}
	for p := range x.set {
		if !other.Contains(p) {
			return false
		}
	}
	return true
}
