// Package knowledge defines the immutable document set a context is assembled
// from, together with the path algebra (indexes, rankings, scores) used to
// select from it.
package knowledge

import (
	"iter"
	"maps"
	"slices"
)

// Knowledge is an immutable mapping from path to document content.
// Documents with empty content never appear in it.
type Knowledge struct {
	docs map[string]string
}

// New copies docs into a Knowledge value, dropping empty documents.
func New(docs map[string]string) Knowledge {
	out := make(map[string]string, len(docs))
	for path, content := range docs {
		if content != "" {
			out[path] = content
		}
	}
	return Knowledge{docs: out}
}

// Of builds Knowledge from alternating path/content pairs. Handy in tests.
func Of(pairs ...string) Knowledge {
	docs := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		docs[pairs[i]] = pairs[i+1]
	}
	return New(docs)
}

func (k Knowledge) Len() int { return len(k.docs) }

func (k Knowledge) IsEmpty() bool { return len(k.docs) == 0 }

// Get returns the content stored at path.
func (k Knowledge) Get(path string) (string, bool) {
	content, ok := k.docs[path]
	return content, ok
}

func (k Knowledge) Has(path string) bool {
	_, ok := k.docs[path]
	return ok
}

// Cost is the total length of all document contents.
func (k Knowledge) Cost() int {
	cost := 0
	for _, content := range k.docs {
		cost += len(content)
	}
	return cost
}

// Index returns the set of paths.
func (k Knowledge) Index() Index {
	return IndexOf(slices.Collect(maps.Keys(k.docs))...)
}

// Paths returns the paths in lexicographic order.
func (k Knowledge) Paths() []string {
	return slices.Sorted(maps.Keys(k.docs))
}

// Map returns a copy of the underlying documents.
func (k Knowledge) Map() map[string]string {
	return maps.Clone(k.docs)
}

// Restrict keeps only documents whose path is in idx.
func (k Knowledge) Restrict(idx Index) Knowledge {
	out := make(map[string]string)
	for path, content := range k.docs {
		if idx.Contains(path) {
			out[path] = content
		}
	}
	return Knowledge{docs: out}
}

// Without drops documents whose path is in idx.
func (k Knowledge) Without(idx Index) Knowledge {
	out := make(map[string]string)
	for path, content := range k.docs {
		if !idx.Contains(path) {
			out[path] = content
		}
	}
	return Knowledge{docs: out}
}

// Merge overlays other on top of k.
func (k Knowledge) Merge(other Knowledge) Knowledge {
	out := maps.Clone(k.docs)
	if out == nil {
		out = make(map[string]string, len(other.docs))
	}
	maps.Copy(out, other.docs)
	return Knowledge{docs: out}
}

// With returns k with a single document set. Empty content removes the path.
func (k Knowledge) With(path, content string) Knowledge {
	out := maps.Clone(k.docs)
	if out == nil {
		out = make(map[string]string, 1)
	}
	if content == "" {
		delete(out, path)
	} else {
		out[path] = content
	}
	return Knowledge{docs: out}
}

// Transform applies fn to every document. Documents mapped to empty
// content are dropped.
func (k Knowledge) Transform(fn func(path, content string) string) Knowledge {
	out := make(map[string]string, len(k.docs))
	for path, content := range k.docs {
		if next := fn(path, content); next != "" {
			out[path] = next
		}
	}
	return Knowledge{docs: out}
}

// Unchanged returns the paths whose content is byte-identical in other.
func (k Knowledge) Unchanged(other Knowledge) Index {
	var same []string
	for path, content := range k.docs {
		if prev, ok := other.docs[path]; ok && prev == content {
			same = append(same, path)
		}
	}
	return IndexOf(same...)
}

// Minus drops documents that other already holds with identical content.
func (k Knowledge) Minus(other Knowledge) Knowledge {
	return k.Without(k.Unchanged(other))
}

// Equal reports whether both hold the same documents.
func (k Knowledge) Equal(other Knowledge) bool {
	return maps.Equal(k.docs, other.docs)
}

// All iterates documents in lexicographic path order.
func (k Knowledge) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, path := range k.Paths() {
			if !yield(path, k.docs[path]) {
				return
			}
		}
	}
}
