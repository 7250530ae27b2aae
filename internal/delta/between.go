package delta

import (
	"github.com/zeebo/blake3"

	"github.com/rcliao/agent-context/internal/knowledge"
)

// Between computes the delta turning before into after, in lexicographic
// path order. hints maps a path only in after to a path only in before that
// it was renamed from; hints naming anything else are ignored.
func Between(before, after knowledge.Knowledge, hints map[string]string) KnowledgeDelta {
	sources := make(map[string]string)
	consumed := make(map[string]bool)
	for to, from := range hints {
		if after.Has(to) && !before.Has(to) && before.Has(from) && !after.Has(from) {
			sources[to] = from
			consumed[from] = true
		}
	}

	var d KnowledgeDelta
	for _, p := range before.Index().Union(after.Index()).Sorted() {
		old, inBefore := before.Get(p)
		cur, inAfter := after.Get(p)
		switch {
		case inAfter && !inBefore:
			from, ok := sources[p]
			if !ok {
				d = append(d, DocumentDelta{Path: p, Content: cur, New: true})
				break
			}
			if src, _ := before.Get(from); src == cur {
				d = append(d, DocumentDelta{Path: p, MovedFrom: from})
			} else {
				d = append(d, DocumentDelta{Path: p, Content: cur, Modified: true, MovedFrom: from})
			}
		case inBefore && !inAfter:
			if !consumed[p] {
				d = append(d, DocumentDelta{Path: p, Removed: true})
			}
		case old != cur:
			d = append(d, DocumentDelta{Path: p, Content: cur, Modified: true})
		}
	}
	return d
}

// DetectMoves pairs paths only in after with paths only in before that hold
// identical content. Both sides are matched in lexicographic order and every
// source is used at most once, so the result is deterministic.
func DetectMoves(before, after knowledge.Knowledge) map[string]string {
	added := after.Index().Difference(before.Index())
	gone := before.Index().Difference(after.Index())
	if added.Len() == 0 || gone.Len() == 0 {
		return nil
	}

	candidates := make(map[[32]byte][]string)
	for _, p := range gone.Sorted() {
		content, _ := before.Get(p)
		sum := blake3.Sum256([]byte(content))
		candidates[sum] = append(candidates[sum], p)
	}

	hints := make(map[string]string)
	for _, p := range added.Sorted() {
		content, _ := after.Get(p)
		sum := blake3.Sum256([]byte(content))
		if from := candidates[sum]; len(from) > 0 {
			hints[p] = from[0]
			candidates[sum] = from[1:]
		}
	}
	return hints
}
