package delta

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/rcliao/agent-context/internal/knowledge"
)

// DefaultThreshold is the largest patch-to-content size ratio worth sending
// as a diff.
const DefaultThreshold = 0.8

func newDMP() *diffmatchpatch.DiffMatchPatch {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	return dmp
}

// Patch returns the line-mode patch text turning prior into next.
func Patch(prior, next string) string {
	dmp := newDMP()
	a, b, lines := dmp.DiffLinesToChars(prior, next)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	return dmp.PatchToText(dmp.PatchMake(prior, diffs))
}

// ApplyPatch applies patch text produced by Patch to prior.
func ApplyPatch(prior, patch string) (string, error) {
	dmp := newDMP()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", fmt.Errorf("parse patch: %v: %w", err, ErrPatchFailed)
	}
	out, applied := dmp.PatchApply(patches, prior)
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("hunk %d: %w", i+1, ErrPatchFailed)
		}
	}
	return out, nil
}

// DiffCompress replaces plain modifications by patches against the prior
// content when the patch is shorter than threshold times the new content.
// The prior content comes from a running snapshot seeded with before and
// folded like Full, so a modification whose prior state is uncertain is
// left as is.
func DiffCompress(before knowledge.Knowledge, d KnowledgeDelta, threshold float64) KnowledgeDelta {
	s := newSnapshot(before)
	out := make(KnowledgeDelta, 0, len(d))
	for _, r := range d {
		out = append(out, compress(s, r, threshold))
		_ = s.step(r, nil)
	}
	return out
}

func compress(s *snapshot, r DocumentDelta, threshold float64) DocumentDelta {
	if !r.Valid() || !r.Modified || r.Diff || r.MovedFrom != "" {
		return r
	}
	prior, ok := s.docs[r.Path]
	if !ok {
		return r
	}
	patch := Patch(prior, r.Content)
	if patch == "" || float64(len(patch)) >= threshold*float64(len(r.Content)) {
		return r
	}
	if next, err := ApplyPatch(prior, patch); err != nil || next != r.Content {
		return r
	}
	return DocumentDelta{Path: r.Path, Content: patch, Modified: true, Diff: true}
}

// Apply replays d on before, resolving diff records by patching. Unlike the
// views it refuses invalid records, moves from unknown sources and patches
// that do not apply.
func Apply(before knowledge.Knowledge, d KnowledgeDelta) (knowledge.Knowledge, error) {
	s := newSnapshot(before)
	for i, r := range d {
		if err := s.step(r, ApplyPatch); err != nil {
			return knowledge.Knowledge{}, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return knowledge.New(s.docs), nil
}
