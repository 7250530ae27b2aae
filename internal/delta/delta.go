// Package delta describes how one knowledge snapshot turns into another.
//
// A KnowledgeDelta is an ordered list of per-path records; views fold the
// records in order with later records overriding earlier ones. Records whose
// flags do not form a legal combination are never rejected by the views,
// they only make the views conservative about the paths they touch.
package delta

import (
	"fmt"

	"github.com/rcliao/agent-context/internal/knowledge"
)

// DocumentDelta records what happened to one path. Content is the new
// document, or the patch text when Diff is set; empty means no payload.
// A non-empty MovedFrom names the path the document was renamed from.
type DocumentDelta struct {
	Path      string `json:"path"`
	Content   string `json:"content,omitempty"`
	New       bool   `json:"new,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	Removed   bool   `json:"removed,omitempty"`
	Diff      bool   `json:"diff,omitempty"`
	MovedFrom string `json:"moved_from,omitempty"`
}

type flags uint8

const (
	flagNew flags = 1 << iota
	flagModified
	flagRemoved
	flagDiff
	flagMoved
)

// legal maps every allowed flag combination to whether it carries content.
var legal = map[flags]bool{
	0:                                   true,
	flagNew:                             true,
	flagModified:                        true,
	flagRemoved:                         false,
	flagMoved:                           false,
	flagModified | flagMoved:            true,
	flagModified | flagDiff:             true,
	flagModified | flagDiff | flagMoved: true,
}

func (d DocumentDelta) flags() flags {
	var f flags
	if d.New {
		f |= flagNew
	}
	if d.Modified {
		f |= flagModified
	}
	if d.Removed {
		f |= flagRemoved
	}
	if d.Diff {
		f |= flagDiff
	}
	if d.MovedFrom != "" {
		f |= flagMoved
	}
	return f
}

// Valid reports whether the flags form a legal combination with the
// matching presence of content.
func (d DocumentDelta) Valid() bool {
	if d.Path == "" {
		return false
	}
	wantContent, ok := legal[d.flags()]
	return ok && wantContent == (d.Content != "")
}

func (d DocumentDelta) String() string {
	switch {
	case !d.Valid():
		return "invalid " + d.Path
	case d.Removed:
		return "removed " + d.Path
	case d.MovedFrom != "" && d.Diff:
		return fmt.Sprintf("moved %s -> %s (diff)", d.MovedFrom, d.Path)
	case d.MovedFrom != "" && d.Modified:
		return fmt.Sprintf("moved %s -> %s (modified)", d.MovedFrom, d.Path)
	case d.MovedFrom != "":
		return fmt.Sprintf("moved %s -> %s", d.MovedFrom, d.Path)
	case d.Diff:
		return "patched " + d.Path
	case d.New:
		return "new " + d.Path
	case d.Modified:
		return "modified " + d.Path
	default:
		return "set " + d.Path
	}
}

// KnowledgeDelta is an ordered sequence of document deltas.
type KnowledgeDelta []DocumentDelta

// Touched is every path a record names, including move sources.
func (d KnowledgeDelta) Touched() knowledge.Index {
	var paths []string
	for _, r := range d {
		paths = append(paths, r.Path)
		if r.MovedFrom != "" {
			paths = append(paths, r.MovedFrom)
		}
	}
	return knowledge.IndexOf(paths...)
}

// Present is the set of touched paths that exist afterwards. A path whose
// last record is invalid is assumed gone.
func (d KnowledgeDelta) Present() knowledge.Index {
	present := make(map[string]bool)
	for _, r := range d {
		if !r.Valid() {
			present[r.Path] = false
			continue
		}
		if r.MovedFrom != "" && r.MovedFrom != r.Path {
			present[r.MovedFrom] = false
		}
		present[r.Path] = !r.Removed
	}
	return indexWhere(present)
}

// Removed is the set of touched paths known not to exist afterwards. A path
// whose last record is invalid might still exist and is left out.
func (d KnowledgeDelta) Removed() knowledge.Index {
	removed := make(map[string]bool)
	for _, r := range d {
		if !r.Valid() {
			removed[r.Path] = false
			continue
		}
		if r.MovedFrom != "" && r.MovedFrom != r.Path {
			removed[r.MovedFrom] = true
		}
		removed[r.Path] = r.Removed
	}
	return indexWhere(removed)
}

// Moves maps each path that currently stands as a move target to its source.
func (d KnowledgeDelta) Moves() map[string]string {
	moves := make(map[string]string)
	for _, r := range d {
		delete(moves, r.Path)
		if r.Valid() && r.MovedFrom != "" {
			moves[r.Path] = r.MovedFrom
		}
	}
	return moves
}

// Full is base with d applied, keeping only content that is known for
// certain: paths whose last record is a diff, and every path an invalid
// record touches (its move source included), are dropped, and a
// pure move carries its source content only when base or an earlier record
// holds it.
func (d KnowledgeDelta) Full(base knowledge.Knowledge) knowledge.Knowledge {
	s := newSnapshot(base)
	for _, r := range d {
		_ = s.step(r, nil)
	}
	return knowledge.New(s.docs)
}

func indexWhere(m map[string]bool) knowledge.Index {
	var paths []string
	for p, ok := range m {
		if ok {
			paths = append(paths, p)
		}
	}
	return knowledge.IndexOf(paths...)
}

// snapshot is the running fold shared by Full, DiffCompress and Apply.
type snapshot struct {
	docs    map[string]string
	vacated map[string]string // content of renamed-away sources
}

func newSnapshot(base knowledge.Knowledge) *snapshot {
	return &snapshot{docs: base.Map(), vacated: make(map[string]string)}
}

func (s *snapshot) source(p string) (string, bool) {
	if content, ok := s.docs[p]; ok {
		return content, true
	}
	content, ok := s.vacated[p]
	return content, ok
}

// patcher resolves a diff record against the prior content. A nil patcher
// treats diff content as unknown.
type patcher func(prior, patch string) (string, error)

// step folds one record into the snapshot. Without a patcher, problems make
// the path unknown and step returns nil; with one, they are errors.
func (s *snapshot) step(r DocumentDelta, patch patcher) error {
	strict := patch != nil
	if !r.Valid() {
		if strict {
			return fmt.Errorf("%s: %w", r, ErrInvalidRecord)
		}
		delete(s.docs, r.Path)
		if r.MovedFrom != "" {
			delete(s.docs, r.MovedFrom)
			delete(s.vacated, r.MovedFrom)
		}
		return nil
	}

	var moved string
	var movedOK bool
	if r.MovedFrom != "" {
		moved, movedOK = s.source(r.MovedFrom)
		if content, ok := s.docs[r.MovedFrom]; ok {
			s.vacated[r.MovedFrom] = content
			delete(s.docs, r.MovedFrom)
		}
	}

	switch {
	case r.Removed:
		delete(s.docs, r.Path)
	case r.Diff:
		prior, ok := s.docs[r.Path]
		if r.MovedFrom != "" {
			prior, ok = moved, movedOK
		}
		if !strict {
			delete(s.docs, r.Path)
			return nil
		}
		if !ok {
			return fmt.Errorf("%s: no prior content: %w", r, ErrPatchFailed)
		}
		next, err := patch(prior, r.Content)
		if err != nil {
			return fmt.Errorf("%s: %w", r, err)
		}
		s.set(r.Path, next)
	case r.Content != "":
		s.docs[r.Path] = r.Content
	default: // pure move
		if !movedOK {
			if strict {
				return fmt.Errorf("%s: unknown source: %w", r, ErrInvalidRecord)
			}
			delete(s.docs, r.Path)
			return nil
		}
		s.docs[r.Path] = moved
	}
	return nil
}

func (s *snapshot) set(p, content string) {
	if content == "" {
		delete(s.docs, p)
		return
	}
	s.docs[p] = content
}
