// Package trim shrinks document content so more documents fit a budget.
//
// A Trimmer maps (path, content) to content that is shorter or unchanged.
// Chained trimmers must keep that property, which lets Fully apply a trimmer
// until it reaches a fixpoint.
package trim

import "errors"

// ErrNotShrinking reports a trimmer that changed content without making it shorter.
var ErrNotShrinking = errors.New("trimmer changed content without shrinking it")

// Trimmer shrinks a document or returns it unchanged.
type Trimmer interface {
	Trim(path, content string) string
}

// Func adapts a function to Trimmer.
type Func func(path, content string) string

func (f Func) Trim(path, content string) string { return f(path, content) }

// None leaves content as is.
var None Trimmer = Func(func(_, content string) string { return content })

// Chain applies trimmers in order.
func Chain(trimmers ...Trimmer) Trimmer {
	return Func(func(path, content string) string {
		for _, t := range trimmers {
			content = t.Trim(path, content)
		}
		return content
	})
}

// Fully applies t until content stops changing.
func Fully(t Trimmer, path, content string) (string, error) {
	for {
		next := t.Trim(path, content)
		if next == content {
			return content, nil
		}
		if len(next) >= len(content) {
			return content, ErrNotShrinking
		}
		content = next
	}
}

// Terminating wraps t so every application to non-empty content shrinks it.
// When t makes no progress, Tail cuts the end of the document instead;
// repeated application therefore always reaches empty content.
func Terminating(t Trimmer) Trimmer {
	return Func(func(path, content string) string {
		if content == "" {
			return content
		}
		if next := t.Trim(path, content); len(next) < len(content) {
			return next
		}
		return Tail(path, content)
	})
}
