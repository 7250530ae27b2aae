package prompt

import (
	"slices"

	"github.com/rcliao/agent-context/internal/knowledge"
)

// Context is an immutable, ordered sequence of chunks.
type Context struct {
	chunks []Chunk
}

// ContextOf builds a Context from chunks.
func ContextOf(chunks ...Chunk) Context {
	return Context{chunks: slices.Clone(chunks)}
}

// Compose concatenates contexts. Chunks are never merged.
func Compose(parts ...Context) Context {
	n := 0
	for _, p := range parts {
		n += len(p.chunks)
	}
	out := make([]Chunk, 0, n)
	for _, p := range parts {
		out = append(out, p.chunks...)
	}
	return Context{chunks: out}
}

// Append returns c followed by chunks.
func (c Context) Append(chunks ...Chunk) Context {
	return Compose(c, Context{chunks: chunks})
}

func (c Context) Len() int { return len(c.chunks) }

func (c Context) IsEmpty() bool { return len(c.chunks) == 0 }

// Chunks returns a copy of the chunk sequence.
func (c Context) Chunks() []Chunk { return slices.Clone(c.chunks) }

// Chunk returns the i-th chunk.
func (c Context) Chunk(i int) Chunk { return c.chunks[i] }

// Slice returns chunks [i, j).
func (c Context) Slice(i, j int) Context {
	return Context{chunks: slices.Clone(c.chunks[i:j])}
}

// Chat flattens the rendered messages of every chunk.
func (c Context) Chat() Chat {
	var out Chat
	for _, ch := range c.chunks {
		out = append(out, ch.chat...)
	}
	return out
}

func (c Context) Cost() int {
	cost := 0
	for _, ch := range c.chunks {
		cost += ch.Cost()
	}
	return cost
}

// Equal compares rendered content only, ignoring chunk boundaries and metadata.
func (c Context) Equal(other Context) bool {
	return c.Chat().Equal(other.Chat())
}

// EqualChat compares the rendered content against a chat.
func (c Context) EqualChat(chat Chat) bool {
	return c.Chat().Equal(chat)
}

// Contains returns a membership test over the rendered content of c's chunks.
func (c Context) Contains() func(Chunk) bool {
	set := make(map[string]struct{}, len(c.chunks))
	for _, ch := range c.chunks {
		set[ch.rendered()] = struct{}{}
	}
	return func(ch Chunk) bool {
		_, ok := set[ch.rendered()]
		return ok
	}
}

// aggregate is the left fold of a context's chunks.
type aggregate struct {
	docs      map[string]string
	asserted  map[string]bool // set by a real document chunk
	deletions map[string]bool
	examples  []Example
}

func (c Context) fold() aggregate {
	agg := aggregate{
		docs:      make(map[string]string),
		asserted:  make(map[string]bool),
		deletions: make(map[string]bool),
	}
	for _, ch := range c.chunks {
		switch ch.kind {
		case KindDocument:
			agg.docs[ch.path] = ch.content
			agg.asserted[ch.path] = true
			delete(agg.deletions, ch.path)
		case KindDeletion:
			delete(agg.docs, ch.path)
			delete(agg.asserted, ch.path)
			agg.deletions[ch.path] = true
		case KindExample:
			for path, content := range ch.example.Knowledge.All() {
				if agg.asserted[path] {
					continue
				}
				agg.docs[path] = content
				delete(agg.deletions, path)
			}
			agg.examples = append(agg.examples, ch.example)
		case KindPlain:
		}
	}
	return agg
}

// Knowledge is the net document set after folding all chunks.
func (c Context) Knowledge() knowledge.Knowledge {
	return knowledge.New(c.fold().docs)
}

func (c Context) KnowledgeCost() int {
	return c.Knowledge().Cost()
}

// Deletions are paths whose last mention is a deletion.
func (c Context) Deletions() knowledge.Index {
	agg := c.fold()
	paths := make([]string, 0, len(agg.deletions))
	for p := range agg.deletions {
		paths = append(paths, p)
	}
	return knowledge.IndexOf(paths...)
}

// Examples collects the examples in order of appearance.
func (c Context) Examples() []Example {
	return c.fold().examples
}
