package prompt

import (
	"slices"

	"github.com/rcliao/agent-context/internal/knowledge"
)

// ChunkKind tags the payload a Chunk carries.
type ChunkKind int

const (
	KindPlain ChunkKind = iota
	KindDocument
	KindDeletion
	KindExample
)

func (k ChunkKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindDeletion:
		return "deletion"
	case KindExample:
		return "example"
	default:
		return "plain"
	}
}

// Example is a past exchange together with the documents its rendered
// content embeds.
type Example struct {
	ID        string
	Chat      Chat
	Knowledge knowledge.Knowledge
}

// Chunk is the atomic unit of a Context: exactly one payload of the kind
// given by Kind, plus the chat it renders to.
type Chunk struct {
	kind    ChunkKind
	path    string // document and deletion
	content string // document
	example Example
	chat    Chat
}

// DocumentChunk renders one document.
func DocumentChunk(path, content string, chat Chat) Chunk {
	return Chunk{kind: KindDocument, path: path, content: content, chat: slices.Clone(chat)}
}

// DeletionChunk marks path as no longer existing.
func DeletionChunk(path string, chat Chat) Chunk {
	return Chunk{kind: KindDeletion, path: path, chat: slices.Clone(chat)}
}

// ExampleChunk renders a past exchange.
func ExampleChunk(example Example, chat Chat) Chunk {
	return Chunk{kind: KindExample, example: example, chat: slices.Clone(chat)}
}

// PlainChunk carries chat with no structured payload.
func PlainChunk(chat Chat) Chunk {
	return Chunk{kind: KindPlain, chat: slices.Clone(chat)}
}

func (c Chunk) Kind() ChunkKind { return c.kind }

// Path is the document or deletion path; empty for other kinds.
func (c Chunk) Path() string { return c.path }

// Content is the document content; empty for other kinds.
func (c Chunk) Content() string { return c.content }

// Example is the exchange of an example chunk.
func (c Chunk) Example() (Example, bool) {
	return c.example, c.kind == KindExample
}

// Chat returns a copy of the rendered messages.
func (c Chunk) Chat() Chat { return slices.Clone(c.chat) }

func (c Chunk) Cost() int { return c.chat.Cost() }

// Equal compares rendered content only.
func (c Chunk) Equal(other Chunk) bool { return c.chat.Equal(other.chat) }

// rendered is a stable key for membership checks on rendered content.
func (c Chunk) rendered() string {
	n := 0
	for _, m := range c.chat {
		n += len(m.Content) + 1
	}
	buf := make([]byte, 0, n)
	for _, m := range c.chat {
		buf = append(buf, m.Content...)
		buf = append(buf, 0)
	}
	return string(buf)
}
