// Package format renders knowledge, deletions and past exchanges into chat
// messages, and parses rendered documents back out of exchange text.
package format

import (
	"fmt"
	"path"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
)

// DefaultAffirmation is the assistant turn closing a block of documents.
const DefaultAffirmation = "I have read the documents above."

// Envelope renders every document as a path label followed by a fenced code
// block tagged with a guessed language.
type Envelope struct {
	Affirmation string
}

// NewEnvelope returns an Envelope with default settings.
func NewEnvelope() *Envelope {
	return &Envelope{Affirmation: DefaultAffirmation}
}

func (e *Envelope) affirmation() prompt.Chunk {
	text := e.Affirmation
	if text == "" {
		text = DefaultAffirmation
	}
	return prompt.PlainChunk(prompt.Chat{{Role: prompt.RoleAssistant, Content: text}})
}

// Format renders k in ranking order followed by an affirmation turn. Paths
// missing from the ranking are appended lexicographically.
func (e *Envelope) Format(k knowledge.Knowledge, ranking knowledge.Ranking) prompt.Context {
	if k.IsEmpty() {
		return prompt.Context{}
	}
	order := ranking.Restrict(k.Index()).Paths()
	ranked := knowledge.IndexOf(order...)
	for _, p := range k.Paths() {
		if !ranked.Contains(p) {
			order = append(order, p)
		}
	}
	chunks := make([]prompt.Chunk, 0, len(order)+1)
	for _, p := range order {
		content, _ := k.Get(p)
		chunks = append(chunks, e.Document(p, content))
	}
	chunks = append(chunks, e.affirmation())
	return prompt.ContextOf(chunks...)
}

// Document renders a single document chunk.
func (e *Envelope) Document(p, content string) prompt.Chunk {
	return prompt.DocumentChunk(p, content, prompt.Chat{{Role: prompt.RoleUser, Content: Render(p, content)}})
}

// Deletion renders a removal notice for p.
func (e *Envelope) Deletion(p string) prompt.Chunk {
	text := fmt.Sprintf("Document `%s` has been removed.", p)
	return prompt.DeletionChunk(p, prompt.Chat{{Role: prompt.RoleUser, Content: text}})
}

// Changes renders removals followed by updated documents, closed by an
// affirmation. Nothing to report yields an empty context.
func (e *Envelope) Changes(removed knowledge.Index, updated knowledge.Knowledge) prompt.Context {
	if removed.Len() == 0 && updated.IsEmpty() {
		return prompt.Context{}
	}
	var chunks []prompt.Chunk
	for _, p := range removed.Sorted() {
		chunks = append(chunks, e.Deletion(p))
	}
	for p, content := range updated.All() {
		chunks = append(chunks, e.Document(p, content))
	}
	chunks = append(chunks, e.affirmation())
	return prompt.ContextOf(chunks...)
}

// Example renders a past exchange, recording the documents it embeds.
func (e *Envelope) Example(id string, chat prompt.Chat) prompt.Chunk {
	var refs knowledge.Knowledge
	for _, m := range chat {
		refs = refs.Merge(References(m.Content))
	}
	ex := prompt.Example{ID: id, Chat: chat, Knowledge: refs}
	return prompt.ExampleChunk(ex, chat)
}

// Render produces the envelope text of one document. A newline is always
// appended to the content so References can recover it exactly.
func Render(p, content string) string {
	fence := strings.Repeat("`", max(3, longestBacktickRun(content)+1))
	var b strings.Builder
	b.Grow(len(p) + len(content) + 2*len(fence) + 24)
	b.WriteString("`")
	b.WriteString(p)
	b.WriteString("`:\n\n")
	b.WriteString(fence)
	b.WriteString(Language(p))
	b.WriteString("\n")
	b.WriteString(content)
	b.WriteString("\n")
	b.WriteString(fence)
	b.WriteString("\n")
	return b.String()
}

// Language guesses a fence info string from the file name.
func Language(p string) string {
	lexer := lexers.Match(path.Base(p))
	if lexer == nil {
		return ""
	}
	cfg := lexer.Config()
	if len(cfg.Aliases) > 0 {
		return cfg.Aliases[0]
	}
	return strings.ToLower(cfg.Name)
}

func longestBacktickRun(s string) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return longest
}
