package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/rcliao/agent-context/internal/knowledge"
)

type wireChunk struct {
	Kind      string            `json:"kind"`
	Path      string            `json:"path,omitempty"`
	Content   string            `json:"content,omitempty"`
	ExampleID string            `json:"example_id,omitempty"`
	Example   Chat              `json:"example,omitempty"`
	Embedded  map[string]string `json:"embedded,omitempty"`
	Chat      Chat              `json:"chat"`
}

// MarshalJSON encodes the chunk sequence so a sent context can be archived.
func (c Context) MarshalJSON() ([]byte, error) {
	out := make([]wireChunk, 0, len(c.chunks))
	for _, ch := range c.chunks {
		w := wireChunk{Kind: ch.kind.String(), Chat: ch.chat}
		switch ch.kind {
		case KindDocument:
			w.Path, w.Content = ch.path, ch.content
		case KindDeletion:
			w.Path = ch.path
		case KindExample:
			w.ExampleID = ch.example.ID
			w.Example = ch.example.Chat
			w.Embedded = ch.example.Knowledge.Map()
		case KindPlain:
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var in []wireChunk
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	chunks := make([]Chunk, 0, len(in))
	for _, w := range in {
		switch w.Kind {
		case "document":
			chunks = append(chunks, DocumentChunk(w.Path, w.Content, w.Chat))
		case "deletion":
			chunks = append(chunks, DeletionChunk(w.Path, w.Chat))
		case "example":
			ex := Example{ID: w.ExampleID, Chat: w.Example, Knowledge: knowledge.New(w.Embedded)}
			chunks = append(chunks, ExampleChunk(ex, w.Chat))
		case "plain":
			chunks = append(chunks, PlainChunk(w.Chat))
		default:
			return fmt.Errorf("unknown chunk kind %q", w.Kind)
		}
	}
	c.chunks = chunks
	return nil
}
