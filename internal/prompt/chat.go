// Package prompt models the context sent to a language model: chat messages
// grouped into typed chunks, composed into immutable contexts.
package prompt

import "slices"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Cost of a message is the length of its content.
func (m Message) Cost() int { return len(m.Content) }

// Chat is an ordered message sequence.
type Chat []Message

// ChatOf pairs up a user prompt with an assistant response.
func ChatOf(prompt, response string) Chat {
	return Chat{{Role: RoleUser, Content: prompt}, {Role: RoleAssistant, Content: response}}
}

func (c Chat) Cost() int {
	cost := 0
	for _, m := range c {
		cost += m.Cost()
	}
	return cost
}

// Equal compares rendered content only.
func (c Chat) Equal(other Chat) bool {
	return slices.EqualFunc(c, other, func(a, b Message) bool {
		return a.Content == b.Content
	})
}

// Opening returns the content of the first message.
func (c Chat) Opening() string {
	if len(c) == 0 {
		return ""
	}
	return c[0].Content
}
