// Package model defines the persisted data types.
package model

import "time"

// Exchange is one archived prompt/response pair of a session. A soft-deleted
// exchange is no longer a valid example.
type Exchange struct {
	ID        string     `json:"id"`
	Session   string     `json:"session"`
	Prompt    string     `json:"prompt"`
	Response  string     `json:"response"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Deleted reports whether the exchange was soft-deleted.
func (e Exchange) Deleted() bool { return e.DeletedAt != nil }
