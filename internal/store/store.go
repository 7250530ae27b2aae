// Package store archives exchanges, sent contexts and knowledge snapshots in SQLite.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/prompt"
)

var ErrNotFound = errors.New("not found")

// PutParams holds parameters for archiving an exchange.
type PutParams struct {
	Session  string
	Prompt   string
	Response string
}

// ListParams holds parameters for listing exchanges.
type ListParams struct {
	Session        string
	Limit          int
	IncludeDeleted bool
}

// RmParams holds parameters for deleting an exchange.
type RmParams struct {
	ID   string
	Hard bool
}

// HistoryParams selects the exchanges streamed as examples.
type HistoryParams struct {
	Session  string // empty means every session
	Query    string // full-text relevance; empty orders by recency
	PageSize int
}

// Store defines the archive interface.
type Store interface {
	// Put archives an exchange.
	Put(ctx context.Context, p PutParams) (*model.Exchange, error)

	// Get returns an exchange by ID, deleted or not.
	Get(ctx context.Context, id string) (*model.Exchange, error)

	// List lists exchanges, newest first.
	List(ctx context.Context, p ListParams) ([]model.Exchange, error)

	// Rm soft-deletes (or hard-deletes) an exchange.
	Rm(ctx context.Context, p RmParams) error

	// History streams live exchanges as examples, most relevant first.
	History(ctx context.Context, p HistoryParams) *History

	// RecordSent stores the context last sent for a session.
	RecordSent(ctx context.Context, session string, sent prompt.Context) error

	// Sent returns the context last sent for a session.
	Sent(ctx context.Context, session string) (prompt.Context, error)

	// SaveSnapshot replaces the knowledge snapshot of a session.
	SaveSnapshot(ctx context.Context, session string, k knowledge.Knowledge) error

	// Snapshot returns the knowledge snapshot of a session.
	Snapshot(ctx context.Context, session string) (knowledge.Knowledge, error)

	// Close closes the store.
	Close() error
}
