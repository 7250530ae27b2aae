package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
)

func (s *SQLiteStore) RecordSent(ctx context.Context, session string, sent prompt.Context) error {
	b, err := json.Marshal(sent)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}
	now := time.Now().UTC().Format(timeFormat)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sent_contexts (session, context, cost, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session) DO UPDATE SET context = excluded.context, cost = excluded.cost, updated_at = excluded.updated_at`,
		session, string(b), sent.Cost(), now)
	if err != nil {
		return fmt.Errorf("record sent context: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Sent(ctx context.Context, session string) (prompt.Context, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT context FROM sent_contexts WHERE session = ?`, session).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return prompt.Context{}, fmt.Errorf("sent context %s: %w", session, ErrNotFound)
	}
	if err != nil {
		return prompt.Context{}, err
	}
	var out prompt.Context
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return prompt.Context{}, fmt.Errorf("decode context: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, session string, k knowledge.Knowledge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE session = ?`, session); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	for p, content := range k.All() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (session, path, content) VALUES (?, ?, ?)`, session, p, content)
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", p, err)
		}
	}
	return tx.Commit()
}

// Snapshot returns ErrNotFound when the session has no snapshot.
func (s *SQLiteStore) Snapshot(ctx context.Context, session string) (knowledge.Knowledge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content FROM snapshots WHERE session = ?`, session)
	if err != nil {
		return knowledge.Knowledge{}, err
	}
	defer rows.Close()

	docs := make(map[string]string)
	for rows.Next() {
		var p, content string
		if err := rows.Scan(&p, &content); err != nil {
			return knowledge.Knowledge{}, err
		}
		docs[p] = content
	}
	if err := rows.Err(); err != nil {
		return knowledge.Knowledge{}, err
	}
	if len(docs) == 0 {
		return knowledge.Knowledge{}, fmt.Errorf("snapshot %s: %w", session, ErrNotFound)
	}
	return knowledge.New(docs), nil
}
