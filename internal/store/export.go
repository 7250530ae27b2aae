package store

import (
	"context"
	"fmt"

	"github.com/rcliao/agent-context/internal/model"
)

// Export returns all live exchanges, optionally filtered by session, oldest first.
func (s *SQLiteStore) Export(ctx context.Context, session string) ([]model.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE deleted_at IS NULL`
	var args []any
	if session != "" {
		query += ` AND session = ?`
		args = append(args, session)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Import stores exchanges from an export, keeping their IDs and timestamps.
// Exchanges whose ID already exists are skipped.
func (s *SQLiteStore) Import(ctx context.Context, exchanges []model.Exchange) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	imported := 0
	for _, ex := range exchanges {
		if ex.ID == "" {
			ex.ID = s.newID()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO exchanges (id, session, prompt, response, created_at) VALUES (?, ?, ?, ?, ?)`,
			ex.ID, ex.Session, ex.Prompt, ex.Response, ex.CreatedAt.UTC().Format(timeFormat))
		if err != nil {
			return imported, fmt.Errorf("import %s: %w", ex.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			imported++
		}
	}
	return imported, tx.Commit()
}
