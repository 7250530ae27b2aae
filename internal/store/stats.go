package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath          string         `json:"db_path"`
	DBSizeBytes     int64          `json:"db_size_bytes"`
	TotalExchanges  int            `json:"total_exchanges"`
	ActiveExchanges int            `json:"active_exchanges"`
	SentContexts    int            `json:"sent_contexts"`
	SnapshotDocs    int            `json:"snapshot_docs"`
	Sessions        []SessionStats `json:"sessions"`
}

// SessionStats holds per-session counts.
type SessionStats struct {
	Session   string `json:"session"`
	Exchanges int    `json:"exchanges"`
	SentCost  int    `json:"sent_cost"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges`).Scan(&st.TotalExchanges)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exchanges WHERE deleted_at IS NULL`).Scan(&st.ActiveExchanges)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sent_contexts`).Scan(&st.SentContexts)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&st.SnapshotDocs)

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.session, COUNT(*) AS cnt, COALESCE(MAX(c.cost), 0)
		FROM exchanges e
		LEFT JOIN sent_contexts c ON c.session = e.session
		WHERE e.deleted_at IS NULL
		GROUP BY e.session ORDER BY cnt DESC`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ss SessionStats
		rows.Scan(&ss.Session, &ss.Exchanges, &ss.SentCost)
		st.Sessions = append(st.Sessions, ss)
	}

	return st, rows.Err()
}
