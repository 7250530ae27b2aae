package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/agent-context/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id          TEXT PRIMARY KEY,
		session     TEXT NOT NULL,
		prompt      TEXT NOT NULL,
		response    TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_exchanges_deleted ON exchanges(deleted_at);

	CREATE TABLE IF NOT EXISTS sent_contexts (
		session     TEXT PRIMARY KEY,
		context     TEXT NOT NULL,
		cost        INTEGER NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		session     TEXT NOT NULL,
		path        TEXT NOT NULL,
		content     TEXT NOT NULL,
		PRIMARY KEY (session, path)
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS exchanges_fts USING fts5(
		prompt,
		response,
		content=exchanges,
		content_rowid=rowid
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS exchanges_ai AFTER INSERT ON exchanges BEGIN
			INSERT INTO exchanges_fts(rowid, prompt, response) VALUES (new.rowid, new.prompt, new.response);
		END`,
		`CREATE TRIGGER IF NOT EXISTS exchanges_ad AFTER DELETE ON exchanges BEGIN
			INSERT INTO exchanges_fts(exchanges_fts, rowid, prompt, response) VALUES('delete', old.rowid, old.prompt, old.response);
		END`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return fmt.Errorf("create trigger: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, p PutParams) (*model.Exchange, error) {
	if p.Session == "" {
		return nil, errors.New("session is required")
	}
	if p.Prompt == "" {
		return nil, errors.New("prompt is required")
	}
	now := time.Now().UTC()
	ex := &model.Exchange{
		ID:        s.newID(),
		Session:   p.Session,
		Prompt:    p.Prompt,
		Response:  p.Response,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, session, prompt, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		ex.ID, ex.Session, ex.Prompt, ex.Response, now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("insert exchange: %w", err)
	}
	return ex, nil
}

// timeFormat is fixed-width so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const exchangeColumns = `id, session, prompt, response, created_at, deleted_at`

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Exchange, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exchangeColumns+` FROM exchanges WHERE id = ?`, id)
	ex, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exchange %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]model.Exchange, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	var where []string
	var args []any
	if !p.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	if p.Session != "" {
		where = append(where, "session = ?")
		args = append(args, p.Session)
	}
	query := `SELECT ` + exchangeColumns + ` FROM exchanges`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

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

func (s *SQLiteStore) Rm(ctx context.Context, p RmParams) error {
	var res sql.Result
	var err error
	if p.Hard {
		res, err = s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE id = ?`, p.ID)
	} else {
		now := time.Now().UTC().Format(timeFormat)
		res, err = s.db.ExecContext(ctx,
			`UPDATE exchanges SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now, p.ID)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("exchange %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// Valid reports whether id names a live exchange.
func (s *SQLiteStore) Valid(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM exchanges WHERE id = ? AND deleted_at IS NULL`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExchange(row scanner) (model.Exchange, error) {
	var ex model.Exchange
	var createdAt string
	var deletedAt sql.NullString

	if err := row.Scan(&ex.ID, &ex.Session, &ex.Prompt, &ex.Response, &createdAt, &deletedAt); err != nil {
		return ex, err
	}
	ex.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if deletedAt.Valid {
		t, _ := time.Parse(timeFormat, deletedAt.String)
		ex.DeletedAt = &t
	}
	return ex, nil
}
