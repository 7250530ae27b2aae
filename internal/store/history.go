package store

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/prompt"
)

const defaultPageSize = 50

// History is a lazily paged stream of archived exchanges. Exchanges matching
// the query come first by full-text rank, then all others newest first.
// Iteration stops at the first query error, which Err then reports.
type History struct {
	s   *SQLiteStore
	ctx context.Context
	p   HistoryParams
	err error
}

func (s *SQLiteStore) History(ctx context.Context, p HistoryParams) *History {
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	return &History{s: s, ctx: ctx, p: p}
}

// Err returns the error that ended the last iteration, if any.
func (h *History) Err() error { return h.err }

// All yields examples, most relevant first. Pages are fetched on demand, so
// a consumer that stops early never reads the rest of the archive.
func (h *History) All() iter.Seq[prompt.Example] {
	return func(yield func(prompt.Example) bool) {
		h.err = nil
		match := matchExpr(h.p.Query)
		phases := []bool{false}
		if match != "" {
			phases = []bool{true, false}
		}
		for _, matching := range phases {
			for offset := 0; ; offset += h.p.PageSize {
				page, err := h.s.historyPage(h.ctx, h.p.Session, match, matching, offset, h.p.PageSize)
				if err != nil {
					h.err = err
					return
				}
				for _, ex := range page {
					if !yield(Example(ex)) {
						return
					}
				}
				if len(page) < h.p.PageSize {
					break
				}
			}
		}
	}
}

// Example converts an exchange into an example, recovering the documents its
// text embeds.
func Example(ex model.Exchange) prompt.Example {
	refs := format.References(ex.Prompt).Merge(format.References(ex.Response))
	return prompt.Example{ID: ex.ID, Chat: prompt.ChatOf(ex.Prompt, ex.Response), Knowledge: refs}
}

// historyPage returns one page of live exchanges. With matching set it pages
// through full-text hits by rank; otherwise through the exchanges that are
// not hits, newest first.
func (s *SQLiteStore) historyPage(ctx context.Context, session, match string, matching bool, offset, limit int) ([]model.Exchange, error) {
	where := []string{"e.deleted_at IS NULL"}
	var args []any
	var query string

	switch {
	case matching:
		where = append(where, "exchanges_fts MATCH ?")
		args = append(args, match)
	case match != "":
		where = append(where, "e.rowid NOT IN (SELECT rowid FROM exchanges_fts WHERE exchanges_fts MATCH ?)")
		args = append(args, match)
	}
	if session != "" {
		where = append(where, "e.session = ?")
		args = append(args, session)
	}

	if matching {
		query = fmt.Sprintf(`
			SELECT e.id, e.session, e.prompt, e.response, e.created_at, e.deleted_at
			FROM exchanges_fts
			JOIN exchanges e ON e.rowid = exchanges_fts.rowid
			WHERE %s
			ORDER BY bm25(exchanges_fts), e.created_at DESC
			LIMIT ? OFFSET ?`, strings.Join(where, " AND "))
	} else {
		query = fmt.Sprintf(`
			SELECT e.id, e.session, e.prompt, e.response, e.created_at, e.deleted_at
			FROM exchanges e
			WHERE %s
			ORDER BY e.created_at DESC, e.id DESC
			LIMIT ? OFFSET ?`, strings.Join(where, " AND "))
	}
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history page: %w", err)
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

var termRegex = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// matchExpr turns free text into an FTS5 expression matching any term.
func matchExpr(query string) string {
	terms := termRegex.FindAllString(query, -1)
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " OR ")
}

// IsExample returns a validity check for examples backed by this archive.
// Lookup failures count as invalid.
func (s *SQLiteStore) IsExample(ctx context.Context) func(prompt.Example) bool {
	return func(ex prompt.Example) bool {
		ok, err := s.Valid(ctx, ex.ID)
		return err == nil && ok
	}
}
