package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/prompt"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seed imports exchanges one minute apart, oldest first, with IDs e0, e1, ...
func seed(t *testing.T, s *SQLiteStore, session string, prompts ...string) []model.Exchange {
	t.Helper()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var exs []model.Exchange
	for i, p := range prompts {
		exs = append(exs, model.Exchange{
			ID:        fmt.Sprintf("%s-e%d", session, i),
			Session:   session,
			Prompt:    p,
			Response:  "response " + p,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	n, err := s.Import(context.Background(), exs)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != len(exs) {
		t.Fatalf("expected %d imported, got %d", len(exs), n)
	}
	return exs
}

func ids(examples []prompt.Example) []string {
	var out []string
	for _, ex := range examples {
		out = append(out, ex.ID)
	}
	return out
}

func collect(h *History) []prompt.Example {
	var out []prompt.Example
	for ex := range h.All() {
		out = append(out, ex)
	}
	return out
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ex, err := s.Put(ctx, PutParams{Session: "s1", Prompt: "hello", Response: "world"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if ex.ID == "" {
		t.Error("expected non-empty ID")
	}

	got, err := s.Get(ctx, ex.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Prompt != "hello" || got.Response != "world" || got.Session != "s1" {
		t.Errorf("unexpected exchange %+v", got)
	}
	if !got.CreatedAt.Equal(ex.CreatedAt) {
		t.Errorf("created_at not preserved: %v vs %v", got.CreatedAt, ex.CreatedAt)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutValidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Put(ctx, PutParams{Prompt: "p"}); err == nil {
		t.Error("expected error without session")
	}
	if _, err := s.Put(ctx, PutParams{Session: "s"}); err == nil {
		t.Error("expected error without prompt")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed(t, s, "a", "one", "two")
	seed(t, s, "b", "three")

	all, _ := s.List(ctx, ListParams{})
	if len(all) != 3 {
		t.Errorf("expected 3, got %d", len(all))
	}

	onlyA, _ := s.List(ctx, ListParams{Session: "a"})
	if len(onlyA) != 2 {
		t.Fatalf("expected 2, got %d", len(onlyA))
	}
	if onlyA[0].Prompt != "two" {
		t.Errorf("expected newest first, got %q", onlyA[0].Prompt)
	}

	limited, _ := s.List(ctx, ListParams{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected 1, got %d", len(limited))
	}
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exs := seed(t, s, "s", "one", "two")
	if err := s.Rm(ctx, RmParams{ID: exs[0].ID}); err != nil {
		t.Fatalf("rm: %v", err)
	}

	got, err := s.Get(ctx, exs[0].ID)
	if err != nil {
		t.Fatalf("get after soft delete: %v", err)
	}
	if !got.Deleted() {
		t.Error("expected exchange to be marked deleted")
	}

	live, _ := s.List(ctx, ListParams{})
	if len(live) != 1 {
		t.Errorf("expected 1 live exchange, got %d", len(live))
	}
	withDeleted, _ := s.List(ctx, ListParams{IncludeDeleted: true})
	if len(withDeleted) != 2 {
		t.Errorf("expected 2 with deleted, got %d", len(withDeleted))
	}

	if err := s.Rm(ctx, RmParams{ID: exs[0].ID}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exs := seed(t, s, "s", "needle in prompt")
	if err := s.Rm(ctx, RmParams{ID: exs[0].ID, Hard: true}); err != nil {
		t.Fatalf("rm hard: %v", err)
	}
	if _, err := s.Get(ctx, exs[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after hard delete, got %v", err)
	}
	got := collect(s.History(ctx, HistoryParams{Query: "needle"}))
	if len(got) != 0 {
		t.Errorf("expected no history after hard delete, got %v", ids(got))
	}
}

func TestHistoryRecencyOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed(t, s, "s", "one", "two", "three")
	seed(t, s, "other", "four")

	h := s.History(ctx, HistoryParams{Session: "s", PageSize: 2})
	got := ids(collect(h))
	want := []string{"s-e2", "s-e1", "s-e0"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if h.Err() != nil {
		t.Errorf("unexpected error: %v", h.Err())
	}
}

func TestHistoryQueryFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	seed(t, s, "s", "deploy the service", "unrelated chat", "more chatter", "deploy again today")

	got := ids(collect(s.History(ctx, HistoryParams{Query: "deploy", PageSize: 1})))
	if len(got) != 4 {
		t.Fatalf("expected all 4 exchanges, got %v", got)
	}
	matches := map[string]bool{got[0]: true, got[1]: true}
	if !matches["s-e0"] || !matches["s-e3"] {
		t.Errorf("expected matches first, got %v", got)
	}
	if got[2] != "s-e2" || got[3] != "s-e1" {
		t.Errorf("expected the rest newest first, got %v", got[2:])
	}
}

func TestHistoryStopsEarly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, "s", "a", "b", "c", "d", "e")

	var got []string
	for ex := range s.History(ctx, HistoryParams{PageSize: 2}).All() {
		got = append(got, ex.ID)
		if len(got) == 3 {
			break
		}
	}
	if fmt.Sprint(got) != fmt.Sprint([]string{"s-e4", "s-e3", "s-e2"}) {
		t.Errorf("unexpected prefix %v", got)
	}
}

func TestHistoryReportsErrors(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "s", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := s.History(ctx, HistoryParams{})
	if got := collect(h); len(got) != 0 {
		t.Errorf("expected nothing from a cancelled history, got %v", ids(got))
	}
	if h.Err() == nil {
		t.Error("expected an error from a cancelled context")
	}
}

func TestHistoryRecoversDocuments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	question := "Please fix:\n\n" + format.Render("main.go", "package main")
	if _, err := s.Put(ctx, PutParams{Session: "s", Prompt: question, Response: "Fixed."}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got := collect(s.History(ctx, HistoryParams{}))
	if len(got) != 1 {
		t.Fatalf("expected 1 example, got %d", len(got))
	}
	if !got[0].Knowledge.Equal(knowledge.Of("main.go", "package main")) {
		t.Errorf("unexpected embedded documents %v", got[0].Knowledge.Map())
	}
	if got[0].Chat.Opening() != question {
		t.Error("expected the prompt to open the example chat")
	}
}

func TestIsExample(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exs := seed(t, s, "s", "one", "two")
	valid := s.IsExample(ctx)
	if !valid(prompt.Example{ID: exs[0].ID}) {
		t.Error("expected live exchange to be valid")
	}
	s.Rm(ctx, RmParams{ID: exs[0].ID})
	if valid(prompt.Example{ID: exs[0].ID}) {
		t.Error("expected soft-deleted exchange to be invalid")
	}
	if valid(prompt.Example{ID: "missing"}) {
		t.Error("expected unknown exchange to be invalid")
	}
}

func TestSentContext(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Sent(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	env := format.NewEnvelope()
	first := env.Format(knowledge.Of("a.go", "package a"), knowledge.Ranking{})
	if err := s.RecordSent(ctx, "s", first); err != nil {
		t.Fatalf("record: %v", err)
	}
	second := first.Append(env.Deletion("b.go"))
	if err := s.RecordSent(ctx, "s", second); err != nil {
		t.Fatalf("record again: %v", err)
	}

	got, err := s.Sent(ctx, "s")
	if err != nil {
		t.Fatalf("sent: %v", err)
	}
	if !got.Equal(second) || got.Len() != second.Len() {
		t.Errorf("expected the latest context back")
	}
	if !got.Knowledge().Equal(knowledge.Of("a.go", "package a")) {
		t.Errorf("chunk payloads not preserved: %v", got.Knowledge().Map())
	}
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Snapshot(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	s.SaveSnapshot(ctx, "s", knowledge.Of("a", "1", "b", "2"))
	s.SaveSnapshot(ctx, "s", knowledge.Of("b", "3"))
	s.SaveSnapshot(ctx, "other", knowledge.Of("c", "4"))

	got, err := s.Snapshot(ctx, "s")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !got.Equal(knowledge.Of("b", "3")) {
		t.Errorf("expected snapshot to be replaced, got %v", got.Map())
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	exs := seed(t, s, "a", "one", "two")
	seed(t, s, "b", "three")
	s.Rm(ctx, RmParams{ID: exs[0].ID})
	s.RecordSent(ctx, "a", prompt.ContextOf(prompt.PlainChunk(prompt.ChatOf("12345", ""))))
	s.SaveSnapshot(ctx, "a", knowledge.Of("x", "1", "y", "2"))

	st, err := s.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalExchanges != 3 || st.ActiveExchanges != 2 {
		t.Errorf("unexpected exchange counts %+v", st)
	}
	if st.SentContexts != 1 || st.SnapshotDocs != 2 {
		t.Errorf("unexpected session counts %+v", st)
	}
	if len(st.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(st.Sessions))
	}
	for _, ss := range st.Sessions {
		if ss.Session == "a" && (ss.Exchanges != 1 || ss.SentCost != 5) {
			t.Errorf("unexpected stats for a: %+v", ss)
		}
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	seed(t, src, "a", "one", "two")
	seed(t, src, "b", "three")

	exported, err := src.Export(ctx, "a")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(exported) != 2 || exported[0].Prompt != "one" {
		t.Fatalf("expected session a oldest first, got %+v", exported)
	}

	dst := newTestStore(t)
	n, err := dst.Import(ctx, exported)
	if err != nil || n != 2 {
		t.Fatalf("import: n=%d err=%v", n, err)
	}
	n, _ = dst.Import(ctx, exported)
	if n != 0 {
		t.Errorf("expected re-import to skip existing IDs, got %d", n)
	}
	got, err := dst.Get(ctx, exported[1].ID)
	if err != nil {
		t.Fatalf("get imported: %v", err)
	}
	if !got.CreatedAt.Equal(exported[1].CreatedAt) {
		t.Errorf("timestamp not preserved: %v vs %v", got.CreatedAt, exported[1].CreatedAt)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
