package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testPaths = []string{"a.go", "b.go", "README.md", "pkg/doc.go", "pkg/x.go", "pkg/sub/y.go"}

func genKnowledge() *rapid.Generator[Knowledge] {
	return rapid.Custom(func(t *rapid.T) Knowledge {
		docs := rapid.MapOf(rapid.SampledFrom(testPaths), rapid.StringMatching(`[a-z ]{0,12}`)).Draw(t, "docs")
		return New(docs)
	})
}

func genIndex() *rapid.Generator[Index] {
	return rapid.Custom(func(t *rapid.T) Index {
		return IndexOf(rapid.SliceOf(rapid.SampledFrom(testPaths)).Draw(t, "paths")...)
	})
}

func TestNewDropsEmptyDocuments(t *testing.T) {
	k := New(map[string]string{"a": "x", "b": ""})
	assert.Equal(t, 1, k.Len())
	assert.False(t, k.Has("b"))
	assert.Equal(t, 1, k.Cost())
}

func TestWith(t *testing.T) {
	k := Of("a", "one")
	k2 := k.With("b", "two")
	assert.Equal(t, []string{"a", "b"}, k2.Paths())
	assert.Equal(t, []string{"a"}, k.Paths(), "receiver must not change")

	k3 := k2.With("a", "")
	assert.Equal(t, []string{"b"}, k3.Paths())
}

func TestTransformDropsEmptied(t *testing.T) {
	k := Of("keep", "abc", "drop", "xyz")
	out := k.Transform(func(p, content string) string {
		if p == "drop" {
			return ""
		}
		return content + "!"
	})
	got, ok := out.Get("keep")
	require.True(t, ok)
	assert.Equal(t, "abc!", got)
	assert.False(t, out.Has("drop"))
}

func TestMinus(t *testing.T) {
	k := Of("same", "1", "changed", "2", "new", "3")
	prior := Of("same", "1", "changed", "old", "gone", "4")
	assert.Equal(t, []string{"changed", "new"}, k.Minus(prior).Paths())
	assert.Equal(t, []string{"same"}, k.Unchanged(prior).Sorted())
}

func TestAllIsSorted(t *testing.T) {
	k := Of("c", "3", "a", "1", "b", "2")
	var paths []string
	for p := range k.All() {
		paths = append(paths, p)
	}
	assert.Equal(t, []string{"a", "b", "c"}, paths)
}

func TestRestrictWithoutPartition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := genKnowledge().Draw(t, "k")
		idx := genIndex().Draw(t, "idx")
		in, out := k.Restrict(idx), k.Without(idx)
		if !in.Merge(out).Equal(k) {
			t.Fatalf("restrict and without do not partition %v", k.Paths())
		}
		if in.Index().Intersect(out.Index()).Len() != 0 {
			t.Fatalf("restrict and without overlap")
		}
	})
}

func TestMergeRightWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genKnowledge().Draw(t, "a")
		b := genKnowledge().Draw(t, "b")
		m := a.Merge(b)
		for p, content := range b.All() {
			if got, _ := m.Get(p); got != content {
				t.Fatalf("%s: got %q want %q", p, got, content)
			}
		}
		if !m.Index().Equal(a.Index().Union(b.Index())) {
			t.Fatalf("merged index mismatch")
		}
	})
}

func TestIndexDeMorgan(t *testing.T) {
	universe := IndexOf(testPaths...)
	rapid.Check(t, func(t *rapid.T) {
		a := genIndex().Draw(t, "a")
		b := genIndex().Draw(t, "b")
		if !a.Union(b).Complement(universe).Equal(a.Complement(universe).Intersect(b.Complement(universe))) {
			t.Fatalf("complement of union")
		}
		if !a.Intersect(b).Complement(universe).Equal(a.Complement(universe).Union(b.Complement(universe))) {
			t.Fatalf("complement of intersection")
		}
	})
}

func TestScores(t *testing.T) {
	s := ScoresOf(map[string]float64{"a": 2, "b": 0, "c": 2, "d": 1})

	assert.Equal(t, []string{"a", "c", "d"}, s.NonZero().Sorted())
	assert.Equal(t, []string{"a", "c", "d", "b"}, s.Ranking().Paths())
	assert.InDelta(t, 1.0, s.Normalize().Total(), 1e-9)
	assert.Equal(t, 0.0, s.Get("missing"))

	other := ScoresOf(map[string]float64{"a": 5, "e": 1})
	assert.Equal(t, 5.0, s.Union(other).Get("a"))
	assert.Equal(t, 2.0, s.Intersect(other).Get("a"))
	assert.Equal(t, 1, s.Intersect(other).Len())
	assert.Equal(t, 7.0, s.Add(other).Get("a"))
	assert.False(t, s.Difference(IndexOf("a")).Has("a"))
}

func TestRanking(t *testing.T) {
	r := RankingOf("b", "a", "b", "c")
	assert.Equal(t, []string{"b", "a", "c"}, r.Paths())
	assert.Equal(t, 1, r.Position("a"))
	assert.Equal(t, -1, r.Position("z"))
	assert.Equal(t, []string{"b", "c"}, r.Restrict(IndexOf("c", "b")).Paths())
	assert.Equal(t, []string{"c", "a", "b"}, r.Reverse().Paths())
	assert.Equal(t, []string{"b", "a"}, r.Head(2).Paths())
	assert.Equal(t, 3, r.Head(10).Len())
}

func TestOverviewRanker(t *testing.T) {
	k := Of(
		"b.go", "x",
		"README.md", "x",
		"a/x.go", "x",
		"a/README.md", "x",
		"doc.go", "x",
	)
	got := OverviewRanker{}.Rank(k).Paths()
	assert.Equal(t, []string{"README.md", "doc.go", "b.go", "a/README.md", "a/x.go"}, got)
}

func TestOverviewRankerIsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := genKnowledge().Draw(t, "k")
		r := OverviewRanker{}.Rank(k)
		if !r.Index().Equal(k.Index()) {
			t.Fatalf("ranking must cover exactly the knowledge paths")
		}
	})
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "# generated\n*.log\nbuild/\n")
	writeFile(t, root, "main.go", "package")
	writeFile(t, root, "notes.log", "noise")
	writeFile(t, root, "build/out.txt", "artifact")
	writeFile(t, root, "docs/README.md", "# Docs\n")
	writeFile(t, root, "docs/big.txt", "0123456789")
	writeFile(t, root, "image.bin", "PNG\x00\x01")
	writeFile(t, root, "empty.txt", "")
	writeFile(t, root, ".git/config", "[core]")

	k, err := LoadDir(root, LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "docs/README.md", "docs/big.txt", "main.go"}, k.Paths())

	k, err = LoadDir(root, LoadOptions{MaxFileBytes: 9, Ignore: []string{"docs/README.md"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, k.Paths())
}

func TestLoadDirMissingRoot(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), LoadOptions{})
	assert.Error(t, err)
}
