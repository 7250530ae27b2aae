package cram

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
	"github.com/rcliao/agent-context/internal/trim"
)

func genKnowledge() *rapid.Generator[knowledge.Knowledge] {
	return rapid.Custom(func(t *rapid.T) knowledge.Knowledge {
		docs := rapid.MapOf(
			rapid.SampledFrom([]string{"README.md", "a.go", "b.go", "pkg/c.go", "pkg/doc.go", "notes.txt"}),
			rapid.StringMatching(`[a-z#]{1,20}(\n\n?[a-z# ]{1,20}){0,10}`),
		).Draw(t, "docs")
		return knowledge.New(docs)
	})
}

func TestCramAmpleBudgetFormatsEverything(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := genKnowledge().Draw(t, "k")
		c := NewKnowledgeCrammer(KnowledgeConfig{EagerTrimmer: trim.None})
		out, err := c.Cram(k, 1<<30, knowledge.Scores{}, prompt.Context{})
		if err != nil {
			t.Fatal(err)
		}
		want := format.NewEnvelope().Format(k, knowledge.OverviewRanker{}.Rank(k))
		if !out.Equal(want) {
			t.Fatalf("ample budget changed the rendering")
		}
	})
}

func TestCramFitsBudget(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := genKnowledge().Draw(t, "k")
		budget := rapid.IntRange(1, 400).Draw(t, "budget")
		strategy := rapid.SampledFrom([]Strategy{StrategyTrim, StrategyWhole}).Draw(t, "strategy")
		c := NewKnowledgeCrammer(KnowledgeConfig{Strategy: strategy})
		out, err := c.Cram(k, budget, knowledge.Scores{}, prompt.Context{})
		if err != nil {
			t.Fatal(err)
		}
		if out.Cost() > budget {
			t.Fatalf("cost %d over budget %d", out.Cost(), budget)
		}
	})
}

func TestCramTwoDocuments(t *testing.T) {
	k := knowledge.Of("a.txt", "one", "b.txt", "two")
	env := format.NewEnvelope()

	c := NewKnowledgeCrammer(KnowledgeConfig{})
	out, err := c.Cram(k, 10000, knowledge.Scores{}, prompt.Context{})
	require.NoError(t, err)
	assert.True(t, out.Knowledge().Equal(k))

	budget := env.Format(knowledge.Of("a.txt", "one"), knowledge.Ranking{}).Cost()
	c = NewKnowledgeCrammer(KnowledgeConfig{Strategy: StrategyWhole})
	out, err = c.Cram(k, budget, knowledge.Scores{}, prompt.Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, out.Knowledge().Paths())
	assert.LessOrEqual(t, out.Cost(), budget)
}

func TestCramWholeKeepsDenseDocuments(t *testing.T) {
	k := knowledge.Of("small.txt", "tiny", "huge.txt", strings.Repeat("filler ", 200))
	scores := knowledge.ScoresOf(map[string]float64{"small.txt": 1, "huge.txt": 1})
	c := NewKnowledgeCrammer(KnowledgeConfig{Strategy: StrategyWhole})
	out, err := c.Cram(k, 400, scores, prompt.Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.txt"}, out.Knowledge().Paths())
}

func TestCramTrimShortensInsteadOfDropping(t *testing.T) {
	long := "# Intro\n\nkeep me\n\n" + strings.Repeat("# Section\n\nmore words here\n\n", 30)
	k := knowledge.Of("guide.md", long)
	c := NewKnowledgeCrammer(KnowledgeConfig{})
	out, err := c.Cram(k, 300, knowledge.Scores{}, prompt.Context{})
	require.NoError(t, err)
	assert.LessOrEqual(t, out.Cost(), 300)
	got, ok := out.Knowledge().Get("guide.md")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "# Intro"))
}

func TestCramEmptyResults(t *testing.T) {
	k := knowledge.Of("a.txt", "one")
	c := NewKnowledgeCrammer(KnowledgeConfig{})

	for _, budget := range []int{0, -5} {
		out, err := c.Cram(k, budget, knowledge.Scores{}, prompt.Context{})
		require.NoError(t, err)
		assert.True(t, out.IsEmpty())
	}

	out, err := c.Cram(knowledge.Knowledge{}, 100, knowledge.Scores{}, prompt.Context{})
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestCramExcludesZeroScores(t *testing.T) {
	k := knowledge.Of("a.txt", "one", "b.txt", "two", "c.txt", "three")
	scores := knowledge.ScoresOf(map[string]float64{"a.txt": 1, "b.txt": 0})
	out, err := NewKnowledgeCrammer(KnowledgeConfig{}).Cram(k, 10000, scores, prompt.Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, out.Knowledge().Paths(), "zero and missing scores exclude")
}

func TestCramSkipsPriorDocuments(t *testing.T) {
	env := format.NewEnvelope()
	prior := env.Format(knowledge.Of("a.txt", "one", "b.txt", "old"), knowledge.Ranking{})
	k := knowledge.Of("a.txt", "one", "b.txt", "new", "c.txt", "three")

	out, err := NewKnowledgeCrammer(KnowledgeConfig{}).Cram(k, 10000, knowledge.Scores{}, prior)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "c.txt"}, out.Knowledge().Paths())

	out, err = NewKnowledgeCrammer(KnowledgeConfig{}).Cram(knowledge.Of("a.txt", "one"), 10000, knowledge.Scores{}, prior)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestCramTrimStalled(t *testing.T) {
	k := knowledge.Of("a.txt", strings.Repeat("x", 500))
	c := NewKnowledgeCrammer(KnowledgeConfig{Trimmer: trim.None})
	_, err := c.Cram(k, 100, knowledge.Scores{}, prompt.Context{})
	assert.ErrorIs(t, err, ErrTrimStalled)
}

// headerFormatter prepends a fixed preamble and records empty renderings.
type headerFormatter struct {
	empty *int
}

func (f headerFormatter) Format(k knowledge.Knowledge, ranking knowledge.Ranking) prompt.Context {
	if k.IsEmpty() {
		*f.empty++
	}
	header := plainChunk(strings.Repeat("h", 58))
	return prompt.Compose(prompt.ContextOf(header), format.NewEnvelope().Format(k, ranking))
}

func plainChunk(text string) prompt.Chunk {
	return prompt.PlainChunk(prompt.Chat{{Role: prompt.RoleSystem, Content: text}})
}

func TestCramOverheadLargerThanBudget(t *testing.T) {
	k := knowledge.Of("a.txt", "one", "b.txt", "two")
	for _, strategy := range []Strategy{StrategyTrim, StrategyWhole} {
		t.Run(string(strategy), func(t *testing.T) {
			empty := 0
			c := NewKnowledgeCrammer(KnowledgeConfig{Strategy: strategy, Formatter: headerFormatter{empty: &empty}})
			out, err := c.Cram(k, 20, knowledge.Scores{}, prompt.Context{})
			require.NoError(t, err)
			assert.True(t, out.IsEmpty())
			assert.Zero(t, empty, "empty knowledge is never formatted")
		})
	}
}

func TestCramUnknownStrategy(t *testing.T) {
	k := knowledge.Of("a.txt", strings.Repeat("x", 500))
	_, err := NewKnowledgeCrammer(KnowledgeConfig{Strategy: "shuffle"}).Cram(k, 100, knowledge.Scores{}, prompt.Context{})
	assert.ErrorContains(t, err, "shuffle")
}

func example(id, question, answer string, docs ...string) prompt.Example {
	return prompt.Example{ID: id, Chat: prompt.ChatOf(question, answer), Knowledge: knowledge.Of(docs...)}
}

// counted yields examples and records how many were pulled.
func counted(examples []prompt.Example, pulled *int) iter.Seq[prompt.Example] {
	return func(yield func(prompt.Example) bool) {
		for _, ex := range examples {
			*pulled++
			if !yield(ex) {
				return
			}
		}
	}
}

func TestExampleCramChronological(t *testing.T) {
	recent := example("2", "second question", "answer")
	older := example("1", "first question", "answer")
	out := NewExampleCrammer(ExampleConfig{}).Cram(slices.Values([]prompt.Example{recent, older}), 1000)

	exs := out.Examples()
	require.Len(t, exs, 2)
	assert.Equal(t, "1", exs[0].ID)
	assert.Equal(t, "2", exs[1].ID)
}

func TestExampleCramSkipsDuplicateOpenings(t *testing.T) {
	a := example("a", "same question", "first answer")
	b := example("b", "same question", "second answer")
	out := NewExampleCrammer(ExampleConfig{}).Cram(slices.Values([]prompt.Example{a, b}), 1000)
	require.Len(t, out.Examples(), 1)
	assert.Equal(t, "a", out.Examples()[0].ID)
}

func TestExampleCramDepth(t *testing.T) {
	var big []prompt.Example
	for i := range 10 {
		big = append(big, example(fmt.Sprint(i), fmt.Sprintf("question %d %s", i, strings.Repeat("x", 100)), "answer"))
	}
	pulled := 0
	out := NewExampleCrammer(ExampleConfig{Depth: 2}).Cram(counted(big, &pulled), 50)
	assert.True(t, out.IsEmpty())
	assert.Equal(t, 3, pulled, "scan stops once skips exceed depth")
}

func TestExampleCramFillTarget(t *testing.T) {
	var exs []prompt.Example
	for i := range 5 {
		exs = append(exs, example(fmt.Sprint(i), fmt.Sprintf("q%d%s", i, strings.Repeat("x", 24)), "abcd"))
	}
	require.Equal(t, 30, exs[0].Chat.Cost())

	pulled := 0
	out := NewExampleCrammer(ExampleConfig{FillTarget: 0.5}).Cram(counted(exs, &pulled), 100)
	assert.Len(t, out.Examples(), 2)
	assert.Equal(t, 2, pulled)
	assert.Equal(t, 60, out.Cost())
}

func TestExampleCramZeroBudget(t *testing.T) {
	pulled := 0
	out := NewExampleCrammer(ExampleConfig{}).Cram(counted([]prompt.Example{example("a", "q", "r")}, &pulled), 0)
	assert.True(t, out.IsEmpty())
	assert.Equal(t, 0, pulled)
}

func TestEditCram(t *testing.T) {
	current := knowledge.Of("a.go", "package a // new", "c.go", "package c")
	first := example("1", "fix a", "done", "a.go", "package a", "b.go", "package b")
	second := example("2", "look at a", "ok", "a.go", "package a", "c.go", "package c")

	ec := NewEditCrammer(ExampleConfig{}, nil)
	out, touched := ec.Cram(slices.Values([]prompt.Example{first, second}), 10000, current)

	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, touched.Sorted())
	require.Len(t, out.Examples(), 2)
	assert.Equal(t, "2", out.Examples()[0].ID)

	var kinds []prompt.ChunkKind
	for _, ch := range out.Chunks() {
		kinds = append(kinds, ch.Kind())
	}
	assert.Equal(t, []prompt.ChunkKind{
		prompt.KindExample,
		prompt.KindExample, prompt.KindDocument, prompt.KindDeletion,
	}, kinds)

	got, _ := out.Knowledge().Get("a.go")
	assert.Equal(t, "package a // new", got)
	assert.Equal(t, []string{"b.go"}, out.Deletions().Sorted())
}

func TestEditCramSkippedExampleDoesNotTouch(t *testing.T) {
	current := knowledge.Of("a.go", "x")
	huge := example("1", strings.Repeat("q", 500), "r", "big.go", "gone")
	small := example("2", "small", "r", "a.go", "x")

	out, touched := NewEditCrammer(ExampleConfig{}, nil).Cram(slices.Values([]prompt.Example{huge, small}), 100, current)
	assert.Equal(t, []string{"a.go"}, touched.Sorted())
	require.Len(t, out.Examples(), 1)
	assert.Equal(t, "2", out.Examples()[0].ID)
}
