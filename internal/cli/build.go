package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-context/internal/config"
	"github.com/rcliao/agent-context/internal/cram"
	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
	"github.com/rcliao/agent-context/internal/score"
	"github.com/rcliao/agent-context/internal/store"
)

func settings() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

// addKnowledgeFlags registers the flags shared by commands that cram documents.
func addKnowledgeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("budget", "b", 0, "Knowledge budget in characters (default from config)")
	cmd.Flags().String("strategy", "", "Shrink strategy: trim or whole (default from config)")
	cmd.Flags().StringP("query", "q", "", "Weigh documents by keyword hits")
	cmd.Flags().Bool("embed", false, "Weigh documents by embedding similarity to --query (AGENT_CONTEXT_EMBED_PROVIDER)")
	cmd.Flags().Bool("link-rank", false, "Propagate weight along mentions between documents")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns of documents to leave out")
	cmd.Flags().StringSlice("ignore", nil, "Extra gitignore patterns when loading the directory")
}

func loadKnowledge(cmd *cobra.Command, dir string) knowledge.Knowledge {
	ignore, _ := cmd.Flags().GetStringSlice("ignore")
	k, err := knowledge.LoadDir(dir, knowledge.LoadOptions{
		MaxFileBytes: settings().Knowledge.MaxFileBytes,
		Ignore:       ignore,
	})
	if err != nil {
		exitErr("load knowledge", err)
	}
	return k
}

func knowledgeBudget(cmd *cobra.Command) int {
	if b, _ := cmd.Flags().GetInt("budget"); b != 0 {
		return b
	}
	return settings().Knowledge.Budget
}

// scoring picks the scorer and any explicit scores from the flags.
func scoring(ctx context.Context, cmd *cobra.Command, k knowledge.Knowledge) (score.Scorer, knowledge.Scores, error) {
	query, _ := cmd.Flags().GetString("query")
	embed, _ := cmd.Flags().GetBool("embed")
	linkRank, _ := cmd.Flags().GetBool("link-rank")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	var scorer score.Scorer = score.Uniform
	var explicit knowledge.Scores
	switch {
	case embed:
		e := score.EmbedderFromEnv()
		if e == nil {
			return nil, explicit, errors.New("--embed needs AGENT_CONTEXT_EMBED_PROVIDER")
		}
		if query == "" {
			return nil, explicit, errors.New("--embed needs --query")
		}
		s, err := score.Embeddings(ctx, e, query, k)
		if err != nil {
			return nil, explicit, fmt.Errorf("embedding scores: %w", err)
		}
		explicit = s
	case query != "":
		scorer = score.Keyword{Query: query}
	}
	if linkRank {
		if explicit.IsEmpty() {
			explicit = scorer.Score(k)
		}
		scorer = score.LinkRank{}
	}
	if len(exclude) > 0 {
		scorer = score.Exclude{Inner: scorer, Patterns: exclude}
	}
	return scorer, explicit, nil
}

func knowledgeCrammer(cmd *cobra.Command, scorer score.Scorer) *cram.KnowledgeCrammer {
	kc := settings().Knowledge
	strategy, _ := cmd.Flags().GetString("strategy")
	if strategy == "" {
		strategy = kc.Strategy
	}
	return cram.NewKnowledgeCrammer(cram.KnowledgeConfig{
		Scorer:        scorer,
		Formatter:     format.NewEnvelope(),
		Strategy:      cram.Strategy(strategy),
		WholeExponent: kc.WholeExponent,
		TrimExponent:  kc.TrimExponent,
		TrimBatch:     kc.TrimBatch,
		Logger:        logger,
	})
}

func exampleConfig(fill float64) cram.ExampleConfig {
	return cram.ExampleConfig{
		Depth:      settings().Examples.Depth,
		FillTarget: fill,
		Logger:     logger,
	}
}

// sentContext is what the backend last received for session, or empty.
func sentContext(ctx context.Context, s *store.SQLiteStore, session string) prompt.Context {
	if session == "" {
		return prompt.Context{}
	}
	sent, err := s.Sent(ctx, session)
	if errors.Is(err, store.ErrNotFound) {
		return prompt.Context{}
	}
	if err != nil {
		exitErr("read sent context", err)
	}
	return sent
}
