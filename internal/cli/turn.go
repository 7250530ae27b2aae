package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/contextcache"
	"github.com/rcliao/agent-context/internal/cram"
	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/prompt"
	"github.com/rcliao/agent-context/internal/store"
	"github.com/rcliao/agent-context/internal/trim"
)

func init() {
	cmd := &cobra.Command{
		Use:   "turn <dir>",
		Short: "Build the context for the next turn of a session",
		Long: "Cram the documents of dir and the most relevant archived exchanges, reusing as much " +
			"of the context last sent to the session as still holds. The result is recorded as sent " +
			"unless --dry-run is given.",
		Args: cobra.ExactArgs(1),
		Run:  runTurn,
	}

	addKnowledgeFlags(cmd)
	cmd.Flags().StringP("session", "s", "", "Session key (required)")
	cmd.Flags().Int("examples-budget", 0, "Budget for past exchanges (default from config)")
	cmd.Flags().Bool("dry-run", false, "Do not record the context as sent")
	cmd.MarkFlagRequired("session")

	RootCmd.AddCommand(cmd)
}

func runTurn(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	session, _ := cmd.Flags().GetString("session")
	query, _ := cmd.Flags().GetString("query")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	exBudget, _ := cmd.Flags().GetInt("examples-budget")
	if exBudget == 0 {
		exBudget = settings().Examples.Budget
	}
	kBudget := knowledgeBudget(cmd)

	k := loadKnowledge(cmd, args[0])
	scorer, explicit, err := scoring(ctx, cmd, k)
	if err != nil {
		exitErr("score", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	envelope := format.NewEnvelope()
	kc := knowledgeCrammer(cmd, scorer)
	ec := cram.NewEditCrammer(exampleConfig(settings().Examples.EditFillTarget), envelope)

	var produceErr error
	producer := contextcache.ProducerFunc(func(req contextcache.Request) prompt.Context {
		history := s.History(ctx, store.HistoryParams{Session: req.Key, Query: query})
		examples, touched := ec.Cram(history.All(), exBudget, req.Knowledge)
		if err := history.Err(); err != nil {
			produceErr = err
			return prompt.Context{}
		}
		docs, err := kc.Cram(k.Without(touched), kBudget, explicit, prompt.Context{})
		if err != nil {
			produceErr = err
			return prompt.Context{}
		}
		return prompt.Compose(docs, examples)
	})

	cache, err := contextcache.New(producer, contextcache.Config{
		Capacity:   settings().Cache.Capacity,
		FreshShare: settings().Cache.FreshShare,
		Formatter:  envelope,
		Logger:     logger,
	})
	if err != nil {
		exitErr("create cache", err)
	}

	sent := sentContext(ctx, s, session)
	cache.Restore(session, sent)
	out := cache.Produce(contextcache.Request{
		Key:       session,
		Budget:    kBudget + exBudget,
		Knowledge: k.Transform(trim.Eager.Trim),
		Cached:    sent,
		IsExample: s.IsExample(ctx),
	})
	if produceErr != nil {
		exitErr("build context", produceErr)
	}

	if !dryRun {
		if err := s.RecordSent(ctx, session, out); err != nil {
			exitErr("record sent context", err)
		}
		if err := s.SaveSnapshot(ctx, session, k); err != nil {
			exitErr("save snapshot", err)
		}
	}
	logger.Info("built turn context",
		zap.String("session", session),
		zap.Int("cost", out.Cost()),
		zap.Int("previous_cost", sent.Cost()),
	)
	printContext(cmd, out)
}
