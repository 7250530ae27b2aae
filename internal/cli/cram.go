package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/prompt"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cram <dir>",
		Short: "Fit the documents of a directory into a budget",
		Long: "Load every text file under dir, score and rank them, and render as many as fit the " +
			"budget. With --session, documents the session was already sent unchanged are skipped.",
		Args: cobra.ExactArgs(1),
		Run:  runCram,
	}

	addKnowledgeFlags(cmd)
	cmd.Flags().StringP("session", "s", "", "Skip documents already sent to this session")

	RootCmd.AddCommand(cmd)
}

func runCram(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	session, _ := cmd.Flags().GetString("session")

	k := loadKnowledge(cmd, args[0])
	scorer, explicit, err := scoring(ctx, cmd, k)
	if err != nil {
		exitErr("score", err)
	}

	prior := prompt.Context{}
	if session != "" {
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		prior = sentContext(ctx, s, session)
		s.Close()
	}

	out, err := knowledgeCrammer(cmd, scorer).Cram(k, knowledgeBudget(cmd), explicit, prior)
	if err != nil {
		exitErr("cram", err)
	}
	logger.Info("crammed knowledge",
		zap.Int("documents", k.Len()),
		zap.Int("sent", out.Knowledge().Len()),
		zap.Int("cost", out.Cost()),
	)
	printContext(cmd, out)
}
