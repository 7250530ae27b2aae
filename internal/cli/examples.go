package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/agent-context/internal/cram"
	"github.com/rcliao/agent-context/internal/format"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/prompt"
	"github.com/rcliao/agent-context/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Select archived exchanges that fit a budget",
		Long: "Stream archived exchanges, most relevant to --query first, and keep as many as fit. " +
			"With --edit, documents quoted in selected exchanges are brought up to date against dir.",
		Run: runExamples,
	}

	cmd.Flags().StringP("session", "s", "", "Only use exchanges of this session")
	cmd.Flags().StringP("query", "q", "", "Rank exchanges by full-text relevance")
	cmd.Flags().IntP("budget", "b", 0, "Budget in characters (default from config)")
	cmd.Flags().String("edit", "", "Directory holding the current documents")

	RootCmd.AddCommand(cmd)
}

func runExamples(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	session, _ := cmd.Flags().GetString("session")
	query, _ := cmd.Flags().GetString("query")
	budget, _ := cmd.Flags().GetInt("budget")
	editDir, _ := cmd.Flags().GetString("edit")
	if budget == 0 {
		budget = settings().Examples.Budget
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	history := s.History(ctx, store.HistoryParams{Session: session, Query: query})

	var out prompt.Context
	var touched []string
	if editDir == "" {
		out = cram.NewExampleCrammer(exampleConfig(settings().Examples.FillTarget)).Cram(history.All(), budget)
	} else {
		current := loadKnowledge(cmd, editDir)
		ec := cram.NewEditCrammer(exampleConfig(settings().Examples.EditFillTarget), format.NewEnvelope())
		var paths knowledge.Index
		out, paths = ec.Cram(history.All(), budget, current)
		touched = paths.Sorted()
	}
	if err := history.Err(); err != nil {
		exitErr("read history", err)
	}

	if formatFlag == "text" {
		printContext(cmd, out)
		return
	}
	printJSON(cmd, struct {
		Cost     int            `json:"cost"`
		Examples int            `json:"examples"`
		Touched  []string       `json:"touched,omitempty"`
		Chunks   prompt.Context `json:"chunks"`
	}{out.Cost(), len(out.Examples()), touched, out})
}
