package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/delta"
	"github.com/rcliao/agent-context/internal/knowledge"
	"github.com/rcliao/agent-context/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "delta [before-dir] <after-dir>",
		Short: "Describe how one document set turns into another",
		Long: "Compare two directories, or a directory against the snapshot saved for --session. " +
			"Renames are detected by content and modifications can be sent as line diffs.",
		Args: cobra.RangeArgs(1, 2),
		Run:  runDelta,
	}

	cmd.Flags().StringP("session", "s", "", "Compare against the snapshot of this session")
	cmd.Flags().Bool("save", false, "Save the after state as the session snapshot")
	cmd.Flags().Bool("moves", true, "Detect renamed documents by content")
	cmd.Flags().Bool("compress", false, "Replace modifications by line diffs when shorter")
	cmd.Flags().Float64("threshold", 0, "Diff-to-content ratio below which a diff is used (default from config)")
	cmd.Flags().StringSlice("ignore", nil, "Extra gitignore patterns when loading directories")

	RootCmd.AddCommand(cmd)
}

type deltaOutput struct {
	Records []delta.DocumentDelta `json:"records"`
	Present []string              `json:"present"`
	Removed []string              `json:"removed"`
	Moves   map[string]string     `json:"moves,omitempty"`
}

func runDelta(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	session, _ := cmd.Flags().GetString("session")
	save, _ := cmd.Flags().GetBool("save")
	moves, _ := cmd.Flags().GetBool("moves")
	compress, _ := cmd.Flags().GetBool("compress")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	if threshold == 0 {
		threshold = settings().Delta.Threshold
	}

	var s *store.SQLiteStore
	if session != "" {
		var err error
		if s, err = openStore(); err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
	}

	var before, after knowledge.Knowledge
	switch {
	case len(args) == 2:
		before, after = loadKnowledge(cmd, args[0]), loadKnowledge(cmd, args[1])
	case s != nil:
		var err error
		before, err = s.Snapshot(ctx, session)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			exitErr("read snapshot", err)
		}
		after = loadKnowledge(cmd, args[0])
	default:
		exitErr("delta", errors.New("need two directories or --session"))
	}

	var hints map[string]string
	if moves {
		hints = delta.DetectMoves(before, after)
	}
	d := delta.Between(before, after, hints)
	if compress {
		d = delta.DiffCompress(before, d, threshold)
	}
	logger.Debug("computed delta", zap.Int("records", len(d)), zap.Int("moves", len(hints)))

	if save {
		if s == nil {
			exitErr("delta", errors.New("--save needs --session"))
		}
		if err := s.SaveSnapshot(ctx, session, after); err != nil {
			exitErr("save snapshot", err)
		}
	}

	if d == nil {
		d = delta.KnowledgeDelta{}
	}
	printJSON(cmd, deltaOutput{
		Records: d,
		Present: d.Present().Sorted(),
		Removed: d.Removed().Sorted(),
		Moves:   d.Moves(),
	})
}
