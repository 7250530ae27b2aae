// Package cli implements the agent-context CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/config"
	"github.com/rcliao/agent-context/internal/logging"
	"github.com/rcliao/agent-context/internal/prompt"
	"github.com/rcliao/agent-context/internal/store"
)

var (
	dbPath     string
	configPath string
	formatFlag string

	cfg    *config.Config
	logger = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-context",
	Short: "Budgeted prompt contexts for AI agents",
	Long: "Assemble knowledge documents and past exchanges into a prompt context that fits a " +
		"character budget and reuses what the model backend already has cached.",
	PersistentPreRun: loadConfig,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: db from config, ~/.agent-context/context.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.agent-context/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().String("log-level", "", "Log level override: debug, info, warn, error")
}

func loadConfig(cmd *cobra.Command, args []string) {
	c, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		c.DB = dbPath
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		c.Log.Level = lvl
	}
	l, err := logging.New(c.Log)
	if err != nil {
		exitErr("init logging", err)
	}
	cfg, logger = c, l
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if cfg != nil {
		return cfg.DB
	}
	return config.Default().DB
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func exitErr(msg string, err error) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

// readInput returns the joined positional args, or stdin when it is piped.
func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// printContext writes a context as JSON chunks, or as plain chat text.
func printContext(cmd *cobra.Command, ctx prompt.Context) {
	out := cmd.OutOrStdout()
	if formatFlag == "text" {
		for _, m := range ctx.Chat() {
			fmt.Fprintf(out, "--- %s\n%s\n", m.Role, m.Content)
		}
		return
	}
	b, err := json.MarshalIndent(struct {
		Cost   int            `json:"cost"`
		Chunks prompt.Context `json:"chunks"`
	}{ctx.Cost(), ctx}, "", "  ")
	if err != nil {
		exitErr("encode context", err)
	}
	fmt.Fprintln(out, string(b))
}

func printJSON(cmd *cobra.Command, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitErr("encode output", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}
