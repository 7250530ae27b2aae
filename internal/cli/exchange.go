package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

func init() {
	exchangeCmd := &cobra.Command{
		Use:   "exchange",
		Short: "Manage archived exchanges",
	}

	put := &cobra.Command{
		Use:   "put [response]",
		Short: "Archive a prompt/response pair",
		Long:  "Archive an exchange. The response can be a positional arg or piped via stdin.",
		Run:   runExchangePut,
	}
	put.Flags().StringP("session", "s", "", "Session key (required)")
	put.Flags().StringP("prompt", "p", "", "Prompt text (required)")
	put.MarkFlagRequired("session")
	put.MarkFlagRequired("prompt")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete an exchange so it is no longer used as an example",
		Args:  cobra.ExactArgs(1),
		Run:   runExchangeRm,
	}
	rm.Flags().Bool("hard", false, "Permanent delete (irreversible)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List exchanges, newest first",
		Run:   runExchangeList,
	}
	list.Flags().StringP("session", "s", "", "Filter by session")
	list.Flags().IntP("limit", "l", 20, "Max results")
	list.Flags().Bool("deleted", false, "Include deleted exchanges")

	export := &cobra.Command{
		Use:   "export",
		Short: "Export live exchanges as JSON",
		Run:   runExchangeExport,
	}
	export.Flags().StringP("session", "s", "", "Filter by session")

	imp := &cobra.Command{
		Use:   "import",
		Short: "Import exchanges from JSON on stdin",
		Long:  "Import exchanges in the format produced by export. Existing IDs are skipped.",
		Run:   runExchangeImport,
	}

	exchangeCmd.AddCommand(put, rm, list, export, imp)
	RootCmd.AddCommand(exchangeCmd)
}

func runExchangePut(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	promptText, _ := cmd.Flags().GetString("prompt")

	response, err := readInput(args)
	if err != nil {
		exitErr("read stdin", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ex, err := s.Put(cmd.Context(), store.PutParams{
		Session:  session,
		Prompt:   promptText,
		Response: strings.TrimSpace(response),
	})
	if err != nil {
		exitErr("put", err)
	}
	logger.Debug("archived exchange", zap.String("id", ex.ID), zap.String("session", ex.Session))

	b, _ := json.Marshal(ex)
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func runExchangeRm(cmd *cobra.Command, args []string) {
	hard, _ := cmd.Flags().GetBool("hard")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.Rm(cmd.Context(), store.RmParams{ID: args[0], Hard: hard}); err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", args[0])
}

func runExchangeList(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")
	deleted, _ := cmd.Flags().GetBool("deleted")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	exchanges, err := s.List(cmd.Context(), store.ListParams{
		Session:        session,
		Limit:          limit,
		IncludeDeleted: deleted,
	})
	if err != nil {
		exitErr("list", err)
	}

	if formatFlag == "text" {
		for _, ex := range exchanges {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", ex.ID, ex.Session, firstLine(ex.Prompt))
		}
		return
	}
	printJSON(cmd, exchanges)
}

func runExchangeExport(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	exchanges, err := s.Export(cmd.Context(), session)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(cmd, exchanges)
}

func runExchangeImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var exchanges []model.Exchange
	if err := json.Unmarshal(data, &exchanges); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), exchanges)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
