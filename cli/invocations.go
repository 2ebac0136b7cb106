package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hunt-labs/huntgate/server"
)

// NewInvocationsCmd creates the "invocations" subcommand, reading the
// tool execution audit log from a SQLite database.
func NewInvocationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invocations",
		Short: "List recorded tool invocations",
		RunE:  runInvocations,
	}
	cmd.Flags().String("sqlite-path", "", "Path to SQLite invocation audit database")
	cmd.Flags().String("tool", "", "Filter by tool name")
	cmd.Flags().Int("limit", 50, "Maximum number of records")
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func runInvocations(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("sqlite-path")
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("HUNTGATE_SQLITE_PATH"))
	}
	if path == "" {
		return exitError(exitConfig, "no sqlite path: set --sqlite-path or HUNTGATE_SQLITE_PATH")
	}

	store, err := server.NewSQLiteInvocationStore(server.SQLiteStoreConfig{DSN: path})
	if err != nil {
		return exitError(exitRuntime, "opening invocation store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	tool, _ := cmd.Flags().GetString("tool")
	limit, _ := cmd.Flags().GetInt("limit")

	recs, err := store.List(cmd.Context(), tool, limit)
	if err != nil {
		return exitError(exitRuntime, "listing invocations: %v", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(recs); err != nil {
			return exitError(exitRuntime, "encoding invocations: %v", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOOL\tSTATUS\tELAPSED")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dms\n",
			rec.CreatedAt.Format(time.RFC3339), rec.Tool, rec.Status, rec.ElapsedMS)
	}
	return w.Flush()
}
