package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hunt-labs/huntgate/registry"
	"github.com/hunt-labs/huntgate/tools"
)

// NewToolsCmd creates the "tools" subcommand, listing the gateway tool
// catalog without starting a server.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools the gateway exposes",
		RunE:  runTools,
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	reg := registry.New()
	toolset := tools.NewToolset(reg, nil)
	tools.RegisterAll(toolset)

	snapshot := reg.Snapshot()

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(snapshot); err != nil {
			return exitError(exitRuntime, "encoding tools: %v", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, desc := range snapshot {
		fmt.Fprintf(w, "%s\t%s\n", desc.Name, desc.Description)
	}
	return w.Flush()
}
