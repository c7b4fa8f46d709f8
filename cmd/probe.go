package cmd

import (
	"fmt"

	"github.com/smazurov/branchout/internal/output"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var preferred string

	cmd := &cobra.Command{
		Use:   "probe [server-url]",
		Short: "Show which output type a server URL selects",
		Long: `Resolves the output type the filter would create for a server URL. ` +
			`A preferred type, as a streaming service may report, always wins.`,
		Example: "  branchout probe srt://ingest.example.com:9000\n  branchout probe --preferred rtmp_output ftl://ingest.example.com",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var url string
			if len(args) == 1 {
				url = args[0]
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), output.ResolveOutputType(preferred, url))
			return err
		},
	}

	cmd.Flags().StringVar(&preferred, "preferred", "", "Output type preferred by the service")
	return cmd
}
