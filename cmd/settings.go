package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/smazurov/branchout/internal/logging"
	"github.com/smazurov/branchout/internal/settings"
	"github.com/spf13/cobra"
)

// CreateSettingsCmd creates the settings command.
func CreateSettingsCmd() *cobra.Command {
	var dir string
	var recent bool
	var reveal bool

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show saved filter settings",
		Long: `Prints the settings file written by the branch output filter. ` +
			`With --recent only the keys a new filter would pick up are shown; the server, stream key and audio source are left out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := settings.NewStore(dir, logging.GetLogger("settings"))

			var d settings.Data
			if recent {
				d = settings.New()
				if err := store.LoadRecent(d); err != nil {
					return err
				}
			} else {
				loaded, err := store.Load()
				if err != nil {
					return err
				}
				d = loaded
			}

			if !reveal {
				d = d.Redact()
			}

			raw, err := d.JSON()
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, raw, "", "  "); err != nil {
				return fmt.Errorf("failed to format settings: %w", err)
			}
			out.WriteByte('\n')
			_, err = cmd.OutOrStdout().Write(out.Bytes())
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory holding "+settings.FileName)
	cmd.Flags().BoolVar(&recent, "recent", false, "Show only the settings a new filter inherits")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the stream key and password in clear text")
	return cmd
}
