package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type migrateResult struct {
	Driver string `json:"driver"`
	Status string `json:"status"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Connect to the configured database and apply the schema.

Safe to run repeatedly; the bot runs the same step on start.

Examples:
  streakctl migrate
  streakctl migrate --sqlite ./data/streak.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			res := migrateResult{Driver: e.storage.Driver, Status: "ok"}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", res.Driver)
			return nil
		},
	}
}
