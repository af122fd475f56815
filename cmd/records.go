package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/funding-crawler/internal/app"
)

// newRecordsCmd creates the 'records' subcommand, which prints every stored
// funding event as JSON.
func newRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "Prints every persisted funding event as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if rt.cfg.DB.DSN == "" {
				return errors.New("db.dsn is not set; records are only kept in PostgreSQL")
			}
			a, err := newApp(cmd.Context(), rt.cfg, app.Options{}, rt.logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer a.Close()

			records, err := a.Store().QueryAll(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
}
