package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/bd-pipeline/internal/bootstrap"
)

func newGrantsCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grants",
		Short: "Inspect Grants.gov opportunities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <opportunity-id>",
		Short: "Print the full Grants.gov detail record for one opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if app.Grants == nil {
					return errors.New("grants.gov adapter is not configured")
				}
				detail, err := app.Grants.FetchOpportunity(ctx, args[0])
				if err != nil {
					return fmt.Errorf("fetch opportunity %s: %w", args[0], err)
				}
				return writeJSON(cmd.OutOrStdout(), detail)
			})
		},
	})
	return cmd
}
