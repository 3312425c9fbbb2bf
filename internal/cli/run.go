package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/bd-pipeline/internal/bootstrap"
)

func newRunCommand(withApp appRunner) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scrape cycle and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if app.Cycle == nil {
					return errors.New("pipeline is not configured")
				}
				result, err := app.Cycle.RunCycle(ctx)
				if err != nil {
					return fmt.Errorf("run cycle: %w", err)
				}
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if strict && len(result.Errors) > 0 {
					return fmt.Errorf("%d source(s) failed", len(result.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any source run failed")
	return cmd
}
