package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/bd-pipeline/internal/bootstrap"
	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

func newSourcesCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage configured feed sources",
	}
	cmd.AddCommand(
		newSourcesListCommand(withApp),
		newSourcesAddCommand(withApp),
		newSourcesDisableCommand(withApp),
	)
	return cmd
}

func newSourcesListCommand(withApp appRunner) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				sources, err := app.Sources.ListSources(ctx)
				if err != nil {
					return fmt.Errorf("list sources: %w", err)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), sources)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tTYPE\tACTIVE\tURL")
				for _, src := range sources {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", src.Name, src.SourceType, src.IsActive, src.URL)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newSourcesAddCommand(withApp appRunner) *cobra.Command {
	var (
		name       string
		sourceType string
		url        string
		frequency  int
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add or update a source",
		Example: `  leadctl sources add --name "PND RFPs" --type rss_rfp --url https://philanthropynewsdigest.org/rfps/feed`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				src, err := app.Sources.AddSource(ctx, domain.SourceConfig{
					Name:                   name,
					SourceType:             domain.SourceType(sourceType),
					URL:                    url,
					ScrapeFrequencyMinutes: frequency,
				})
				if err != nil {
					return fmt.Errorf("add source: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "source %q saved (id %d)\n", src.Name, src.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "unique source name")
	cmd.Flags().StringVar(&sourceType, "type", string(domain.SourceRSSRFP), "source type (rss_rfp, rss_news, grants_gov, ...)")
	cmd.Flags().StringVar(&url, "url", "", "feed url")
	cmd.Flags().IntVar(&frequency, "frequency", 360, "scrape frequency in minutes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newSourcesDisableCommand(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Stop polling a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.Sources.DisableSource(ctx, args[0]); err != nil {
					return fmt.Errorf("disable source: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "source %q disabled\n", args[0])
				return nil
			})
		},
	}
}
