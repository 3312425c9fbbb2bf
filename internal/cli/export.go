package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/bd-pipeline/internal/bootstrap"
	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/core/ports"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/export/xlsx"
)

const exportPageSize = 100

func newExportCommand(withApp appRunner) *cobra.Command {
	var (
		output        string
		status        string
		sourceType    string
		minConfidence float64
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export leads to an .xlsx workbook",
		Example: `  leadctl export -o leads.xlsx
  leadctl export -o qualified.xlsx --status qualified --min-confidence 0.6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.LeadFilter{
				Status:     domain.LeadStatus(status),
				SourceType: domain.SourceType(sourceType),
				SortBy:     "created_at",
				SortDesc:   true,
			}
			if cmd.Flags().Changed("min-confidence") {
				filter.MinConfidence = &minConfidence
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				leads, err := collectLeads(ctx, app.Leads, filter)
				if err != nil {
					return err
				}

				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := xlsx.Write(f, leads); err != nil {
					_ = f.Close()
					return fmt.Errorf("write workbook: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d leads to %s\n", len(leads), output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "leads.xlsx", "destination file")
	cmd.Flags().StringVar(&status, "status", "", "only leads with this review status")
	cmd.Flags().StringVar(&sourceType, "source-type", "", "only leads from this source type")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "minimum confidence score")
	return cmd
}

// collectLeads pages through the listing until every matching lead is read.
func collectLeads(ctx context.Context, service ports.LeadService, filter domain.LeadFilter) ([]domain.Lead, error) {
	filter.PageSize = exportPageSize
	var out []domain.Lead
	for page := 1; ; page++ {
		filter.Page = page
		result, err := service.ListLeads(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list leads page %d: %w", page, err)
		}
		out = append(out, result.Items...)
		if len(result.Items) < exportPageSize || len(out) >= result.Total {
			return out, nil
		}
	}
}
