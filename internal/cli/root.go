package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/bd-pipeline/internal/bootstrap"
	"github.com/kirillkom/bd-pipeline/internal/config"
	"github.com/kirillkom/bd-pipeline/internal/observability/logging"
)

const serviceName = "leadctl"

// GlobalFlags are the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigFile string
	LogLevel   string
}

// Loader builds the application for one command invocation.
type Loader func(ctx context.Context, flags GlobalFlags) (*bootstrap.App, error)

// NewRootCommand assembles the leadctl command tree.
func NewRootCommand(load Loader) *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "leadctl",
		Short: "Operate the BD lead pipeline",
		Long: `leadctl runs scrape cycles, exports qualified leads and manages
the feed sources polled by the pipeline. It reads the same environment
variables as the API server.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "YAML keyword overrides (sets PIPELINE_CONFIG_FILE)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	withApp := func(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		app, err := load(ctx, *flags)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, app)
	}

	root.AddCommand(
		newRunCommand(withApp),
		newExportCommand(withApp),
		newSourcesCommand(withApp),
		newGrantsCommand(withApp),
	)
	return root
}

type appRunner func(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error

// DefaultLoader reads configuration from the environment, installs a JSON
// logger on stderr and connects to Postgres.
func DefaultLoader(ctx context.Context, flags GlobalFlags) (*bootstrap.App, error) {
	if flags.ConfigFile != "" {
		if err := os.Setenv("PIPELINE_CONFIG_FILE", flags.ConfigFile); err != nil {
			return nil, fmt.Errorf("set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	slog.SetDefault(logging.NewLogger(os.Stderr, serviceName, cfg.LogLevel))

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
