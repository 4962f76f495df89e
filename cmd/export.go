package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/diarize"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
)

// ExportCommandDeps holds dependencies for export commands.
type ExportCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	OpenStore  func(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (store.Store, error)
	NewService func(st store.Store, cfg *config.CLIConfig, logger logging.Logger, metrics *diarize.Metrics) *diarize.Service
}

// DefaultExportDeps returns default dependencies for production use.
func DefaultExportDeps() *ExportCommandDeps {
	return &ExportCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenStore:  openStore,
		NewService: newService,
	}
}

// NewExportCommand creates the root export command with all subcommands.
func NewExportCommand(deps *ExportCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultExportDeps()
	}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Regenerate export files from the database",
		Long: `Regenerate a meeting's export files from the persisted speakers and
segments.

The diarization engine writes the canonical exports when a job finishes;
regeneration covers database-side edits (renames, added speakers) without
rerunning the engine. The engine's structured result file is never
regenerated, only patched by apply-names.

Examples:
  mbud export write <meeting-id>`,
	}

	cmd.AddCommand(newExportWriteCommand(deps))

	return cmd
}

// newExportWriteCommand creates the 'export write' subcommand.
func newExportWriteCommand(deps *ExportCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "write <meeting-id>",
		Short: "Write transcript, subtitle, and CSV files",
		Long: `Write the meeting's transcript, subtitle, and CSV files into its
output directory, using current display names.

Examples:
  mbud export write <meeting-id>`,
		Example: `  mbud export write <meeting-id>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportWrite(cmd.Context(), deps, args[0])
		},
	}
}

// runExportWrite executes the export write command.
func runExportWrite(ctx context.Context, deps *ExportCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	logger := newLogger(cfg)
	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	svc := deps.NewService(st, cfg, logger, nil)

	files, err := svc.WriteExports(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("writing exports: %w", err)
	}

	fmt.Printf("Wrote %d file(s):\n", len(files))
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
	return nil
}
