package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/diarize"
	"github.com/meetingbuddy/mbud/pkg/export"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
)

// Speaker command flags
var (
	speakerOutputFormat string
	speakerName         string
)

// SpeakerCommandDeps holds dependencies for speaker commands.
type SpeakerCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	OpenStore  func(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (store.Store, error)
	NewService func(st store.Store, cfg *config.CLIConfig, logger logging.Logger, metrics *diarize.Metrics) *diarize.Service
}

// DefaultSpeakerDeps returns default dependencies for production use.
func DefaultSpeakerDeps() *SpeakerCommandDeps {
	return &SpeakerCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenStore:  openStore,
		NewService: newService,
	}
}

// NewSpeakerCommand creates the root speaker command with all subcommands.
func NewSpeakerCommand(deps *SpeakerCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultSpeakerDeps()
	}

	cmd := &cobra.Command{
		Use:   "speaker",
		Short: "Manage a meeting's speakers",
		Long: `Manage the speakers diarization found in a meeting.

Each speaker keeps the stable label the engine assigned (Speaker 1,
Speaker 2, ...) forever; renaming only changes the display name shown in
transcripts. After renaming, run apply-names to rewrite the export files
already on disk.

Examples:
  # See who spoke, and for how long
  mbud speaker list <meeting-id>

  # Put a real name on a voice
  mbud speaker rename <meeting-id> "Speaker 1" --name "Alice"
  mbud speaker apply-names <meeting-id>`,
		Aliases: []string{"speakers"},
	}

	cmd.AddCommand(newSpeakerListCommand(deps))
	cmd.AddCommand(newSpeakerAddCommand(deps))
	cmd.AddCommand(newSpeakerRenameCommand(deps))
	cmd.AddCommand(newSpeakerApplyNamesCommand(deps))

	return cmd
}

// newSpeakerListCommand creates the 'speaker list' subcommand.
func newSpeakerListCommand(deps *SpeakerCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <meeting-id>",
		Short: "List a meeting's speakers with talk-time statistics",
		Long: `List the meeting's speakers in roster order, with each speaker's
segment count and total talk time derived from the persisted segments.

Examples:
  mbud speaker list <meeting-id>
  mbud speaker list <meeting-id> -o json`,
		Example: `  mbud speaker list <meeting-id>
  mbud speaker list <meeting-id> -o json`,
		Aliases: []string{"ls"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpeakerList(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&speakerOutputFormat, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// newSpeakerAddCommand creates the 'speaker add' subcommand.
func newSpeakerAddCommand(deps *SpeakerCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <meeting-id>",
		Short: "Add a speaker to the roster",
		Long: `Append one speaker with the next free ordinal label. Useful when a
voice was missed and segments need a manual home before the next reprocess.

Examples:
  mbud speaker add <meeting-id>
  mbud speaker add <meeting-id> --name "Guest"`,
		Example: `  mbud speaker add <meeting-id>
  mbud speaker add <meeting-id> --name "Guest"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpeakerAdd(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringVar(&speakerName, "name", "", "Display name (default: the new label)")

	return cmd
}

// newSpeakerRenameCommand creates the 'speaker rename' subcommand.
func newSpeakerRenameCommand(deps *SpeakerCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <meeting-id> <label>",
		Short: "Set a speaker's display name",
		Long: `Set the display name of the speaker with the given stable label.
The label itself never changes; it is the key diarization results are
reconciled by.

The database is updated immediately. Export files already on disk keep the
old name until apply-names rewrites them.

Examples:
  mbud speaker rename <meeting-id> "Speaker 1" --name "Alice"`,
		Example: `  mbud speaker rename <meeting-id> "Speaker 1" --name "Alice"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpeakerRename(cmd.Context(), deps, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&speakerName, "name", "", "New display name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// newSpeakerApplyNamesCommand creates the 'speaker apply-names' subcommand.
func newSpeakerApplyNamesCommand(deps *SpeakerCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply-names <meeting-id>",
		Short: "Rewrite export files with current display names",
		Long: `Rewrite the meeting's export files (transcript, subtitles, CSV,
structured result) so renamed speakers show their display names.

Files are handled independently: a missing file is skipped, and one file
failing never stops the rest. Safe to run repeatedly; a pass with nothing
to rename writes nothing.

Examples:
  mbud speaker apply-names <meeting-id>
  mbud speaker apply-names <meeting-id> -o json`,
		Example: `  mbud speaker apply-names <meeting-id>
  mbud speaker apply-names <meeting-id> -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpeakerApplyNames(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&speakerOutputFormat, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// runSpeakerList executes the speaker list command.
func runSpeakerList(ctx context.Context, deps *SpeakerCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, speakerOutputFormat)
	if err != nil {
		return err
	}

	st, err := deps.OpenStore(ctx, cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	// A missing meeting should fail loudly, not print an empty roster.
	if _, err := st.GetMeeting(ctx, meetingID); err != nil {
		return fmt.Errorf("getting meeting: %w", err)
	}

	stats, err := st.ListSpeakerStats(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("listing speakers: %w", err)
	}

	return outputSpeakerStats(format, stats)
}

// runSpeakerAdd executes the speaker add command.
func runSpeakerAdd(ctx context.Context, deps *SpeakerCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	st, err := deps.OpenStore(ctx, cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	speaker, err := st.AddSpeaker(ctx, meetingID, speakerName)
	if err != nil {
		return fmt.Errorf("adding speaker: %w", err)
	}

	fmt.Printf("Added %s (%q) to meeting %s.\n", speaker.Label, speaker.DisplayName, meetingID)
	return nil
}

// runSpeakerRename executes the speaker rename command.
func runSpeakerRename(ctx context.Context, deps *SpeakerCommandDeps, meetingID, label string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	st, err := deps.OpenStore(ctx, cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.RenameSpeaker(ctx, meetingID, label, speakerName); err != nil {
		return fmt.Errorf("renaming speaker: %w", err)
	}

	fmt.Printf("Renamed %s to %q.\n", label, speakerName)
	fmt.Println("Run 'mbud speaker apply-names' to update export files on disk.")
	return nil
}

// runSpeakerApplyNames executes the speaker apply-names command.
func runSpeakerApplyNames(ctx context.Context, deps *SpeakerCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, speakerOutputFormat)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	svc := deps.NewService(st, cfg, logger, nil)

	result, err := svc.ApplyNames(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("applying names: %w", err)
	}

	return outputSyncResult(format, result)
}

// outputSpeakerStats formats and outputs the speaker list.
func outputSpeakerStats(format config.OutputFormat, stats []*store.SpeakerStat) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(map[string]interface{}{
			"speakers": stats,
			"count":    len(stats),
		})
	case config.OutputFormatYAML:
		return outputYAML(map[string]interface{}{
			"speakers": stats,
			"count":    len(stats),
		})
	default:
		return outputSpeakerStatsText(stats)
	}
}

// outputSpeakerStatsText formats the speaker list for terminal display.
func outputSpeakerStatsText(stats []*store.SpeakerStat) error {
	if len(stats) == 0 {
		fmt.Println("No speakers found.")
		return nil
	}

	fmt.Printf("Speakers (%d):\n\n", len(stats))
	fmt.Println("  LABEL              NAME                       SEGMENTS   TALK TIME")
	fmt.Println("  -----              ----                       --------   ---------")

	for _, sp := range stats {
		fmt.Printf("  %-18s %-26s %8d   %s\n",
			sp.Label,
			truncateString(sp.DisplayName, 26),
			sp.Segments,
			formatClock(sp.DurationMs))
	}

	fmt.Println()
	return nil
}

// outputSyncResult formats and outputs an apply-names pass.
func outputSyncResult(format config.OutputFormat, result export.SyncResult) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(result)
	case config.OutputFormatYAML:
		return outputYAML(result)
	default:
		return outputSyncResultText(result)
	}
}

// outputSyncResultText formats an apply-names pass for terminal display.
func outputSyncResultText(result export.SyncResult) error {
	if len(result.Files) == 0 {
		fmt.Println("No display names differ from their labels; nothing to do.")
		return nil
	}

	fmt.Println("  FILE                 OUTCOME")
	fmt.Println("  ----                 -------")
	for _, f := range result.Files {
		outcome := f.Outcome
		if f.Detail != "" {
			outcome = fmt.Sprintf("%s (%s)", f.Outcome, f.Detail)
		}
		fmt.Printf("  %-20s %s\n", f.File, outcome)
	}

	fmt.Println()
	if failed := result.Failed(); failed > 0 {
		fmt.Printf("\033[33m%d file(s) changed, %d failed.\033[0m\n", result.Changed(), failed)
	} else {
		fmt.Printf("%d file(s) changed.\n", result.Changed())
	}
	return nil
}
