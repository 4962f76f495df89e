package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/diarize"
	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
)

// Meeting command flags
var (
	meetingOutputFormat string
	meetingSpeakers     int
	meetingAudioPath    string
	meetingIngestName   string
	jobDevice           string
	jobWhisperModel     string
	jobLanguage         string
)

// MeetingCommandDeps holds dependencies for meeting commands.
type MeetingCommandDeps struct {
	Config     *config.CLIConfig
	LoadConfig func() (*config.CLIConfig, error)
	OpenStore  func(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (store.Store, error)
	NewService func(st store.Store, cfg *config.CLIConfig, logger logging.Logger, metrics *diarize.Metrics) *diarize.Service
}

// DefaultMeetingDeps returns default dependencies for production use.
func DefaultMeetingDeps() *MeetingCommandDeps {
	return &MeetingCommandDeps{
		LoadConfig: config.LoadConfig,
		OpenStore:  openStore,
		NewService: newService,
	}
}

// NewMeetingCommand creates the root meeting command with all subcommands.
func NewMeetingCommand(deps *MeetingCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultMeetingDeps()
	}

	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Manage meetings and their processing lifecycle",
		Long: `Manage meeting records and their diarization lifecycle.

A meeting starts pending, picks up an audio recording when it ends, and is
then processed in the background: the recording is transcribed, split into
speaker-attributed segments, and persisted. The result lands in done or
failed; reprocess restarts from the stored recording at any time.

Examples:
  # Create a meeting, then end it with a recording
  mbud meeting create "Weekly sync" --speakers 3
  mbud meeting end <id> --audio ./recording.m4a

  # One step: create + process an existing recording
  mbud meeting ingest ./standup.wav

  # Inspect the outcome
  mbud meeting show <id>
  mbud meeting show <id> -o json`,
		Aliases: []string{"meetings"},
	}

	cmd.AddCommand(newMeetingCreateCommand(deps))
	cmd.AddCommand(newMeetingListCommand(deps))
	cmd.AddCommand(newMeetingShowCommand(deps))
	cmd.AddCommand(newMeetingRenameCommand(deps))
	cmd.AddCommand(newMeetingStartCommand(deps))
	cmd.AddCommand(newMeetingEndCommand(deps))
	cmd.AddCommand(newMeetingReprocessCommand(deps))
	cmd.AddCommand(newMeetingIngestCommand(deps))

	return cmd
}

// newMeetingCreateCommand creates the 'meeting create' subcommand.
func newMeetingCreateCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a meeting",
		Long: `Create a meeting in pending state with a default speaker roster.

The roster is seeded with ordinal speakers (Speaker 1, Speaker 2, ...) and
replaced wholesale once a diarization result arrives, so the count only has
to be roughly right. Without a name the meeting is named after the current
time.

Examples:
  # Create with a name
  mbud meeting create "Weekly sync"

  # Expecting four voices
  mbud meeting create "All hands" --speakers 4`,
		Example: `  mbud meeting create "Weekly sync"
  mbud meeting create "All hands" --speakers 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			return runMeetingCreate(cmd.Context(), deps, name)
		},
	}

	cmd.Flags().IntVar(&meetingSpeakers, "speakers", 0, "Expected speaker count (default 2)")
	cmd.Flags().StringVarP(&meetingOutputFormat, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// newMeetingListCommand creates the 'meeting list' subcommand.
func newMeetingListCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		Long: `List meetings in reverse chronological order (most recent first).

Examples:
  # List all meetings
  mbud meeting list

  # Output as JSON
  mbud meeting list -o json`,
		Example: `  mbud meeting list
  mbud meeting list -o json`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingList(cmd.Context(), deps)
		},
	}

	cmd.Flags().StringVarP(&meetingOutputFormat, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// newMeetingShowCommand creates the 'meeting show' subcommand.
func newMeetingShowCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Show one meeting in detail",
		Long: `Show a meeting's lifecycle state, speaker roster, and, for failed
meetings, the most recent failure from the job log with its captured
diagnostic and a suggested next step.

Examples:
  # Inspect a meeting
  mbud meeting show 4f6b1c2e-...

  # Machine-readable detail
  mbud meeting show 4f6b1c2e-... -o json`,
		Example: `  mbud meeting show <meeting-id>
  mbud meeting show <meeting-id> -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingShow(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&meetingOutputFormat, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

// newMeetingRenameCommand creates the 'meeting rename' subcommand.
func newMeetingRenameCommand(deps *MeetingCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <meeting-id> <name>",
		Short: "Rename a meeting",
		Long: `Change a meeting's name. Nothing else is touched; recordings,
segments, and exports keep their paths.

Examples:
  mbud meeting rename <meeting-id> "Q3 planning"`,
		Example: `  mbud meeting rename <meeting-id> "Q3 planning"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingRename(cmd.Context(), deps, args[0], args[1])
		},
	}
}

// newMeetingStartCommand creates the 'meeting start' subcommand.
func newMeetingStartCommand(deps *MeetingCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "start <meeting-id>",
		Short: "Record that a meeting has started",
		Long: `Record the start timestamp. The meeting stays pending until it is
ended with a recording.

Examples:
  mbud meeting start <meeting-id>`,
		Example: `  mbud meeting start <meeting-id>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingStart(cmd.Context(), deps, args[0])
		},
	}
}

// newMeetingEndCommand creates the 'meeting end' subcommand.
func newMeetingEndCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end <meeting-id>",
		Short: "End a meeting and process its recording",
		Long: `Record the end timestamp and the recording's path, then run
diarization on it in the background. The command waits for the job so the
final state is visible before it returns; Ctrl-C abandons the wait.

Ending without --audio records that there is nothing to process and moves
the meeting straight to failed.

Examples:
  # End with a recording
  mbud meeting end <meeting-id> --audio ./recording.m4a

  # Force CPU inference for this run only
  mbud meeting end <meeting-id> --audio ./recording.m4a --device cpu

  # No recording was made
  mbud meeting end <meeting-id>`,
		Example: `  mbud meeting end <meeting-id> --audio ./recording.m4a
  mbud meeting end <meeting-id> --audio ./recording.m4a --device cpu`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingEnd(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringVar(&meetingAudioPath, "audio", "", "Path to the finished recording")
	cmd.Flags().StringVarP(&meetingOutputFormat, "output", "o", "", "Output format: text, json, yaml")
	addEngineFlags(cmd)

	return cmd
}

// newMeetingReprocessCommand creates the 'meeting reprocess' subcommand.
func newMeetingReprocessCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reprocess <meeting-id>",
		Short: "Run diarization again from the stored recording",
		Long: `Run a fresh diarization job reusing the recording stored when the
meeting ended. Works from any state, including done and failed; the previous
speakers and segments are replaced wholesale when the new result lands.

Examples:
  # Try again after a failure
  mbud meeting reprocess <meeting-id>

  # Rerun with a different model
  mbud meeting reprocess <meeting-id> --whisper-model large-v3`,
		Example: `  mbud meeting reprocess <meeting-id>
  mbud meeting reprocess <meeting-id> --whisper-model large-v3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingReprocess(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&meetingOutputFormat, "output", "o", "", "Output format: text, json, yaml")
	addEngineFlags(cmd)

	return cmd
}

// newMeetingIngestCommand creates the 'meeting ingest' subcommand.
func newMeetingIngestCommand(deps *MeetingCommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <audio-file>",
		Short: "Create and process a meeting from an existing recording",
		Long: `Create a meeting around an existing recording and process it in one
step. Without --name the meeting is named after the file.

This is the same trigger the watch-folder uses for files dropped into the
inbox.

Examples:
  # Ingest a finished recording
  mbud meeting ingest ./standup.wav

  # With an explicit name and roster size
  mbud meeting ingest ./allhands.m4a --name "All hands" --speakers 5`,
		Example: `  mbud meeting ingest ./standup.wav
  mbud meeting ingest ./allhands.m4a --name "All hands" --speakers 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMeetingIngest(cmd.Context(), deps, args[0])
		},
	}

	cmd.Flags().StringVar(&meetingIngestName, "name", "", "Meeting name (default: the file name)")
	cmd.Flags().IntVar(&meetingSpeakers, "speakers", 0, "Expected speaker count (default 2)")
	cmd.Flags().StringVarP(&meetingOutputFormat, "output", "o", "", "Output format: text, json, yaml")
	addEngineFlags(cmd)

	return cmd
}

// addEngineFlags registers per-run engine overrides on a job-triggering
// command. Unset flags leave the configured defaults in place.
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&jobDevice, "device", "", "Compute device for this run (e.g. cuda, cpu)")
	cmd.Flags().StringVar(&jobWhisperModel, "whisper-model", "", "Transcription model for this run")
	cmd.Flags().StringVar(&jobLanguage, "language", "", "Spoken language for this run")
}

// engineOverrides collects the per-run engine flags.
func engineOverrides() diarize.Overrides {
	return diarize.Overrides{
		Device:       jobDevice,
		WhisperModel: jobWhisperModel,
		Language:     jobLanguage,
	}
}

// runMeetingCreate executes the meeting create command.
func runMeetingCreate(ctx context.Context, deps *MeetingCommandDeps, name string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, meetingOutputFormat)
	if err != nil {
		return err
	}

	if name == "" {
		name = "Meeting " + time.Now().Format("2006-01-02 15:04")
	}

	logger := newLogger(cfg)
	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	meeting, err := st.CreateMeeting(ctx, name, meetingSpeakers)
	if err != nil {
		return fmt.Errorf("creating meeting: %w", err)
	}

	speakers, err := st.ListSpeakers(ctx, meeting.ID)
	if err != nil {
		return fmt.Errorf("listing speakers: %w", err)
	}

	return outputMeeting(format, &meetingDetail{Meeting: *meeting, Speakers: speakers})
}

// runMeetingList executes the meeting list command.
func runMeetingList(ctx context.Context, deps *MeetingCommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, meetingOutputFormat)
	if err != nil {
		return err
	}

	st, err := deps.OpenStore(ctx, cfg, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	meetings, err := st.ListMeetings(ctx)
	if err != nil {
		return fmt.Errorf("listing meetings: %w", err)
	}

	return outputMeetingList(format, meetings)
}

// runMeetingShow executes the meeting show command.
func runMeetingShow(ctx context.Context, deps *MeetingCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, meetingOutputFormat)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	meeting, err := st.GetMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("getting meeting: %w", err)
	}

	speakers, err := st.ListSpeakers(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("listing speakers: %w", err)
	}

	detail := &meetingDetail{Meeting: *meeting, Speakers: speakers}

	// The job log is the only place the failure diagnostic lives.
	if meeting.Status == store.StatusFailed {
		svc := deps.NewService(st, cfg, logger, nil)
		if entry, err := svc.LastFailure(meetingID); err == nil && entry != nil {
			detail.Failure = failureFromEntry(entry)
		}
	}

	return outputMeeting(format, detail)
}

// runMeetingRename executes the meeting rename command.
func runMeetingRename(ctx context.Context, deps *MeetingCommandDeps, meetingID, name string) error {
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

	if err := st.RenameMeeting(ctx, meetingID, name); err != nil {
		return fmt.Errorf("renaming meeting: %w", err)
	}

	fmt.Printf("Renamed meeting %s to %q.\n", meetingID, name)
	return nil
}

// runMeetingStart executes the meeting start command.
func runMeetingStart(ctx context.Context, deps *MeetingCommandDeps, meetingID string) error {
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

	if err := st.StartMeeting(ctx, meetingID); err != nil {
		return fmt.Errorf("starting meeting: %w", err)
	}

	fmt.Printf("Meeting %s started.\n", meetingID)
	return nil
}

// runMeetingEnd executes the meeting end command.
func runMeetingEnd(ctx context.Context, deps *MeetingCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, meetingOutputFormat)
	if err != nil {
		return err
	}

	audioPath := meetingAudioPath
	if audioPath != "" {
		// Stored absolute so the watcher's dedupe matches later drops of
		// the same file.
		if audioPath, err = filepath.Abs(audioPath); err != nil {
			return fmt.Errorf("resolving audio path: %w", err)
		}
	}

	logger := newLogger(cfg)
	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	svc := deps.NewService(st, cfg, logger, nil)

	meeting, err := svc.EndMeeting(ctx, meetingID, audioPath, engineOverrides())
	if err != nil {
		return fmt.Errorf("ending meeting: %w", err)
	}

	if meeting.Status == store.StatusFailed && audioPath == "" {
		fmt.Println("Meeting ended without a recording; nothing to process.")
	} else {
		drainJobs(ctx, svc, logger)
		if meeting, err = st.GetMeeting(ctx, meetingID); err != nil {
			return fmt.Errorf("getting meeting: %w", err)
		}
	}

	return showMeetingOutcome(ctx, st, svc, format, meeting)
}

// runMeetingReprocess executes the meeting reprocess command.
func runMeetingReprocess(ctx context.Context, deps *MeetingCommandDeps, meetingID string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, meetingOutputFormat)
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

	if _, err := svc.Reprocess(ctx, meetingID, engineOverrides()); err != nil {
		return fmt.Errorf("reprocessing meeting: %w", err)
	}

	drainJobs(ctx, svc, logger)

	meeting, err := st.GetMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("getting meeting: %w", err)
	}

	return showMeetingOutcome(ctx, st, svc, format, meeting)
}

// runMeetingIngest executes the meeting ingest command.
func runMeetingIngest(ctx context.Context, deps *MeetingCommandDeps, audioPath string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	deps.Config = cfg

	format, err := resolveOutputFormat(cfg, meetingOutputFormat)
	if err != nil {
		return err
	}

	if audioPath, err = filepath.Abs(audioPath); err != nil {
		return fmt.Errorf("resolving audio path: %w", err)
	}

	logger := newLogger(cfg)
	st, err := deps.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	svc := deps.NewService(st, cfg, logger, nil)

	meeting, err := svc.Ingest(ctx, meetingIngestName, audioPath, meetingSpeakers, engineOverrides())
	if err != nil {
		return fmt.Errorf("ingesting recording: %w", err)
	}

	drainJobs(ctx, svc, logger)

	if meeting, err = st.GetMeeting(ctx, meeting.ID); err != nil {
		return fmt.Errorf("getting meeting: %w", err)
	}

	return showMeetingOutcome(ctx, st, svc, format, meeting)
}

// showMeetingOutcome prints the meeting after a job-triggering command, with
// the roster and, on failure, the job log's diagnostic.
func showMeetingOutcome(ctx context.Context, st store.Store, svc *diarize.Service, format config.OutputFormat, meeting *store.Meeting) error {
	speakers, err := st.ListSpeakers(ctx, meeting.ID)
	if err != nil {
		return fmt.Errorf("listing speakers: %w", err)
	}

	detail := &meetingDetail{Meeting: *meeting, Speakers: speakers}
	if meeting.Status == store.StatusFailed {
		if entry, err := svc.LastFailure(meeting.ID); err == nil && entry != nil {
			detail.Failure = failureFromEntry(entry)
		}
	}

	return outputMeeting(format, detail)
}

// meetingDetail is the full view one meeting commands print.
type meetingDetail struct {
	store.Meeting `yaml:",inline"`
	Speakers      []*store.Speaker `json:"speakers" yaml:"speakers"`
	Failure       *failureDetail   `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// failureDetail is the job log's last error, decorated from the code
// registry for display.
type failureDetail struct {
	Code        string    `json:"code" yaml:"code"`
	Description string    `json:"description" yaml:"description"`
	Diagnostic  string    `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
	Action      string    `json:"action" yaml:"action"`
	At          time.Time `json:"at" yaml:"at"`
}

// failureFromEntry decorates a job log error entry with the code registry's
// description and suggested action.
func failureFromEntry(entry *logging.LogEntry) *failureDetail {
	code := mberrors.ErrorCode(entry.Fields["code"])
	return &failureDetail{
		Code:        string(code),
		Description: mberrors.GetDescription(code),
		Diagnostic:  entry.Fields["diagnostic"],
		Action:      mberrors.GetSuggestedAction(code),
		At:          entry.Timestamp,
	}
}

// outputMeeting formats and outputs one meeting's detail view.
func outputMeeting(format config.OutputFormat, detail *meetingDetail) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(detail)
	case config.OutputFormatYAML:
		return outputYAML(detail)
	default:
		return outputMeetingText(detail)
	}
}

// outputMeetingText formats one meeting for terminal display.
func outputMeetingText(detail *meetingDetail) error {
	m := detail.Meeting
	fmt.Printf("Meeting: %s\n", m.Name)
	fmt.Printf("  ID:      %s\n", m.ID)
	fmt.Printf("  Status:  %s\n", statusColor(m.Status))
	if m.AudioPath != "" {
		fmt.Printf("  Audio:   %s\n", m.AudioPath)
	}
	fmt.Printf("  Created: %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if m.StartedAt != nil {
		fmt.Printf("  Started: %s\n", formatTimePtr(m.StartedAt))
	}
	if m.EndedAt != nil {
		fmt.Printf("  Ended:   %s\n", formatTimePtr(m.EndedAt))
	}

	if len(detail.Speakers) > 0 {
		fmt.Printf("\nSpeakers (%d):\n", len(detail.Speakers))
		fmt.Println("  LABEL              NAME")
		fmt.Println("  -----              ----")
		for _, sp := range detail.Speakers {
			fmt.Printf("  %-18s %s\n", sp.Label, sp.DisplayName)
		}
	}

	if f := detail.Failure; f != nil {
		fmt.Printf("\n\033[31mLast failure (%s):\033[0m %s\n", f.Code, f.Description)
		if f.Diagnostic != "" {
			fmt.Printf("  Diagnostic: %s\n", truncateString(f.Diagnostic, 400))
		}
		fmt.Printf("  Suggested:  %s\n", f.Action)
	}

	fmt.Println()
	return nil
}

// outputMeetingList formats and outputs the meeting list.
func outputMeetingList(format config.OutputFormat, meetings []*store.Meeting) error {
	switch format {
	case config.OutputFormatJSON:
		return outputJSON(map[string]interface{}{
			"meetings": meetings,
			"count":    len(meetings),
		})
	case config.OutputFormatYAML:
		return outputYAML(map[string]interface{}{
			"meetings": meetings,
			"count":    len(meetings),
		})
	default:
		return outputMeetingListText(meetings)
	}
}

// outputMeetingListText formats the meeting list for terminal display.
func outputMeetingListText(meetings []*store.Meeting) error {
	if len(meetings) == 0 {
		fmt.Println("No meetings found.")
		return nil
	}

	fmt.Printf("Meetings (%d):\n\n", len(meetings))
	fmt.Println("  ID                                   NAME                            STATUS      CREATED")
	fmt.Println("  --                                   ----                            ------      -------")

	for _, m := range meetings {
		fmt.Printf("  %-36s %-31s %-19s %s\n",
			m.ID,
			truncateString(m.Name, 31),
			statusColor(m.Status),
			m.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	fmt.Println()
	return nil
}
