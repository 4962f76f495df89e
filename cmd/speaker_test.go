package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetingbuddy/mbud/config"
	"github.com/meetingbuddy/mbud/pkg/diarize"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
	"github.com/meetingbuddy/mbud/pkg/store/sqlite"
)

// newSpeakerDeps wires speaker command deps around a shared store and a stub
// engine launcher.
func newSpeakerDeps(cfg *config.CLIConfig, st store.Store, launcher diarize.Launcher) *SpeakerCommandDeps {
	return &SpeakerCommandDeps{
		Config: cfg,
		LoadConfig: func() (*config.CLIConfig, error) {
			return cfg, nil
		},
		OpenStore: func(ctx context.Context, _ *config.CLIConfig, _ logging.Logger) (store.Store, error) {
			return st, nil
		},
		NewService: func(s store.Store, c *config.CLIConfig, _ logging.Logger, m *diarize.Metrics) *diarize.Service {
			return diarize.NewService(s, launcher, nil, diarize.ServiceConfig{
				DataDir: c.DataDir,
				Engine:  engineOptions(c),
				Timeout: c.Engine.Timeout,
				Metrics: m,
			})
		},
	}
}

// createSpeakerTestDeps creates test dependencies backed by an in-memory
// store and a fresh data directory.
func createSpeakerTestDeps(t *testing.T, launcher diarize.Launcher) (*SpeakerCommandDeps, store.Store, *config.CLIConfig) {
	t.Helper()

	cfg := mockConfig()
	cfg.DataDir = t.TempDir()

	st, err := sqlite.Open(":memory:", logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	shared := noCloseStore{st}
	return newSpeakerDeps(cfg, shared, launcher), shared, cfg
}

func TestNewSpeakerCommand(t *testing.T) {
	cmd := NewSpeakerCommand(nil)
	require.NotNil(t, cmd)

	assert.Equal(t, "speaker", cmd.Name())
	assert.Contains(t, cmd.Aliases, "speakers")
	assert.NotEmpty(t, cmd.Long)

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, name := range []string{"list", "add", "rename", "apply-names"} {
		assert.True(t, subcommands[name], "speaker command should have %q subcommand", name)
	}
}

func TestSpeakerListCommand_Args(t *testing.T) {
	cmd := newSpeakerListCommand(nil)

	assert.Error(t, cmd.Args(cmd, []string{}))
	assert.NoError(t, cmd.Args(cmd, []string{"meeting-id"}))
	assert.Error(t, cmd.Args(cmd, []string{"meeting-id", "extra"}))
}

func TestSpeakerList_Stats(t *testing.T) {
	deps, st, _ := createSpeakerTestDeps(t, okLauncher())
	ctx := context.Background()

	meeting, err := st.CreateMeeting(ctx, "standup", 3)
	require.NoError(t, err)

	speakers, err := st.ListSpeakers(ctx, meeting.ID)
	require.NoError(t, err)
	require.Len(t, speakers, 3)

	_, err = st.ReplaceSegments(ctx, meeting.ID, []store.SegmentSeed{
		{SpeakerID: speakers[0].ID, StartMs: 0, EndMs: 5000, Transcript: "intro"},
		{SpeakerID: speakers[1].ID, StartMs: 5000, EndMs: 70000, Transcript: "status"},
	})
	require.NoError(t, err)

	oldFormat := speakerOutputFormat
	speakerOutputFormat = ""
	defer func() { speakerOutputFormat = oldFormat }()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err = runSpeakerList(ctx, deps, meeting.ID)

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.Contains(t, output, "Speakers (3):")
	assert.Contains(t, output, "0:05")
	assert.Contains(t, output, "1:05")
	// Speakers without segments still appear, with zero talk time.
	assert.Contains(t, output, "Speaker 3")
	assert.Contains(t, output, "0:00")
}

func TestSpeakerList_UnknownMeeting(t *testing.T) {
	deps, _, _ := createSpeakerTestDeps(t, okLauncher())

	oldFormat := speakerOutputFormat
	speakerOutputFormat = ""
	defer func() { speakerOutputFormat = oldFormat }()

	err := runSpeakerList(context.Background(), deps, "no-such-meeting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "getting meeting")
}

func TestSpeakerAdd(t *testing.T) {
	deps, st, _ := createSpeakerTestDeps(t, okLauncher())
	ctx := context.Background()

	meeting, err := st.CreateMeeting(ctx, "standup", 0)
	require.NoError(t, err)

	oldName := speakerName
	speakerName = ""
	defer func() { speakerName = oldName }()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err = runSpeakerAdd(ctx, deps, meeting.ID)

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	assert.Contains(t, buf.String(), "Added Speaker 3")

	speakers, err := st.ListSpeakers(ctx, meeting.ID)
	require.NoError(t, err)
	require.Len(t, speakers, 3)
	assert.Equal(t, "Speaker 3", speakers[2].Label)
}

func TestSpeakerAdd_WithDisplayName(t *testing.T) {
	deps, st, _ := createSpeakerTestDeps(t, okLauncher())
	ctx := context.Background()

	meeting, err := st.CreateMeeting(ctx, "standup", 0)
	require.NoError(t, err)

	oldName := speakerName
	speakerName = "Guest"
	defer func() { speakerName = oldName }()

	oldStdout := os.Stdout
	_, w, _ := os.Pipe()
	os.Stdout = w

	err = runSpeakerAdd(ctx, deps, meeting.ID)

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	speakers, err := st.ListSpeakers(ctx, meeting.ID)
	require.NoError(t, err)
	require.Len(t, speakers, 3)
	assert.Equal(t, "Speaker 3", speakers[2].Label)
	assert.Equal(t, "Guest", speakers[2].DisplayName)
}

func TestSpeakerRename(t *testing.T) {
	deps, st, _ := createSpeakerTestDeps(t, okLauncher())
	ctx := context.Background()

	meeting, err := st.CreateMeeting(ctx, "standup", 0)
	require.NoError(t, err)

	oldName := speakerName
	speakerName = "Alice"
	defer func() { speakerName = oldName }()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err = runSpeakerRename(ctx, deps, meeting.ID, "Speaker 1")

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()
	assert.Contains(t, output, `Renamed Speaker 1 to "Alice".`)
	assert.Contains(t, output, "apply-names")

	speakers, err := st.ListSpeakers(ctx, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", speakers[0].DisplayName)
	assert.Equal(t, "Speaker 1", speakers[0].Label, "the label never changes")
}

func TestSpeakerRenameCommand_RequiresName(t *testing.T) {
	deps := &SpeakerCommandDeps{
		LoadConfig: func() (*config.CLIConfig, error) {
			t.Fatal("LoadConfig should not be called when flag validation fails")
			return nil, nil
		},
	}

	cmd := NewSpeakerCommand(deps)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"rename", "meeting-id", "Speaker 1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "name" not set`)
}

func TestSpeakerApplyNames(t *testing.T) {
	cfg := mockConfig()
	cfg.DataDir = t.TempDir()

	st, err := sqlite.Open(":memory:", logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	shared := noCloseStore{st}

	ctx := context.Background()
	meeting, err := st.CreateMeeting(ctx, "standup", 0)
	require.NoError(t, err)

	audio := writeRecording(t, filepath.Join(t.TempDir(), "standup.wav"))

	oldAudio := meetingAudioPath
	oldMeetingFormat := meetingOutputFormat
	meetingAudioPath = audio
	meetingOutputFormat = ""
	defer func() { meetingAudioPath = oldAudio; meetingOutputFormat = oldMeetingFormat }()

	oldStdout := os.Stdout
	_, endW, _ := os.Pipe()
	os.Stdout = endW
	err = runMeetingEnd(ctx, newMeetingDeps(cfg, shared, okLauncher()), meeting.ID)
	endW.Close()
	os.Stdout = oldStdout
	require.NoError(t, err)

	// The stub engine writes nothing to the output directory, so generate
	// the export files before renaming.
	_, exportW, _ := os.Pipe()
	os.Stdout = exportW
	err = runExportWrite(ctx, newExportDeps(cfg, shared, okLauncher()), meeting.ID)
	exportW.Close()
	os.Stdout = oldStdout
	require.NoError(t, err)

	require.NoError(t, st.RenameSpeaker(ctx, meeting.ID, "Speaker 1", "Alice"))

	oldFormat := speakerOutputFormat
	speakerOutputFormat = ""
	defer func() { speakerOutputFormat = oldFormat }()

	deps := newSpeakerDeps(cfg, shared, okLauncher())

	r, w, _ := os.Pipe()
	os.Stdout = w
	err = runSpeakerApplyNames(ctx, deps, meeting.ID)
	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.Contains(t, output, "transcript.txt")
	assert.Contains(t, output, "file(s) changed.")

	transcript, err := os.ReadFile(filepath.Join(cfg.MeetingDir(meeting.ID), "transcript.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(transcript), "Alice")
	assert.NotContains(t, string(transcript), "Speaker 1:")
}

func TestSpeakerApplyNames_NothingToDo(t *testing.T) {
	deps, st, _ := createSpeakerTestDeps(t, okLauncher())
	ctx := context.Background()

	meeting, err := st.CreateMeeting(ctx, "standup", 0)
	require.NoError(t, err)

	oldFormat := speakerOutputFormat
	speakerOutputFormat = ""
	defer func() { speakerOutputFormat = oldFormat }()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err = runSpeakerApplyNames(ctx, deps, meeting.ID)

	w.Close()
	os.Stdout = oldStdout

	require.NoError(t, err)

	var buf bytes.Buffer
	buf.ReadFrom(r)
	assert.Contains(t, buf.String(), "nothing to do.")
}

func TestSpeakerApplyNames_UnknownMeeting(t *testing.T) {
	deps, _, _ := createSpeakerTestDeps(t, okLauncher())

	oldFormat := speakerOutputFormat
	speakerOutputFormat = ""
	defer func() { speakerOutputFormat = oldFormat }()

	err := runSpeakerApplyNames(context.Background(), deps, "no-such-meeting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "applying names")
}

func TestDefaultSpeakerDeps(t *testing.T) {
	deps := DefaultSpeakerDeps()
	require.NotNil(t, deps)
	assert.NotNil(t, deps.LoadConfig)
	assert.NotNil(t, deps.OpenStore)
	assert.NotNil(t, deps.NewService)
}
