package diarize

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
	"github.com/meetingbuddy/mbud/pkg/logging"
)

// Options are the engine settings for one job. Zero values are omitted from
// the invocation so the engine applies its own defaults.
type Options struct {
	Device           string
	WhisperModel     string
	BatchSize        int
	Language         string
	DisableStem      bool
	SuppressNumerals bool
	MinSpeakers      int
	MaxSpeakers      int
	LogLevel         string
}

// Overrides are per-call engine settings that beat the service-wide
// defaults. The boolean toggles are pointers so an explicit false can
// override a default true.
type Overrides struct {
	Device           string
	WhisperModel     string
	BatchSize        int
	Language         string
	DisableStem      *bool
	SuppressNumerals *bool
	MinSpeakers      int
	MaxSpeakers      int
	LogLevel         string
}

// Apply merges the overrides onto a set of base options and returns the
// result. Unset override fields leave the base value in place.
func (o Overrides) Apply(base Options) Options {
	if o.Device != "" {
		base.Device = o.Device
	}
	if o.WhisperModel != "" {
		base.WhisperModel = o.WhisperModel
	}
	if o.BatchSize != 0 {
		base.BatchSize = o.BatchSize
	}
	if o.Language != "" {
		base.Language = o.Language
	}
	if o.DisableStem != nil {
		base.DisableStem = *o.DisableStem
	}
	if o.SuppressNumerals != nil {
		base.SuppressNumerals = *o.SuppressNumerals
	}
	if o.MinSpeakers != 0 {
		base.MinSpeakers = o.MinSpeakers
	}
	if o.MaxSpeakers != 0 {
		base.MaxSpeakers = o.MaxSpeakers
	}
	if o.LogLevel != "" {
		base.LogLevel = o.LogLevel
	}
	return base
}

// Request describes one engine run.
type Request struct {
	MeetingID string
	AudioPath string
	OutDir    string
	Options   Options
}

// LaunchResult is the raw outcome of a successful engine run: the captured
// streams and the directory the engine wrote its artifacts into.
type LaunchResult struct {
	Stdout string
	Stderr string
	OutDir string
}

// Launcher starts one engine run and waits for it to exit. A zero exit code
// is the only success; every failure comes back as a classified job error.
type Launcher interface {
	Launch(ctx context.Context, req Request) (*LaunchResult, error)
}

// EngineLauncher runs the diarization engine as a child process with
// buffered output streams. The buffering is unbounded, which is fine for
// engine-sized output but worth knowing.
type EngineLauncher struct {
	python string
	script string
	logger logging.Logger
}

// NewEngineLauncher creates a launcher for the given interpreter and engine
// script. An empty interpreter falls back to python3.
func NewEngineLauncher(python, script string, logger logging.Logger) *EngineLauncher {
	if python == "" {
		python = "python3"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &EngineLauncher{
		python: python,
		script: script,
		logger: logger,
	}
}

// Launch validates the audio file, prepares the output directory, and runs
// the engine to completion.
func (l *EngineLauncher) Launch(ctx context.Context, req Request) (*LaunchResult, error) {
	if _, err := os.Stat(req.AudioPath); err != nil {
		return nil, &mberrors.JobError{
			Code:      mberrors.ErrAudioNotFound,
			Stage:     mberrors.StageValidate,
			MeetingID: req.MeetingID,
			Message:   fmt.Sprintf("audio file not found: %s", req.AudioPath),
			Cause:     err,
		}
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return nil, &mberrors.JobError{
			Code:      mberrors.ErrLaunchFailure,
			Stage:     mberrors.StageLaunch,
			MeetingID: req.MeetingID,
			Message:   fmt.Sprintf("creating output directory %s: %v", req.OutDir, err),
			Cause:     err,
		}
	}

	args := buildEngineArgs(l.script, req)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, l.python, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.logger.Debug("launching diarization engine",
		logging.F("meeting_id", req.MeetingID),
		logging.F("audio", req.AudioPath),
		logging.F("out", req.OutDir),
	)

	if err := cmd.Start(); err != nil {
		return nil, &mberrors.JobError{
			Code:      mberrors.ErrLaunchFailure,
			Stage:     mberrors.StageLaunch,
			MeetingID: req.MeetingID,
			Message:   fmt.Sprintf("starting engine process: %v", err),
			Cause:     err,
		}
	}

	if err := cmd.Wait(); err != nil {
		// The error stream carries the useful diagnostic; fall back to
		// whatever the engine printed on stdout.
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = strings.TrimSpace(stdout.String())
		}
		return nil, &mberrors.JobError{
			Code:       mberrors.ErrProcessFailure,
			Stage:      mberrors.StageRun,
			MeetingID:  req.MeetingID,
			Message:    fmt.Sprintf("engine exited with error: %v", err),
			Diagnostic: diag,
			Cause:      err,
		}
	}

	return &LaunchResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
		OutDir: req.OutDir,
	}, nil
}

// buildEngineArgs assembles the engine's argument list in a fixed order so
// two identical requests produce identical invocations.
func buildEngineArgs(script string, req Request) []string {
	args := []string{
		script,
		"--meeting", req.MeetingID,
		"--out", req.OutDir,
		"--audio", req.AudioPath,
	}

	opts := req.Options
	if opts.Device != "" {
		args = append(args, "--device", opts.Device)
	}
	if opts.WhisperModel != "" {
		args = append(args, "--whisper-model", opts.WhisperModel)
	}
	if opts.BatchSize != 0 {
		args = append(args, "--batch-size", strconv.Itoa(opts.BatchSize))
	}
	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}
	if opts.DisableStem {
		args = append(args, "--no-stem")
	}
	if opts.SuppressNumerals {
		args = append(args, "--suppress-numerals")
	}
	if opts.MinSpeakers != 0 {
		args = append(args, "--min-speakers", strconv.Itoa(opts.MinSpeakers))
	}
	if opts.MaxSpeakers != 0 {
		args = append(args, "--max-speakers", strconv.Itoa(opts.MaxSpeakers))
	}
	if opts.LogLevel != "" {
		args = append(args, "--log-level", opts.LogLevel)
	}

	return args
}
