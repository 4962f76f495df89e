package diarize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
	"github.com/meetingbuddy/mbud/pkg/export"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/observability"
	"github.com/meetingbuddy/mbud/pkg/store"
)

// JobLogFile is the per-meeting job log, written into the meeting's output
// directory alongside the engine's artifacts.
const JobLogFile = "job.log"

// Service orchestrates diarization jobs. Triggering calls return as soon as
// the meeting is moved to processing; the job itself runs in the background
// and its outcome is observed by reading meeting state later.
type Service struct {
	store    store.Store
	launcher Launcher
	runner   *Runner
	logger   logging.Logger
	metrics  *Metrics
	tracer   *observability.Tracer

	dataDir string
	engine  Options
	timeout time.Duration
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// DataDir is the root under which per-meeting output directories live.
	DataDir string

	// Engine holds the default engine options; per-call overrides beat
	// them.
	Engine Options

	// Timeout bounds one engine run; zero leaves the run unbounded.
	Timeout time.Duration

	// Logger defaults to a no-op logger.
	Logger logging.Logger

	// Metrics may be nil to record nothing.
	Metrics *Metrics
}

// NewService creates the job orchestrator. A nil runner gets a fresh one.
func NewService(st store.Store, launcher Launcher, runner *Runner, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if runner == nil {
		runner = NewRunner(logger)
	}

	return &Service{
		store:    st,
		launcher: launcher,
		runner:   runner,
		logger:   logger,
		metrics:  cfg.Metrics,
		tracer:   observability.NewTracer(),
		dataDir:  cfg.DataDir,
		engine:   cfg.Engine,
		timeout:  cfg.Timeout,
	}
}

// MeetingDir returns the output directory for one meeting's artifacts.
func (s *Service) MeetingDir(meetingID string) string {
	return filepath.Join(s.dataDir, "meetings", meetingID)
}

// ActiveJobs returns the number of jobs currently running.
func (s *Service) ActiveJobs() int64 {
	return s.runner.Active()
}

// Drain waits for in-flight jobs to finish or the context to expire.
func (s *Service) Drain(ctx context.Context) error {
	return s.runner.Drain(ctx)
}

// EndMeeting records the recording end and starts a diarization job for the
// audio. With an empty audio path there is nothing to process: the store
// moves the meeting straight to failed and no job is submitted.
func (s *Service) EndMeeting(ctx context.Context, meetingID, audioPath string, over Overrides) (*store.Meeting, error) {
	if err := s.store.EndMeeting(ctx, meetingID, audioPath); err != nil {
		return nil, err
	}

	if audioPath == "" {
		s.logger.Warn("meeting ended without audio, nothing to process",
			logging.F("meeting_id", meetingID))
	} else {
		s.submitJob(meetingID, audioPath, over)
	}

	return s.store.GetMeeting(ctx, meetingID)
}

// Reprocess launches a fresh job reusing the meeting's stored audio path.
// Works from any state, including done and failed; an overlapping job for
// the same meeting is allowed to race, last resolution wins.
func (s *Service) Reprocess(ctx context.Context, meetingID string, over Overrides) (*store.Meeting, error) {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.AudioPath == "" {
		return nil, mberrors.NewJobError(mberrors.ErrAudioNotFound, mberrors.StageValidate, meetingID,
			"meeting has no stored audio path to reprocess")
	}

	if err := s.store.UpdateMeetingStatus(ctx, meetingID, store.StatusProcessing); err != nil {
		return nil, err
	}

	s.submitJob(meetingID, meeting.AudioPath, over)

	meeting.Status = store.StatusProcessing
	return meeting, nil
}

// Ingest creates a meeting around an existing audio file and processes it in
// one step. An empty name falls back to the audio file's base name.
func (s *Service) Ingest(ctx context.Context, name, audioPath string, speakerCount int, over Overrides) (*store.Meeting, error) {
	if name == "" {
		base := filepath.Base(audioPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	meeting, err := s.store.CreateMeeting(ctx, name, speakerCount)
	if err != nil {
		return nil, err
	}

	return s.EndMeeting(ctx, meeting.ID, audioPath, over)
}

// ApplyNames rewrites the meeting's export files so renamed speakers show
// their display names. Touches only files, never the database; per-file
// failures are collected in the result rather than aborting the pass.
func (s *Service) ApplyNames(ctx context.Context, meetingID string) (export.SyncResult, error) {
	ctx, span := s.tracer.StartExportSpan(ctx, meetingID)
	defer span.End()
	helper := observability.NewSpanHelper(span)

	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		helper.SetError(err, string(mberrors.ErrPersistenceError))
		return export.SyncResult{}, err
	}

	speakers, err := s.store.ListSpeakers(ctx, meetingID)
	if err != nil {
		helper.SetError(err, string(mberrors.ErrPersistenceError))
		return export.SyncResult{}, err
	}

	names := export.BuildNameMapping(speakerValues(speakers))
	result := export.NewSyncer(s.logger).Sync(s.MeetingDir(meetingID), names)

	helper.SetFilesChanged(result.Changed())
	helper.SetSuccess()
	return result, nil
}

// WriteExports regenerates the meeting's transcript, subtitle, and CSV files
// from the persisted speakers and segments, using current display names.
func (s *Service) WriteExports(ctx context.Context, meetingID string) ([]string, error) {
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}

	speakers, err := s.store.ListSpeakers(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	segments, err := s.store.ListSegments(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	return export.WriteArtifacts(s.MeetingDir(meetingID), speakerValues(speakers), segmentValues(segments))
}

// LastFailure returns the most recent error entry from the meeting's job
// log, or nil when the log holds none.
func (s *Service) LastFailure(meetingID string) (*logging.LogEntry, error) {
	entries, err := logging.ReadEntries(filepath.Join(s.MeetingDir(meetingID), JobLogFile))
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Level == "error" {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// submitJob fires the job on its own goroutine. The job outlives the
// triggering call, so it runs on a fresh context.
func (s *Service) submitJob(meetingID, audioPath string, over Overrides) {
	opts := over.Apply(s.engine)
	s.runner.Submit(meetingID, func() {
		s.runJob(context.Background(), meetingID, audioPath, opts)
	})
}

func (s *Service) runJob(ctx context.Context, meetingID, audioPath string, opts Options) {
	start := time.Now()
	s.metrics.JobStarted()

	outDir := s.MeetingDir(meetingID)

	ctx, span := s.tracer.StartMeetingSpan(ctx, meetingID, audioPath)
	defer span.End()
	helper := observability.NewSpanHelper(span)
	helper.SetMeetingInfo(meetingID, audioPath, outDir)

	logger := s.logger.With(logging.F("meeting_id", meetingID))
	if sink := s.openJobSink(outDir); sink != nil {
		defer sink.Close()
		logger = logger.WithSink(sink)
	}

	logger.Info("diarization job started", logging.F("audio", audioPath))

	if err := s.executeJob(ctx, logger, helper, meetingID, audioPath, outDir, opts); err != nil {
		s.failJob(ctx, logger, helper, meetingID, err, time.Since(start))
		return
	}

	duration := time.Since(start)
	helper.SetSuccess()
	s.metrics.JobSucceeded(duration)
	logger.Info("diarization job done", logging.F("duration", duration))
}

// openJobSink opens the per-meeting job log. Any failure degrades to
// console-only logging rather than blocking the job.
func (s *Service) openJobSink(outDir string) *logging.FileSink {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		s.logger.Warn("cannot create job output directory",
			logging.F("dir", outDir), logging.Err(err))
		return nil
	}

	sink, err := logging.NewFileSink(logging.FileSinkConfig{
		Path: filepath.Join(outDir, JobLogFile),
	})
	if err != nil {
		s.logger.Warn("job log unavailable",
			logging.F("dir", outDir), logging.Err(err))
		return nil
	}
	return sink
}

func (s *Service) executeJob(ctx context.Context, logger logging.Logger, helper *observability.SpanHelper, meetingID, audioPath, outDir string, opts Options) error {
	// The timeout bounds only the engine run. Persistence stays on the
	// parent context so a finished result is always written.
	launchCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		launchCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stageCtx, launchSpan := s.tracer.StartStageSpan(launchCtx, mberrors.StageLaunch)
	result, err := s.launcher.Launch(stageCtx, Request{
		MeetingID: meetingID,
		AudioPath: audioPath,
		OutDir:    outDir,
		Options:   opts,
	})
	launchSpan.End()
	if err != nil {
		return err
	}

	_, resolveSpan := s.tracer.StartStageSpan(ctx, mberrors.StageResolve)
	payload, source, err := ResolvePayload(result.Stdout, result.OutDir)
	resolveSpan.End()
	if err != nil {
		return mberrors.Classify(err, mberrors.StageResolve, meetingID)
	}
	helper.SetPayloadSource(source)

	persistCtx, persistSpan := s.tracer.StartStageSpan(ctx, mberrors.StagePersist)
	speakerCount, segmentCount, err := s.applyResult(persistCtx, meetingID, payload)
	persistSpan.End()
	if err != nil {
		return mberrors.Classify(err, mberrors.StagePersist, meetingID)
	}

	helper.SetResultCounts(segmentCount, speakerCount)
	if payload.DurationMs != nil {
		helper.SetDuration(*payload.DurationMs)
	}
	logger.Info("result persisted",
		logging.F("speakers", speakerCount),
		logging.F("segments", segmentCount),
		logging.F("source", source),
	)

	if err := s.store.UpdateMeetingStatus(ctx, meetingID, store.StatusDone); err != nil {
		return mberrors.Classify(err, mberrors.StagePersist, meetingID)
	}
	return nil
}

// applyResult reconciles the payload into the store: the roster is reset to
// the reported speakers, then all segments are replaced using a label lookup
// built from the fresh roster. Segments naming an unknown speaker keep a
// null reference rather than a dangling one.
func (s *Service) applyResult(ctx context.Context, meetingID string, payload *Payload) (speakerCount, segmentCount int, err error) {
	seeds := make([]store.SpeakerSeed, 0, len(payload.Speakers))
	for _, sp := range payload.Speakers {
		if sp.Label == "" {
			continue
		}
		seeds = append(seeds, store.SpeakerSeed{Label: sp.Label, DisplayName: sp.DisplayName})
	}

	roster, err := s.store.ResetSpeakers(ctx, meetingID, seeds)
	if err != nil {
		return 0, 0, err
	}

	byLabel := make(map[string]string, len(roster))
	for _, sp := range roster {
		byLabel[sp.Label] = sp.ID
	}

	segSeeds := make([]store.SegmentSeed, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		startMs, endMs := seg.Timing()
		segSeeds = append(segSeeds, store.SegmentSeed{
			SpeakerID:  byLabel[seg.ResolvedLabel()],
			StartMs:    startMs,
			EndMs:      endMs,
			Transcript: seg.ResolvedText(),
		})
	}

	inserted, err := s.store.ReplaceSegments(ctx, meetingID, segSeeds)
	if err != nil {
		return 0, 0, err
	}
	return len(roster), inserted, nil
}

func (s *Service) failJob(ctx context.Context, logger logging.Logger, helper *observability.SpanHelper, meetingID string, cause error, duration time.Duration) {
	jobErr := mberrors.Classify(cause, mberrors.StageRun, meetingID)

	if err := s.store.UpdateMeetingStatus(ctx, meetingID, store.StatusFailed); err != nil {
		logger.Error("recording failed status", logging.Err(err))
	}

	fields := []logging.Field{
		logging.F("code", string(jobErr.Code)),
		logging.F("stage", jobErr.Stage),
		logging.Err(jobErr),
	}
	if jobErr.Diagnostic != "" {
		fields = append(fields, logging.F("diagnostic", jobErr.Diagnostic))
	}
	logger.Error("diarization job failed", fields...)

	helper.SetError(jobErr, string(jobErr.Code))
	s.metrics.JobFailed(string(jobErr.Code), duration)
}

func speakerValues(rows []*store.Speaker) []store.Speaker {
	out := make([]store.Speaker, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out
}

func segmentValues(rows []*store.Segment) []store.Segment {
	out := make([]store.Segment, len(rows))
	for i, r := range rows {
		out[i] = *r
	}
	return out
}
