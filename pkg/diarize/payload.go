// Package diarize runs the external diarization engine for a meeting and
// turns its result into persisted speakers and segments. It owns the job
// pipeline end to end: launching the engine process, extracting the result
// payload, reconciling it into the store, and recording the meeting's final
// status.
package diarize

import (
	"math"
)

// Payload is the structured result the engine reports for one meeting. The
// engine may emit it as the last line of standard output or write it as a
// file into the job's output directory; either source decodes into this
// shape.
type Payload struct {
	Status      string `json:"status,omitempty"`
	MeetingID   string `json:"meetingId,omitempty"`
	GeneratedAt string `json:"generatedAt,omitempty"`

	Device       string `json:"device,omitempty"`
	WhisperModel string `json:"whisperModel,omitempty"`
	Language     string `json:"language,omitempty"`

	// DurationMs is the audio length; a pointer so absent and null both
	// read as unknown.
	DurationMs *int64 `json:"durationMs,omitempty"`

	// Error carries the engine's own failure message when Status is
	// "failed". The exit code, not this field, decides the job outcome.
	Error string `json:"error,omitempty"`

	Speakers []PayloadSpeaker `json:"speakers"`
	Segments []PayloadSegment `json:"segments"`
}

// PayloadSpeaker is one diarized voice as the engine reports it.
type PayloadSpeaker struct {
	Label       string `json:"label"`
	DisplayName string `json:"displayName,omitempty"`
}

// PayloadSegment is one transcript span as the engine reports it. Engines
// differ in field naming, so each attribute accepts two spellings; the
// Resolved helpers pick whichever is set.
type PayloadSegment struct {
	SpeakerLabel string `json:"speakerLabel,omitempty"`
	Speaker      string `json:"speaker,omitempty"`

	// StartMs/EndMs are integer milliseconds; Start/End are float seconds.
	// Millisecond fields win when both spellings appear.
	StartMs *int64   `json:"startMs,omitempty"`
	Start   *float64 `json:"start,omitempty"`
	EndMs   *int64   `json:"endMs,omitempty"`
	End     *float64 `json:"end,omitempty"`

	Transcript string `json:"transcript,omitempty"`
	Text       string `json:"text,omitempty"`
}

// ResolvedLabel returns the segment's speaker label under either spelling,
// or "" for unattributed audio.
func (s *PayloadSegment) ResolvedLabel() string {
	if s.SpeakerLabel != "" {
		return s.SpeakerLabel
	}
	return s.Speaker
}

// ResolvedText returns the segment's transcript under either spelling.
func (s *PayloadSegment) ResolvedText() string {
	if s.Transcript != "" {
		return s.Transcript
	}
	return s.Text
}

// Timing returns the segment's start and end in milliseconds. Seconds-based
// fields are rounded to the nearest millisecond. A missing bound reads as
// zero, and an end before the start is raised to the start so the span is
// never negative.
func (s *PayloadSegment) Timing() (startMs, endMs int64) {
	startMs = pickMs(s.StartMs, s.Start)
	endMs = pickMs(s.EndMs, s.End)
	if endMs < startMs {
		endMs = startMs
	}
	return startMs, endMs
}

func pickMs(ms *int64, seconds *float64) int64 {
	if ms != nil {
		return *ms
	}
	if seconds != nil {
		return int64(math.Round(*seconds * 1000))
	}
	return 0
}
