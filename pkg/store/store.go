// Package store defines the persistence contract for meetings, speakers, and
// segments, plus the model types shared by its backends. A single Store is
// constructed at startup and passed explicitly to every component that needs
// persistence; there is no package-level singleton.
package store

import (
	"context"
	"fmt"
	"time"

	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
)

// Status is a meeting's lifecycle state.
type Status string

const (
	// StatusPending is the initial state, set at creation.
	StatusPending Status = "pending"
	// StatusProcessing means a diarization job has been triggered and its
	// outcome has not been recorded yet.
	StatusProcessing Status = "processing"
	// StatusDone means the last job's result was extracted and persisted.
	StatusDone Status = "done"
	// StatusFailed means the last job failed, or the meeting was ended
	// without audio. Terminal but not final: a reprocess moves the meeting
	// back to processing.
	StatusFailed Status = "failed"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusDone, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", mberrors.ErrValidation, s)
}

// IsTerminal reports whether the status is a job resolution state.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Meeting is a recorded meeting and its processing lifecycle.
type Meeting struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Status    Status     `json:"status" yaml:"status"`
	AudioPath string     `json:"audioPath,omitempty" yaml:"audio_path,omitempty"`
	CreatedAt time.Time  `json:"createdAt" yaml:"created_at"`
	StartedAt *time.Time `json:"startedAt,omitempty" yaml:"started_at,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty" yaml:"ended_at,omitempty"`
}

// Speaker is one diarized voice in a meeting. The label is assigned once
// (by the engine or by ordinal default) and never changes; renames touch
// only the display name.
type Speaker struct {
	ID          string `json:"id" yaml:"id"`
	MeetingID   string `json:"meetingId" yaml:"meeting_id"`
	Label       string `json:"label" yaml:"label"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Position    int    `json:"position" yaml:"position"`
}

// Segment is one speaker-attributed transcript span. SpeakerID is empty for
// unattributable audio; it is never a dangling reference.
type Segment struct {
	ID         string `json:"id" yaml:"id"`
	MeetingID  string `json:"meetingId" yaml:"meeting_id"`
	SpeakerID  string `json:"speakerId,omitempty" yaml:"speaker_id,omitempty"`
	StartMs    int64  `json:"startMs" yaml:"start_ms"`
	EndMs      int64  `json:"endMs" yaml:"end_ms"`
	Transcript string `json:"transcript" yaml:"transcript"`
}

// DurationMs returns the segment length in milliseconds.
func (s *Segment) DurationMs() int64 {
	return s.EndMs - s.StartMs
}

// SpeakerStat is a per-speaker aggregate derived from persisted segments.
type SpeakerStat struct {
	SpeakerID   string `json:"speakerId" yaml:"speaker_id"`
	Label       string `json:"label" yaml:"label"`
	DisplayName string `json:"displayName" yaml:"display_name"`
	Segments    int    `json:"segments" yaml:"segments"`
	DurationMs  int64  `json:"durationMs" yaml:"duration_ms"`
}

// SpeakerSeed describes one speaker for a roster reset.
type SpeakerSeed struct {
	Label       string
	DisplayName string
}

// SegmentSeed describes one segment for a wholesale replacement.
type SegmentSeed struct {
	SpeakerID  string
	StartMs    int64
	EndMs      int64
	Transcript string
}

// DefaultSpeakerCount is the roster size for a meeting created without an
// explicit speaker count.
const DefaultSpeakerCount = 2

// SpeakerLabel returns the default label for the nth speaker (1-based).
func SpeakerLabel(n int) string {
	return fmt.Sprintf("Speaker %d", n)
}

// DefaultSeeds builds count default speaker seeds, labeled by ordinal.
// A count below one falls back to a single speaker.
func DefaultSeeds(count int) []SpeakerSeed {
	if count < 1 {
		count = 1
	}
	seeds := make([]SpeakerSeed, count)
	for i := range seeds {
		label := SpeakerLabel(i + 1)
		seeds[i] = SpeakerSeed{Label: label, DisplayName: label}
	}
	return seeds
}

// NextOrdinalLabel returns the first "Speaker N" label not already taken.
func NextOrdinalLabel(existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, label := range existing {
		taken[label] = true
	}
	for n := len(existing) + 1; ; n++ {
		if label := SpeakerLabel(n); !taken[label] {
			return label
		}
	}
}

// Store is the persistence contract. Every multi-row mutation (meeting
// creation with its roster, roster reset, segment replacement) runs in a
// single transaction.
type Store interface {
	// CreateMeeting inserts a meeting in pending state with a default
	// roster of speakerCount ordinal speakers (DefaultSpeakerCount when
	// speakerCount < 1).
	CreateMeeting(ctx context.Context, name string, speakerCount int) (*Meeting, error)
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
	// GetMeetingByAudioPath returns the most recently created meeting whose
	// stored audio path matches, or ErrNotFound.
	GetMeetingByAudioPath(ctx context.Context, audioPath string) (*Meeting, error)
	ListMeetings(ctx context.Context) ([]*Meeting, error)
	RenameMeeting(ctx context.Context, id, name string) error
	// StartMeeting records the start timestamp; the status stays pending.
	StartMeeting(ctx context.Context, id string) error
	// EndMeeting records the end timestamp and audio path and moves the
	// meeting to processing. With an empty audio path there is nothing to
	// process and the meeting lands in failed instead, in the same write.
	EndMeeting(ctx context.Context, id, audioPath string) error
	UpdateMeetingStatus(ctx context.Context, id string, status Status) error

	ListSpeakers(ctx context.Context, meetingID string) ([]*Speaker, error)
	// AddSpeaker appends one speaker with the next free ordinal label.
	AddSpeaker(ctx context.Context, meetingID, displayName string) (*Speaker, error)
	// RenameSpeaker updates the display name of the speaker with the given
	// stable label. The label itself is immutable.
	RenameSpeaker(ctx context.Context, meetingID, label, displayName string) error
	// ResetSpeakers deletes the meeting's roster (setting segment references
	// to null) and inserts one speaker per seed. An empty seed list falls
	// back to a single default speaker. Returns the fresh roster in order.
	ResetSpeakers(ctx context.Context, meetingID string, seeds []SpeakerSeed) ([]*Speaker, error)
	// ResetSpeakerCount is ResetSpeakers with count ordinal defaults.
	ResetSpeakerCount(ctx context.Context, meetingID string, count int) ([]*Speaker, error)

	// ReplaceSegments deletes the meeting's segments and inserts the seeds,
	// returning the number inserted.
	ReplaceSegments(ctx context.Context, meetingID string, seeds []SegmentSeed) (int, error)
	ListSegments(ctx context.Context, meetingID string) ([]*Segment, error)
	ListSpeakerStats(ctx context.Context, meetingID string) ([]*SpeakerStat, error)

	Close()
}
