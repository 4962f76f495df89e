// Package postgres implements the persistence contract on PostgreSQL for
// installs that share one database between machines. Schema management lives
// in pkg/db; run `mbud db migrate` before first use.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps an existing pool. The store takes ownership: Close closes the
// pool.
func New(pool *pgxpool.Pool, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		pool:   pool,
		logger: logger.With(logging.F("component", "store.postgres")),
	}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for health checks and stats collectors.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// CreateMeeting inserts a meeting in pending state together with its default
// roster, in one transaction.
func (s *Store) CreateMeeting(ctx context.Context, name string, speakerCount int) (*store.Meeting, error) {
	if speakerCount < 1 {
		speakerCount = store.DefaultSpeakerCount
	}

	meeting := &store.Meeting{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    store.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO meetings (id, name, status, created_at) VALUES ($1, $2, $3, $4)`,
		meeting.ID, meeting.Name, string(meeting.Status), meeting.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting meeting: %w", err)
	}

	if err := insertSpeakers(ctx, tx, meeting.ID, store.DefaultSeeds(speakerCount)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing meeting: %w", err)
	}

	s.logger.Debug("meeting created",
		logging.F("meeting_id", meeting.ID),
		logging.F("speakers", speakerCount))
	return meeting, nil
}

// GetMeeting returns the meeting with the given id.
func (s *Store) GetMeeting(ctx context.Context, id string) (*store.Meeting, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, status, audio_path, created_at, started_at, ended_at
		   FROM meetings WHERE id = $1`, id)
	return scanMeeting(row)
}

// GetMeetingByAudioPath returns the most recently created meeting recorded
// from the given audio path.
func (s *Store) GetMeetingByAudioPath(ctx context.Context, audioPath string) (*store.Meeting, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("%w: empty audio path", mberrors.ErrValidation)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, status, audio_path, created_at, started_at, ended_at
		   FROM meetings WHERE audio_path = $1
		  ORDER BY created_at DESC, id LIMIT 1`, audioPath)
	return scanMeeting(row)
}

// ListMeetings returns all meetings, most recently created first.
func (s *Store) ListMeetings(ctx context.Context) ([]*store.Meeting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, status, audio_path, created_at, started_at, ended_at
		   FROM meetings ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*store.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

// RenameMeeting updates the meeting's display name.
func (s *Store) RenameMeeting(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty meeting name", mberrors.ErrValidation)
	}
	return s.execOne(ctx, `UPDATE meetings SET name = $1 WHERE id = $2`, name, id)
}

// StartMeeting records the start timestamp without touching the status.
func (s *Store) StartMeeting(ctx context.Context, id string) error {
	return s.execOne(ctx,
		`UPDATE meetings SET started_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
}

// EndMeeting records the end timestamp and audio path and moves the meeting
// to processing.
func (s *Store) EndMeeting(ctx context.Context, id, audioPath string) error {
	status := store.StatusProcessing
	if audioPath == "" {
		// No audio means no job; the meeting ends failed in one write.
		status = store.StatusFailed
	}
	return s.execOne(ctx,
		`UPDATE meetings SET status = $1, audio_path = $2, ended_at = $3 WHERE id = $4`,
		string(status), audioPath, time.Now().UTC(), id)
}

// UpdateMeetingStatus sets the lifecycle status.
func (s *Store) UpdateMeetingStatus(ctx context.Context, id string, status store.Status) error {
	if _, err := store.ParseStatus(string(status)); err != nil {
		return err
	}
	return s.execOne(ctx, `UPDATE meetings SET status = $1 WHERE id = $2`, string(status), id)
}

// ListSpeakers returns the meeting's roster in creation order.
func (s *Store) ListSpeakers(ctx context.Context, meetingID string) ([]*store.Speaker, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, meeting_id, label, display_name, position
		   FROM speakers WHERE meeting_id = $1 ORDER BY position`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing speakers: %w", err)
	}
	defer rows.Close()

	var speakers []*store.Speaker
	for rows.Next() {
		var sp store.Speaker
		if err := rows.Scan(&sp.ID, &sp.MeetingID, &sp.Label, &sp.DisplayName, &sp.Position); err != nil {
			return nil, fmt.Errorf("scanning speaker: %w", err)
		}
		speakers = append(speakers, &sp)
	}
	return speakers, rows.Err()
}

// AddSpeaker appends one speaker with the next free ordinal label.
func (s *Store) AddSpeaker(ctx context.Context, meetingID, displayName string) (*store.Speaker, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if err := meetingExists(ctx, tx, meetingID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`SELECT label FROM speakers WHERE meeting_id = $1 ORDER BY position`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	labels, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning labels: %w", err)
	}

	label := store.NextOrdinalLabel(labels)
	if displayName == "" {
		displayName = label
	}

	sp := &store.Speaker{
		ID:          uuid.NewString(),
		MeetingID:   meetingID,
		Label:       label,
		DisplayName: displayName,
		Position:    len(labels) + 1,
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO speakers (id, meeting_id, label, display_name, position) VALUES ($1, $2, $3, $4, $5)`,
		sp.ID, sp.MeetingID, sp.Label, sp.DisplayName, sp.Position)
	if err != nil {
		if isPgError(err, pgUniqueViolation) {
			return nil, fmt.Errorf("%w: label %q already exists", mberrors.ErrConflict, sp.Label)
		}
		return nil, fmt.Errorf("inserting speaker: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing speaker: %w", err)
	}
	return sp, nil
}

// RenameSpeaker updates the display name of the speaker with the given
// stable label.
func (s *Store) RenameSpeaker(ctx context.Context, meetingID, label, displayName string) error {
	if strings.TrimSpace(displayName) == "" {
		return fmt.Errorf("%w: empty display name", mberrors.ErrValidation)
	}
	return s.execOne(ctx,
		`UPDATE speakers SET display_name = $1 WHERE meeting_id = $2 AND label = $3`,
		displayName, meetingID, label)
}

// ResetSpeakers wholesale-replaces the meeting's roster; segment references
// to removed speakers become null.
func (s *Store) ResetSpeakers(ctx context.Context, meetingID string, seeds []store.SpeakerSeed) ([]*store.Speaker, error) {
	if len(seeds) == 0 {
		seeds = store.DefaultSeeds(1)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if err := meetingExists(ctx, tx, meetingID); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM speakers WHERE meeting_id = $1`, meetingID); err != nil {
		return nil, fmt.Errorf("clearing roster: %w", err)
	}

	if err := insertSpeakers(ctx, tx, meetingID, seeds); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing roster: %w", err)
	}

	return s.ListSpeakers(ctx, meetingID)
}

// ResetSpeakerCount is ResetSpeakers with count ordinal defaults.
func (s *Store) ResetSpeakerCount(ctx context.Context, meetingID string, count int) ([]*store.Speaker, error) {
	return s.ResetSpeakers(ctx, meetingID, store.DefaultSeeds(count))
}

// ReplaceSegments wholesale-replaces the meeting's segments.
func (s *Store) ReplaceSegments(ctx context.Context, meetingID string, seeds []store.SegmentSeed) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if err := meetingExists(ctx, tx, meetingID); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM segments WHERE meeting_id = $1`, meetingID); err != nil {
		return 0, fmt.Errorf("clearing segments: %w", err)
	}

	for _, seed := range seeds {
		var speakerID *string
		if seed.SpeakerID != "" {
			id := seed.SpeakerID
			speakerID = &id
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO segments (id, meeting_id, speaker_id, start_ms, end_ms, transcript)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), meetingID, speakerID, seed.StartMs, seed.EndMs, seed.Transcript)
		if err != nil {
			return 0, fmt.Errorf("inserting segment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing segments: %w", err)
	}
	return len(seeds), nil
}

// ListSegments returns the meeting's segments in transcript order.
func (s *Store) ListSegments(ctx context.Context, meetingID string) ([]*store.Segment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, meeting_id, speaker_id, start_ms, end_ms, transcript
		   FROM segments WHERE meeting_id = $1 ORDER BY start_ms, end_ms, id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	defer rows.Close()

	var segments []*store.Segment
	for rows.Next() {
		var seg store.Segment
		var speakerID *string
		if err := rows.Scan(&seg.ID, &seg.MeetingID, &speakerID, &seg.StartMs, &seg.EndMs, &seg.Transcript); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		if speakerID != nil {
			seg.SpeakerID = *speakerID
		}
		segments = append(segments, &seg)
	}
	return segments, rows.Err()
}

// ListSpeakerStats returns per-speaker aggregates derived from segments.
func (s *Store) ListSpeakerStats(ctx context.Context, meetingID string) ([]*store.SpeakerStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sp.id, sp.label, sp.display_name,
		        COUNT(sg.id), COALESCE(SUM(sg.end_ms - sg.start_ms), 0)
		   FROM speakers sp
		   LEFT JOIN segments sg ON sg.speaker_id = sp.id
		  WHERE sp.meeting_id = $1
		  GROUP BY sp.id, sp.label, sp.display_name, sp.position
		  ORDER BY sp.position`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing speaker stats: %w", err)
	}
	defer rows.Close()

	var stats []*store.SpeakerStat
	for rows.Next() {
		var st store.SpeakerStat
		if err := rows.Scan(&st.SpeakerID, &st.Label, &st.DisplayName, &st.Segments, &st.DurationMs); err != nil {
			return nil, fmt.Errorf("scanning speaker stat: %w", err)
		}
		stats = append(stats, &st)
	}
	return stats, rows.Err()
}

// execOne runs a statement that must affect exactly one row; zero rows maps
// to ErrNotFound.
func (s *Store) execOne(ctx context.Context, query string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return mberrors.ErrNotFound
	}
	return nil
}

func meetingExists(ctx context.Context, tx pgx.Tx, meetingID string) error {
	var one int
	err := tx.QueryRow(ctx, `SELECT 1 FROM meetings WHERE id = $1`, meetingID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("meeting %s: %w", meetingID, mberrors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking meeting: %w", err)
	}
	return nil
}

func insertSpeakers(ctx context.Context, tx pgx.Tx, meetingID string, seeds []store.SpeakerSeed) error {
	for i, seed := range seeds {
		if strings.TrimSpace(seed.Label) == "" {
			return fmt.Errorf("%w: speaker %d has an empty label", mberrors.ErrValidation, i+1)
		}
		displayName := seed.DisplayName
		if displayName == "" {
			displayName = seed.Label
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO speakers (id, meeting_id, label, display_name, position) VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), meetingID, seed.Label, displayName, i+1)
		if err != nil {
			if isPgError(err, pgUniqueViolation) {
				return fmt.Errorf("%w: duplicate label %q", mberrors.ErrConflict, seed.Label)
			}
			return fmt.Errorf("inserting speaker: %w", err)
		}
	}
	return nil
}

func scanMeeting(row pgx.Row) (*store.Meeting, error) {
	var (
		m      store.Meeting
		status string
	)
	err := row.Scan(&m.ID, &m.Name, &status, &m.AudioPath, &m.CreatedAt, &m.StartedAt, &m.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mberrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning meeting: %w", err)
	}
	m.Status = store.Status(status)
	return &m, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
