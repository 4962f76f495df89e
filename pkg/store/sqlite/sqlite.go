// Package sqlite implements the persistence contract on an embedded SQLite
// database (modernc.org/sqlite, no cgo). It is the default backend for
// single-operator installs; the schema is applied on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS meetings (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	audio_path TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	ended_at   INTEGER
);

CREATE TABLE IF NOT EXISTS speakers (
	id           TEXT PRIMARY KEY,
	meeting_id   TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	label        TEXT NOT NULL,
	display_name TEXT NOT NULL,
	position     INTEGER NOT NULL,
	UNIQUE (meeting_id, label)
);

CREATE TABLE IF NOT EXISTS segments (
	id         TEXT PRIMARY KEY,
	meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	speaker_id TEXT REFERENCES speakers(id) ON DELETE SET NULL,
	start_ms   INTEGER NOT NULL,
	end_ms     INTEGER NOT NULL,
	transcript TEXT NOT NULL DEFAULT '',
	CHECK (end_ms >= start_ms)
);

CREATE INDEX IF NOT EXISTS idx_speakers_meeting ON speakers(meeting_id, position);
CREATE INDEX IF NOT EXISTS idx_segments_meeting ON segments(meeting_id, start_ms);
`

// Store implements store.Store on SQLite.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. Pass ":memory:" for an in-memory database.
func Open(path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With(logging.F("component", "store.sqlite"))

	dsn := path
	memory := path == ":memory:"
	if !memory {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if memory {
		// An in-memory database exists per connection; keep the pool at one.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Debug("database opened", logging.F("path", path))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", logging.Err(err))
	}
}

// DB exposes the raw handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meetings (id, name, status, created_at) VALUES (?, ?, ?, ?)`,
		meeting.ID, meeting.Name, string(meeting.Status), meeting.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting meeting: %w", err)
	}

	if err := insertSpeakers(ctx, tx, meeting.ID, store.DefaultSeeds(speakerCount)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing meeting: %w", err)
	}

	s.logger.Debug("meeting created",
		logging.F("meeting_id", meeting.ID),
		logging.F("speakers", speakerCount))
	return meeting, nil
}

// GetMeeting returns the meeting with the given id.
func (s *Store) GetMeeting(ctx context.Context, id string) (*store.Meeting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, audio_path, created_at, started_at, ended_at
		   FROM meetings WHERE id = ?`, id)
	return scanMeeting(row)
}

// GetMeetingByAudioPath returns the most recently created meeting recorded
// from the given audio path.
func (s *Store) GetMeetingByAudioPath(ctx context.Context, audioPath string) (*store.Meeting, error) {
	if audioPath == "" {
		return nil, fmt.Errorf("%w: empty audio path", mberrors.ErrValidation)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, audio_path, created_at, started_at, ended_at
		   FROM meetings WHERE audio_path = ?
		  ORDER BY created_at DESC, rowid DESC LIMIT 1`, audioPath)
	return scanMeeting(row)
}

// ListMeetings returns all meetings, most recently created first.
func (s *Store) ListMeetings(ctx context.Context) ([]*store.Meeting, error) {
	rows, err := s.db.QueryContext(ctx,
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
	return s.execOne(ctx, `UPDATE meetings SET name = ? WHERE id = ?`, name, id)
}

// StartMeeting records the start timestamp; the lifecycle status is not
// affected.
func (s *Store) StartMeeting(ctx context.Context, id string) error {
	now := time.Now().UTC().UnixMilli()
	return s.execOne(ctx, `UPDATE meetings SET started_at = ? WHERE id = ?`, now, id)
}

// EndMeeting records the end timestamp and audio path and moves the meeting
// to processing.
func (s *Store) EndMeeting(ctx context.Context, id, audioPath string) error {
	now := time.Now().UTC().UnixMilli()
	status := store.StatusProcessing
	if audioPath == "" {
		// No audio means no job; the meeting ends failed in one write.
		status = store.StatusFailed
	}
	return s.execOne(ctx,
		`UPDATE meetings SET status = ?, audio_path = ?, ended_at = ? WHERE id = ?`,
		string(status), audioPath, now, id)
}

// UpdateMeetingStatus sets the lifecycle status.
func (s *Store) UpdateMeetingStatus(ctx context.Context, id string, status store.Status) error {
	if _, err := store.ParseStatus(string(status)); err != nil {
		return err
	}
	return s.execOne(ctx, `UPDATE meetings SET status = ? WHERE id = ?`, string(status), id)
}

// ListSpeakers returns the meeting's roster in creation order.
func (s *Store) ListSpeakers(ctx context.Context, meetingID string) ([]*store.Speaker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, meeting_id, label, display_name, position
		   FROM speakers WHERE meeting_id = ? ORDER BY position`, meetingID)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := meetingExists(ctx, tx, meetingID); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT label FROM speakers WHERE meeting_id = ? ORDER BY position`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing labels: %w", err)
	}
	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels = append(labels, label)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
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

	_, err = tx.ExecContext(ctx,
		`INSERT INTO speakers (id, meeting_id, label, display_name, position) VALUES (?, ?, ?, ?, ?)`,
		sp.ID, sp.MeetingID, sp.Label, sp.DisplayName, sp.Position)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: label %q already exists", mberrors.ErrConflict, sp.Label)
		}
		return nil, fmt.Errorf("inserting speaker: %w", err)
	}

	if err := tx.Commit(); err != nil {
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
		`UPDATE speakers SET display_name = ? WHERE meeting_id = ? AND label = ?`,
		displayName, meetingID, label)
}

// ResetSpeakers wholesale-replaces the meeting's roster. Existing segment
// references are set to null by the schema's ON DELETE SET NULL.
func (s *Store) ResetSpeakers(ctx context.Context, meetingID string, seeds []store.SpeakerSeed) ([]*store.Speaker, error) {
	if len(seeds) == 0 {
		seeds = store.DefaultSeeds(1)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := meetingExists(ctx, tx, meetingID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM speakers WHERE meeting_id = ?`, meetingID); err != nil {
		return nil, fmt.Errorf("clearing roster: %w", err)
	}

	if err := insertSpeakers(ctx, tx, meetingID, seeds); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing roster: %w", err)
	}

	s.logger.Debug("roster reset",
		logging.F("meeting_id", meetingID),
		logging.F("speakers", len(seeds)))
	return s.ListSpeakers(ctx, meetingID)
}

// ResetSpeakerCount is ResetSpeakers with count ordinal defaults.
func (s *Store) ResetSpeakerCount(ctx context.Context, meetingID string, count int) ([]*store.Speaker, error) {
	return s.ResetSpeakers(ctx, meetingID, store.DefaultSeeds(count))
}

// ReplaceSegments wholesale-replaces the meeting's segments.
func (s *Store) ReplaceSegments(ctx context.Context, meetingID string, seeds []store.SegmentSeed) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := meetingExists(ctx, tx, meetingID); err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE meeting_id = ?`, meetingID); err != nil {
		return 0, fmt.Errorf("clearing segments: %w", err)
	}

	for _, seed := range seeds {
		var speakerID interface{}
		if seed.SpeakerID != "" {
			speakerID = seed.SpeakerID
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO segments (id, meeting_id, speaker_id, start_ms, end_ms, transcript)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), meetingID, speakerID, seed.StartMs, seed.EndMs, seed.Transcript)
		if err != nil {
			return 0, fmt.Errorf("inserting segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing segments: %w", err)
	}

	s.logger.Debug("segments replaced",
		logging.F("meeting_id", meetingID),
		logging.F("segments", len(seeds)))
	return len(seeds), nil
}

// ListSegments returns the meeting's segments in transcript order.
func (s *Store) ListSegments(ctx context.Context, meetingID string) ([]*store.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, meeting_id, speaker_id, start_ms, end_ms, transcript
		   FROM segments WHERE meeting_id = ? ORDER BY start_ms, end_ms, id`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("listing segments: %w", err)
	}
	defer rows.Close()

	var segments []*store.Segment
	for rows.Next() {
		var seg store.Segment
		var speakerID sql.NullString
		if err := rows.Scan(&seg.ID, &seg.MeetingID, &speakerID, &seg.StartMs, &seg.EndMs, &seg.Transcript); err != nil {
			return nil, fmt.Errorf("scanning segment: %w", err)
		}
		seg.SpeakerID = speakerID.String
		segments = append(segments, &seg)
	}
	return segments, rows.Err()
}

// ListSpeakerStats returns per-speaker aggregates derived from segments.
func (s *Store) ListSpeakerStats(ctx context.Context, meetingID string) ([]*store.SpeakerStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sp.id, sp.label, sp.display_name,
		        COUNT(sg.id), COALESCE(SUM(sg.end_ms - sg.start_ms), 0)
		   FROM speakers sp
		   LEFT JOIN segments sg ON sg.speaker_id = sp.id
		  WHERE sp.meeting_id = ?
		  GROUP BY sp.id, sp.label, sp.display_name
		  ORDER BY MIN(sp.position)`, meetingID)
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
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return mberrors.ErrNotFound
	}
	return nil
}

// meetingExists verifies the meeting row inside the current transaction.
func meetingExists(ctx context.Context, tx *sql.Tx, meetingID string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE id = ?`, meetingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("meeting %s: %w", meetingID, mberrors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking meeting: %w", err)
	}
	return nil
}

// insertSpeakers inserts seeds with 1-based positions; empty display names
// default to the label.
func insertSpeakers(ctx context.Context, tx *sql.Tx, meetingID string, seeds []store.SpeakerSeed) error {
	for i, seed := range seeds {
		if strings.TrimSpace(seed.Label) == "" {
			return fmt.Errorf("%w: speaker %d has an empty label", mberrors.ErrValidation, i+1)
		}
		displayName := seed.DisplayName
		if displayName == "" {
			displayName = seed.Label
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO speakers (id, meeting_id, label, display_name, position) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), meetingID, seed.Label, displayName, i+1)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: duplicate label %q", mberrors.ErrConflict, seed.Label)
			}
			return fmt.Errorf("inserting speaker: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanMeeting reads one meeting row.
func scanMeeting(row rowScanner) (*store.Meeting, error) {
	var (
		m              store.Meeting
		status         string
		created        int64
		started, ended sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.Name, &status, &m.AudioPath, &created, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mberrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning meeting: %w", err)
	}

	m.Status = store.Status(status)
	m.CreatedAt = time.UnixMilli(created).UTC()
	m.StartedAt = timeFromMs(started)
	m.EndedAt = timeFromMs(ended)
	return &m, nil
}

// timeFromMs converts a nullable epoch-milliseconds column.
func timeFromMs(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
