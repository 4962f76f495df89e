package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/meetingbuddy/mbud/pkg/store"
)

// unattributedName labels segments whose speaker reference was nulled by a
// roster reset.
const unattributedName = "Unknown"

// WriteArtifacts regenerates the store-derived artifacts for a meeting from
// its persisted segments and current display names: the transcript, the
// subtitle track, and the segments CSV. The diarization result JSON is
// engine-owned and is never regenerated, only patched by a sync pass.
// Returns the paths written.
func WriteArtifacts(dir string, speakers []store.Speaker, segments []store.Segment) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	byID := make(map[string]store.Speaker, len(speakers))
	for _, sp := range speakers {
		byID[sp.ID] = sp
	}
	nameOf := func(seg store.Segment) string {
		if sp, ok := byID[seg.SpeakerID]; ok {
			if sp.DisplayName != "" {
				return sp.DisplayName
			}
			return sp.Label
		}
		return unattributedName
	}

	written := make([]string, 0, 3)
	for _, w := range []struct {
		file  string
		write func(path string) error
	}{
		{TranscriptFile, func(p string) error { return writeTranscript(p, segments, nameOf) }},
		{SubtitleFile, func(p string) error { return writeSubtitles(p, segments, nameOf) }},
		{CSVFile, func(p string) error { return writeCSV(p, segments, nameOf) }},
	} {
		path := filepath.Join(dir, w.file)
		if err := w.write(path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeTranscript(path string, segments []store.Segment, nameOf func(store.Segment) string) error {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(nameOf(seg))
		b.WriteString(": ")
		b.WriteString(seg.Transcript)
		b.WriteString("\n")
	}
	return replaceFile(path, []byte(b.String()))
}

func writeSubtitles(path string, segments []store.Segment, nameOf func(store.Segment) string) error {
	var b strings.Builder
	for i, seg := range segments {
		// A literal arrow inside cue text would read as a timing line.
		text := strings.ReplaceAll(strings.TrimSpace(seg.Transcript), "-->", "->")
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s: %s\n\n",
			i+1,
			formatSubtitleTime(seg.StartMs),
			formatSubtitleTime(seg.EndMs),
			nameOf(seg),
			text)
	}
	return replaceFile(path, []byte(b.String()))
}

func writeCSV(path string, segments []store.Segment, nameOf func(store.Segment) string) error {
	var b strings.Builder
	w := csv.NewWriter(&b)
	// The engine's CSV writer emits CRLF; keep regenerated files uniform
	// with engine-written ones.
	w.UseCRLF = true

	if err := w.Write([]string{"speaker", "start_ms", "end_ms", "duration_ms", "transcript"}); err != nil {
		return err
	}
	for _, seg := range segments {
		row := []string{
			nameOf(seg),
			strconv.FormatInt(seg.StartMs, 10),
			strconv.FormatInt(seg.EndMs, 10),
			strconv.FormatInt(seg.DurationMs(), 10),
			seg.Transcript,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return replaceFile(path, []byte(b.String()))
}

// formatSubtitleTime renders milliseconds as an SRT timestamp,
// HH:MM:SS,mmm with hours always present.
func formatSubtitleTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, frac)
}
