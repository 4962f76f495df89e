// Package export maintains the files a finished diarization job leaves in a
// meeting's output directory. It patches renamed speakers into existing
// artifacts in place (apply-names) and regenerates the store-derived
// artifacts from persisted segments (export write). Patching never touches
// the database and never re-runs analysis.
package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names as the analysis engine writes them.
const (
	TranscriptFile = "transcript.txt"
	SubtitleFile   = "segments.srt"
	CSVFile        = "segments.csv"
	StructuredFile = "diarization.json"
)

// Format identifies one artifact layout.
type Format int

const (
	FormatText Format = iota
	FormatCSV
	FormatSubtitle
	FormatStructured
)

// String returns the human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatCSV:
		return "csv"
	case FormatSubtitle:
		return "subtitle"
	case FormatStructured:
		return "structured"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Outcome reports what a rewrite did to one file. The three-way split lets
// callers tell "nothing needed changing" apart from "could not read the
// file".
type Outcome int

const (
	// Unchanged means the file parsed fine and no speaker reference needed
	// rewriting; the file was not written.
	Unchanged Outcome = iota
	// Changed means at least one reference was rewritten and the file was
	// replaced on disk.
	Changed
	// ParseFailed means the file could not be interpreted as its format;
	// it was left untouched.
	ParseFailed
)

// String returns the human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case ParseFailed:
		return "parse-failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the report from one rewrite pass over one file.
type Result struct {
	Outcome Outcome
	// Detail explains a ParseFailed outcome; empty otherwise.
	Detail string
}

// Rewriter mutates speaker references in one artifact file in place.
//
// names maps stable labels to display names and never contains no-op
// entries. Rewriting is idempotent: a second pass with the same mapping
// reports Unchanged and the file keeps its exact bytes. A file the rewriter
// cannot interpret yields ParseFailed, not an error; errors are reserved for
// I/O failures.
type Rewriter interface {
	Rewrite(path string, names map[string]string) (Result, error)
}

// ForFormat returns the rewriter implementing a format. It panics on an
// unknown format value so a bad constant fails loudly in tests rather than
// silently skipping a file.
func ForFormat(f Format) Rewriter {
	switch f {
	case FormatText:
		return textRewriter{}
	case FormatCSV:
		return csvRewriter{}
	case FormatSubtitle:
		return subtitleRewriter{}
	case FormatStructured:
		return structuredRewriter{}
	default:
		panic(fmt.Sprintf("export: no rewriter for %v", f))
	}
}

// replaceFile swaps in the rewritten content via a temporary file in the
// same directory. A crash mid-write must not leave a half-written artifact
// behind.
func replaceFile(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
