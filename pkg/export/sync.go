package export

import (
	"os"
	"path/filepath"

	"github.com/meetingbuddy/mbud/pkg/logging"
	"github.com/meetingbuddy/mbud/pkg/store"
)

// artifacts lists every file a sync pass visits, in report order.
var artifacts = []struct {
	file   string
	format Format
}{
	{TranscriptFile, FormatText},
	{SubtitleFile, FormatSubtitle},
	{CSVFile, FormatCSV},
	{StructuredFile, FormatStructured},
}

// FileResult is the per-artifact report from one sync pass.
type FileResult struct {
	File    string `json:"file" yaml:"file"`
	Format  string `json:"format" yaml:"format"`
	Outcome string `json:"outcome" yaml:"outcome"`
	Detail  string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Err     error  `json:"-" yaml:"-"`
}

// SyncResult collects the per-file reports of one sync pass. Results are
// never folded into a single success or failure; one artifact failing must
// not hide what happened to the others.
type SyncResult struct {
	Files []FileResult `json:"files" yaml:"files"`
}

// Changed reports how many files were rewritten.
func (r SyncResult) Changed() int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == Changed.String() {
			n++
		}
	}
	return n
}

// Failed reports how many files could not be parsed or written.
func (r SyncResult) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil || f.Outcome == ParseFailed.String() {
			n++
		}
	}
	return n
}

// BuildNameMapping returns the stable-label to display-name mapping for a
// roster, excluding speakers whose display name still equals their label.
// An empty result means a sync pass would have nothing to do.
func BuildNameMapping(speakers []store.Speaker) map[string]string {
	names := make(map[string]string)
	for _, sp := range speakers {
		if sp.DisplayName == "" || sp.DisplayName == sp.Label {
			continue
		}
		names[sp.Label] = sp.DisplayName
	}
	return names
}

// Syncer applies current display names to the artifacts in a meeting's
// output directory. It touches only files, never the database, and is safe
// to re-run: a pass that finds nothing to rename writes nothing.
type Syncer struct {
	logger logging.Logger
}

// NewSyncer returns a Syncer logging through the given logger.
func NewSyncer(logger logging.Logger) *Syncer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Syncer{logger: logger}
}

// Sync rewrites every artifact present in dir using the label to
// display-name mapping. An empty mapping short-circuits to an empty result.
// Artifacts are handled independently: a missing file is reported as
// skipped, an unparseable one as parse-failed, and an I/O failure on one
// file never stops the rest.
func (s *Syncer) Sync(dir string, names map[string]string) SyncResult {
	var result SyncResult
	if len(names) == 0 {
		return result
	}

	for _, a := range artifacts {
		path := filepath.Join(dir, a.file)
		fr := FileResult{File: a.file, Format: a.format.String()}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			fr.Skipped = true
			fr.Outcome = Unchanged.String()
			result.Files = append(result.Files, fr)
			continue
		}

		res, err := ForFormat(a.format).Rewrite(path, names)
		if err != nil {
			fr.Err = err
			fr.Outcome = Unchanged.String()
			fr.Detail = err.Error()
			s.logger.Error("artifact rewrite failed",
				logging.F("file", path),
				logging.Err(err))
			result.Files = append(result.Files, fr)
			continue
		}

		fr.Outcome = res.Outcome.String()
		fr.Detail = res.Detail
		if res.Outcome == ParseFailed {
			s.logger.Warn("artifact not parseable, left untouched",
				logging.F("file", path),
				logging.F("reason", res.Detail))
		} else {
			s.logger.Debug("artifact synced",
				logging.F("file", path),
				logging.F("outcome", fr.Outcome))
		}
		result.Files = append(result.Files, fr)
	}
	return result
}
