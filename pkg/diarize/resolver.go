package diarize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meetingbuddy/mbud/pkg/export"
)

// Payload sources, recorded for observability.
const (
	PayloadSourceStdout = "stdout"
	PayloadSourceFile   = "file"
)

// ResolvePayload extracts the engine's result payload. The engine is
// expected to print it as its last meaningful stdout line, but progress
// noise often follows it, so the scan runs from the last line backwards and
// takes the first line that decodes. When no line decodes, the result file
// in the output directory is the fallback; the two sources cover an engine
// that died after writing only one of them.
//
// Returns the payload, which source produced it, and an error when neither
// source yields one.
func ResolvePayload(stdout, outDir string) (*Payload, string, error) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		// Insisting on braces skips degenerate decodes like a bare
		// "null", which unmarshals into a struct without error.
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var payload Payload
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		return &payload, PayloadSourceStdout, nil
	}

	path := filepath.Join(outDir, export.StructuredFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("no result payload on stdout and no result file at %s", path)
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, "", fmt.Errorf("result file %s is not parseable: %w", path, err)
	}

	return &payload, PayloadSourceFile, nil
}
