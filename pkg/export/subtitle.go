package export

import (
	"fmt"
	"os"
	"strings"
)

// subtitleRewriter handles the SRT track. Each cue block is an index line,
// a timing line, then the cue text; only the cue-text lines carry speaker
// cues, and only they go through the plain-text rewrite logic. Index and
// timing lines are never candidates, so a numeric label can never corrupt
// a timing line.
type subtitleRewriter struct{}

func (subtitleRewriter) Rewrite(path string, names map[string]string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	labels := labelsByLength(names)
	lines := strings.Split(string(data), "\n")
	changed := false

	// Position within the current cue block: 0 expects the index line,
	// 1 the timing line, anything past that is cue text. Blank lines end
	// a block.
	pos := 0
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == "" {
			pos = 0
			continue
		}
		if pos >= 2 {
			if rewritten, ok := rewriteCueLine(line, labels, names); ok {
				lines[i] = rewritten
				changed = true
			}
		}
		pos++
	}

	if !changed {
		return Result{Outcome: Unchanged}, nil
	}
	if err := replaceFile(path, []byte(strings.Join(lines, "\n"))); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Changed}, nil
}
