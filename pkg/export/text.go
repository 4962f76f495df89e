package export

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// textRewriter handles the line-oriented transcript: a speaker cue is a
// stable label at the very start of a line, followed by optional spaces or
// tabs and a colon. A label appearing mid-sentence is never a cue.
type textRewriter struct{}

func (textRewriter) Rewrite(path string, names map[string]string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	labels := labelsByLength(names)
	lines := strings.Split(string(data), "\n")
	changed := false
	for i, line := range lines {
		if rewritten, ok := rewriteCueLine(line, labels, names); ok {
			lines[i] = rewritten
			changed = true
		}
	}

	if !changed {
		return Result{Outcome: Unchanged}, nil
	}
	if err := replaceFile(path, []byte(strings.Join(lines, "\n"))); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Changed}, nil
}

// rewriteCueLine replaces a leading speaker cue on one line. Matching is
// literal, position-anchored substring comparison; label text is never
// treated as a pattern. Returns the rewritten line and whether it changed.
//
// Splitting on "\n" leaves any "\r" of a CRLF pair at the end of the line
// content, past the cue, so CRLF files round-trip byte-for-byte.
func rewriteCueLine(line string, labels []string, names map[string]string) (string, bool) {
	for _, label := range labels {
		if !strings.HasPrefix(line, label) {
			continue
		}
		rest := line[len(label):]
		if !strings.HasPrefix(strings.TrimLeft(rest, " \t"), ":") {
			continue
		}
		name := names[label]
		if name == label {
			return line, false
		}
		return name + rest, true
	}
	return line, false
}

// labelsByLength returns the mapping's labels longest first, so a label
// that is a prefix of another ("Speaker 1" / "Speaker 10") can never
// shadow the longer match. Equal lengths sort lexically for determinism.
func labelsByLength(names map[string]string) []string {
	labels := make([]string, 0, len(names))
	for label := range names {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) > len(labels[j])
		}
		return labels[i] < labels[j]
	})
	return labels
}
