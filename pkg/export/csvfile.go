package export

import (
	"fmt"
	"os"
	"strings"
)

// csvRewriter handles the segments CSV. Only the speaker column (the text
// before the first comma) is ever rewritten, and only when its trimmed
// value is a known stable label; whitespace around the value, the header
// row, the file's dominant newline convention, and the presence of a
// trailing newline all survive the rewrite untouched.
//
// This works on raw lines rather than encoding/csv on purpose: a parse and
// re-emit would normalize quoting and spacing across the whole file, and
// the contract is that unchanged rows keep their exact bytes.
type csvRewriter struct{}

func (csvRewriter) Rewrite(path string, names map[string]string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	newline := dominantNewline(content)
	trailing := strings.HasSuffix(content, "\n")

	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	if trailing && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}

	changed := false
	for i, line := range lines {
		// Row 0 is the header, never rewritten.
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		if rewritten, ok := rewriteSpeakerField(line, names); ok {
			lines[i] = rewritten
			changed = true
		}
	}

	if !changed {
		return Result{Outcome: Unchanged}, nil
	}

	out := strings.Join(lines, newline)
	if trailing {
		out += newline
	}
	if err := replaceFile(path, []byte(out)); err != nil {
		return Result{}, err
	}
	return Result{Outcome: Changed}, nil
}

// rewriteSpeakerField replaces the trimmed value of a row's first field
// when it matches a stable label, keeping the surrounding whitespace.
func rewriteSpeakerField(line string, names map[string]string) (string, bool) {
	field := line
	rest := ""
	if idx := strings.Index(line, ","); idx >= 0 {
		field = line[:idx]
		rest = line[idx:]
	}

	trimmed := strings.TrimSpace(field)
	if trimmed == "" {
		return line, false
	}
	name, ok := names[trimmed]
	if !ok || name == trimmed {
		return line, false
	}

	// The trimmed value differs from the field only by surrounding
	// whitespace, so its first occurrence is the value's position.
	at := strings.Index(field, trimmed)
	lead := field[:at]
	trail := field[at+len(trimmed):]
	return lead + name + trail + rest, true
}

// dominantNewline picks the convention used by the majority of the file's
// line endings. The engine's CSV writer emits CRLF; hand-edited files are
// usually LF. Ties fall to LF.
func dominantNewline(content string) string {
	crlf := strings.Count(content, "\r\n")
	lf := strings.Count(content, "\n") - crlf
	if crlf > lf {
		return "\r\n"
	}
	return "\n"
}
