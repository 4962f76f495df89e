package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseLines decodes each JSON log line written to buf.
func parseLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()

	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), "log line should be JSON: %s", line)
		out = append(out, m)
	}
	return out
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:       LevelDebug,
		ServiceName: "mbud-test",
		JSONFormat:  true,
		Output:      &buf,
	})

	log.Info("meeting created", F("meeting_id", "m-1"), F("speakers", 2))

	lines := parseLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "meeting created", lines[0]["message"])
	assert.Equal(t, "mbud-test", lines[0]["service_name"])
	assert.Equal(t, "m-1", lines[0]["meeting_id"])
	assert.Equal(t, float64(2), lines[0]["speakers"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelWarn,
		JSONFormat: true,
		Output:     &buf,
	})

	log.Debug("hidden")
	log.Info("also hidden")
	log.Warn("visible")
	log.Error("also visible")

	lines := parseLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelDebug,
		JSONFormat: true,
		Output:     &buf,
	})

	child := log.With(F("component", "store"))
	child.Info("opened")
	child.Info("closed")

	lines := parseLines(t, &buf)
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, "store", line["component"])
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelDebug,
		JSONFormat: true,
		Output:     &buf,
	})

	ctx := context.WithValue(context.Background(), MeetingIDKey, "m-7")
	ctx = context.WithValue(ctx, JobIDKey, "j-42")

	log.WithContext(ctx).Info("job submitted")

	lines := parseLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "m-7", lines[0]["meeting_id"])
	assert.Equal(t, "j-42", lines[0]["job_id"])
}

func TestLoggerErrField(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{
		Level:      LevelDebug,
		JSONFormat: true,
		Output:     &buf,
	})

	log.Error("job failed", Err(errors.New("exit status 1")))

	lines := parseLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "exit status 1", lines[0]["error"])
}

func TestNewLoggerNilConfig(t *testing.T) {
	// Should not panic and should produce a usable logger.
	log := NewLogger(nil)
	require.NotNil(t, log)
	log.Debug("ignored at default level")
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()

	// All operations should be safe no-ops.
	log.Debug("a")
	log.Info("b", F("k", "v"))
	log.Warn("c")
	log.Error("d", Err(errors.New("boom")))

	assert.Same(t, log, log.With(F("k", "v")))
	assert.Same(t, log, log.WithContext(context.Background()))
	assert.Same(t, log, log.WithSink(nil))
}

func TestFieldHelpers(t *testing.T) {
	f := F("start_ms", int64(1200))
	assert.Equal(t, "start_ms", f.Key)
	assert.Equal(t, int64(1200), f.Value)

	err := errors.New("boom")
	ef := Err(err)
	assert.Equal(t, "error", ef.Key)
	assert.Equal(t, err, ef.Value)
}
