package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStructured = `{
  "meetingId": "m-1",
  "status": "done",
  "generatedAt": "2026-08-20T10:00:00+00:00",
  "speakers": [
    {"label": "Speaker 1", "displayName": "Speaker 1", "originalLabel": "SPEAKER_00", "segments": 2, "durationMs": 2500},
    {"label": "Speaker 2", "displayName": "Speaker 2", "originalLabel": "SPEAKER_01", "segments": 1, "durationMs": 900}
  ],
  "segments": [
    {"id": "seg-1", "speakerLabel": "Speaker 1", "startMs": 0, "endMs": 1200, "transcript": "Hello there."},
    {"id": "seg-2", "speakerLabel": "Speaker 2", "startMs": 1200, "endMs": 2100, "transcript": "Hi."},
    {"id": "seg-3", "speakerLabel": "Speaker 1", "startMs": 2100, "endMs": 3400, "transcript": "Shall we start?"}
  ],
  "transcript": "Hello there. Hi. Shall we start?",
  "speakerStats": {
    "Speaker 1": {"durationMs": 2500, "segments": 2},
    "Speaker 2": {"durationMs": 900, "segments": 1}
  }
}`

func TestStructuredRewriter_FirstPassUpdatesAllThreeRegions(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, sampleStructured)

	res, err := structuredRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	doc := decodeArtifact(t, path)

	// Speaker region: displayName updated, label and the engine's raw
	// diarizer label untouched.
	sp := listItem(t, doc, "speakers", 0)
	assert.Equal(t, "Speaker 1", sp["label"])
	assert.Equal(t, "Alice", sp["displayName"])
	assert.Equal(t, "SPEAKER_00", sp["originalLabel"])
	other := listItem(t, doc, "speakers", 1)
	assert.Equal(t, "Speaker 2", other["displayName"])

	// Segment region: the stable label is captured once, then the
	// visible field is rewritten.
	seg := listItem(t, doc, "segments", 0)
	assert.Equal(t, "Alice", seg["speakerLabel"])
	assert.Equal(t, "Speaker 1", seg["originalLabel"])
	untouched := listItem(t, doc, "segments", 1)
	assert.Equal(t, "Speaker 2", untouched["speakerLabel"])
	_, marked := untouched["originalLabel"]
	assert.False(t, marked, "untouched segment must carry no marker")

	// Stats region: the entry moved to the display-name key with its
	// origin recorded.
	stats := statsMap(t, doc)
	_, present := stats["Speaker 1"]
	assert.False(t, present, "moved entry must leave its label key")
	moved := statsEntry(t, doc, "Alice")
	assert.EqualValues(t, "Speaker 1", moved["originalLabel"])
	assert.EqualValues(t, 2500, moved["durationMs"])
	kept := statsEntry(t, doc, "Speaker 2")
	_, marked = kept["originalLabel"]
	assert.False(t, marked)

	// The file-level timestamp appears exactly because something changed.
	updatedAt, ok := doc["updatedAt"].(string)
	require.True(t, ok, "updatedAt must be set")
	_, err = time.Parse(time.RFC3339, updatedAt)
	assert.NoError(t, err)
}

func TestStructuredRewriter_PreservesUnrelatedFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, sampleStructured)

	_, err := structuredRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alice"})
	require.NoError(t, err)

	doc := decodeArtifact(t, path)
	assert.Equal(t, "m-1", doc["meetingId"])
	assert.Equal(t, "done", doc["status"])
	assert.Equal(t, "2026-08-20T10:00:00+00:00", doc["generatedAt"])
	assert.Equal(t, "Hello there. Hi. Shall we start?", doc["transcript"])
}

func TestStructuredRewriter_SecondPassIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, sampleStructured)
	names := map[string]string{"Speaker 1": "Alice"}

	res, err := structuredRewriter{}.Rewrite(path, names)
	require.NoError(t, err)
	require.Equal(t, Changed, res.Outcome)
	after := readBack(t, path)

	res, err = structuredRewriter{}.Rewrite(path, names)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome)
	assert.Equal(t, after, readBack(t, path))
}

func TestStructuredRewriter_RenameResolvesThroughOriginalLabel(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, sampleStructured)

	_, err := structuredRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alice"})
	require.NoError(t, err)

	// The second rename must key off the captured label, not "Alice".
	res, err := structuredRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alicia"})
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	doc := decodeArtifact(t, path)
	sp := listItem(t, doc, "speakers", 0)
	assert.Equal(t, "Alicia", sp["displayName"])

	seg := listItem(t, doc, "segments", 0)
	assert.Equal(t, "Alicia", seg["speakerLabel"])
	assert.Equal(t, "Speaker 1", seg["originalLabel"])

	stats := statsMap(t, doc)
	_, stale := stats["Alice"]
	assert.False(t, stale, "old display-name key must not linger")
	moved := statsEntry(t, doc, "Alicia")
	assert.EqualValues(t, "Speaker 1", moved["originalLabel"])
	assert.EqualValues(t, 2500, moved["durationMs"])
}

func TestStructuredRewriter_ContendedStatsEntriesStayPut(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, sampleStructured)

	// Two labels resolving to one display name: speakers and segments
	// rename, but neither stats entry may claim the shared key.
	res, err := structuredRewriter{}.Rewrite(path, map[string]string{
		"Speaker 1": "Alex",
		"Speaker 2": "Alex",
	})
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	doc := decodeArtifact(t, path)
	assert.Equal(t, "Alex", listItem(t, doc, "speakers", 0)["displayName"])
	assert.Equal(t, "Alex", listItem(t, doc, "speakers", 1)["displayName"])

	stats := statsMap(t, doc)
	assert.Len(t, stats, 2)
	first := statsEntry(t, doc, "Speaker 1")
	assert.EqualValues(t, 2500, first["durationMs"])
	second := statsEntry(t, doc, "Speaker 2")
	assert.EqualValues(t, 900, second["durationMs"])
}

func TestStructuredRewriter_SwappedNamesMoveBothStatsEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, sampleStructured)
	names := map[string]string{
		"Speaker 1": "Speaker 2",
		"Speaker 2": "Speaker 1",
	}

	res, err := structuredRewriter{}.Rewrite(path, names)
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	doc := decodeArtifact(t, path)
	swappedIn := statsEntry(t, doc, "Speaker 2")
	assert.EqualValues(t, 2500, swappedIn["durationMs"])
	assert.EqualValues(t, "Speaker 1", swappedIn["originalLabel"])
	swappedOut := statsEntry(t, doc, "Speaker 1")
	assert.EqualValues(t, 900, swappedOut["durationMs"])
	assert.EqualValues(t, "Speaker 2", swappedOut["originalLabel"])

	// A swap settles in one pass.
	res, err = structuredRewriter{}.Rewrite(path, names)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome)
}

func TestStructuredRewriter_AlternateSpeakerFieldIsRewritten(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, `{
  "segments": [
    {"id": "seg-1", "speaker": "Speaker 1", "startMs": 0, "endMs": 500, "text": "hey"}
  ]
}`)

	res, err := structuredRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	doc := decodeArtifact(t, path)
	seg := listItem(t, doc, "segments", 0)
	assert.Equal(t, "Alice", seg["speaker"])
	assert.Equal(t, "Speaker 1", seg["originalLabel"])
}

func TestStructuredRewriter_UnparseableFileReportsParseFailed(t *testing.T) {
	dir := t.TempDir()
	content := "{this is not json"
	path := writeFixture(t, dir, StructuredFile, content)

	res, err := structuredRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alice"})
	require.NoError(t, err, "a bad file is a result, not an error")
	assert.Equal(t, ParseFailed, res.Outcome)
	assert.NotEmpty(t, res.Detail)
	assert.Equal(t, content, readBack(t, path))
}

func TestStructuredRewriter_UnknownLabelsLeaveFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, StructuredFile, sampleStructured)

	res, err := structuredRewriter{}.Rewrite(path, map[string]string{"Speaker 9": "Zoe"})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome)
	assert.Equal(t, sampleStructured, readBack(t, path))

	doc := decodeArtifact(t, path)
	_, ok := doc["updatedAt"]
	assert.False(t, ok, "no change, no timestamp")
}

// decodeArtifact parses a structured artifact back into a generic document.
func decodeArtifact(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(readBack(t, path)), &doc))
	return doc
}

// listItem returns element i of a list-valued field as a record.
func listItem(t *testing.T, doc map[string]interface{}, key string, i int) map[string]interface{} {
	t.Helper()
	list, ok := doc[key].([]interface{})
	require.True(t, ok, "missing list %q", key)
	require.Greater(t, len(list), i)
	rec, ok := list[i].(map[string]interface{})
	require.True(t, ok)
	return rec
}

// statsMap returns the speakerStats region.
func statsMap(t *testing.T, doc map[string]interface{}) map[string]interface{} {
	t.Helper()
	stats, ok := doc["speakerStats"].(map[string]interface{})
	require.True(t, ok, "missing speakerStats")
	return stats
}

// statsEntry returns one speakerStats entry by key.
func statsEntry(t *testing.T, doc map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	rec, ok := statsMap(t, doc)[key].(map[string]interface{})
	require.True(t, ok, "missing stats entry %q", key)
	return rec
}
