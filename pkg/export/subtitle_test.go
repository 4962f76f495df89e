package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSRT = "1\n" +
	"00:00:00,000 --> 00:00:01,200\n" +
	"Speaker 1: Hello there.\n" +
	"\n" +
	"2\n" +
	"00:00:01,200 --> 00:00:03,400\n" +
	"Speaker 2: Hi.\n" +
	"\n"

func TestSubtitleRewriter_RewritesCueTextOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, SubtitleFile, sampleSRT)

	res, err := subtitleRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	assert.Equal(t,
		"1\n"+
			"00:00:00,000 --> 00:00:01,200\n"+
			"Alice: Hello there.\n"+
			"\n"+
			"2\n"+
			"00:00:01,200 --> 00:00:03,400\n"+
			"Speaker 2: Hi.\n"+
			"\n",
		readBack(t, path))
}

func TestSubtitleRewriter_NumericLabelCannotCorruptTimingLines(t *testing.T) {
	dir := t.TempDir()
	srt := "1\n" +
		"00:00:00,000 --> 00:00:01,200\n" +
		"00: double-oh here\n" +
		"\n"
	path := writeFixture(t, dir, SubtitleFile, srt)

	// "00" prefixes every timing line; only the cue text may change.
	res, err := subtitleRewriter{}.Rewrite(path, map[string]string{"00": "Zed"})
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	assert.Equal(t,
		"1\n"+
			"00:00:00,000 --> 00:00:01,200\n"+
			"Zed: double-oh here\n"+
			"\n",
		readBack(t, path))
}

func TestSubtitleRewriter_HandlesMultiLineCueText(t *testing.T) {
	dir := t.TempDir()
	srt := "1\n" +
		"00:00:00,000 --> 00:00:04,000\n" +
		"Speaker 1: First line.\n" +
		"Speaker 1: Continued line.\n" +
		"\n"
	path := writeFixture(t, dir, SubtitleFile, srt)

	res, err := subtitleRewriter{}.Rewrite(path, map[string]string{"Speaker 1": "Alice"})
	require.NoError(t, err)
	assert.Equal(t, Changed, res.Outcome)

	assert.Equal(t,
		"1\n"+
			"00:00:00,000 --> 00:00:04,000\n"+
			"Alice: First line.\n"+
			"Alice: Continued line.\n"+
			"\n",
		readBack(t, path))
}

func TestSubtitleRewriter_UnchangedWhenNoCueMatches(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, SubtitleFile, sampleSRT)

	res, err := subtitleRewriter{}.Rewrite(path, map[string]string{"Speaker 9": "Zoe"})
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome)
	assert.Equal(t, sampleSRT, readBack(t, path))
}

func TestSubtitleRewriter_SecondPassIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, SubtitleFile, sampleSRT)
	names := map[string]string{"Speaker 1": "Alice", "Speaker 2": "Ben"}

	res, err := subtitleRewriter{}.Rewrite(path, names)
	require.NoError(t, err)
	require.Equal(t, Changed, res.Outcome)
	after := readBack(t, path)

	res, err = subtitleRewriter{}.Rewrite(path, names)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, res.Outcome)
	assert.Equal(t, after, readBack(t, path))
}
