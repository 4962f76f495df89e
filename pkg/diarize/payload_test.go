package diarize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64       { return &v }
func float64p(v float64) *float64 { return &v }

func TestPayloadSegment_ResolvedLabel(t *testing.T) {
	tests := []struct {
		name    string
		segment PayloadSegment
		want    string
	}{
		{"speakerLabel field", PayloadSegment{SpeakerLabel: "Speaker 1"}, "Speaker 1"},
		{"speaker field", PayloadSegment{Speaker: "Speaker 2"}, "Speaker 2"},
		{"speakerLabel wins over speaker", PayloadSegment{SpeakerLabel: "Speaker 1", Speaker: "Speaker 2"}, "Speaker 1"},
		{"neither set", PayloadSegment{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.segment.ResolvedLabel())
		})
	}
}

func TestPayloadSegment_ResolvedText(t *testing.T) {
	tests := []struct {
		name    string
		segment PayloadSegment
		want    string
	}{
		{"transcript field", PayloadSegment{Transcript: "hello"}, "hello"},
		{"text field", PayloadSegment{Text: "hi"}, "hi"},
		{"transcript wins over text", PayloadSegment{Transcript: "hello", Text: "hi"}, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.segment.ResolvedText())
		})
	}
}

func TestPayloadSegment_Timing(t *testing.T) {
	tests := []struct {
		name      string
		segment   PayloadSegment
		wantStart int64
		wantEnd   int64
	}{
		{
			name:      "millisecond fields taken directly",
			segment:   PayloadSegment{StartMs: int64p(1200), EndMs: int64p(4800)},
			wantStart: 1200,
			wantEnd:   4800,
		},
		{
			name:      "seconds rounded to nearest millisecond",
			segment:   PayloadSegment{Start: float64p(1.2345), End: float64p(4.8996)},
			wantStart: 1235,
			wantEnd:   4900,
		},
		{
			name:      "milliseconds win when both spellings appear",
			segment:   PayloadSegment{StartMs: int64p(1000), Start: float64p(9.9), EndMs: int64p(2000), End: float64p(99.9)},
			wantStart: 1000,
			wantEnd:   2000,
		},
		{
			name:      "missing bounds read as zero",
			segment:   PayloadSegment{},
			wantStart: 0,
			wantEnd:   0,
		},
		{
			name:      "end before start is raised to start",
			segment:   PayloadSegment{StartMs: int64p(5000), EndMs: int64p(3000)},
			wantStart: 5000,
			wantEnd:   5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.segment.Timing()
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestPayload_DecodesEngineResult(t *testing.T) {
	raw := `{
		"status": "completed",
		"meetingId": "m-1",
		"generatedAt": "2025-06-01T10:00:00Z",
		"device": "cuda",
		"whisperModel": "medium.en",
		"language": "en",
		"durationMs": 60000,
		"speakers": [
			{"label": "Speaker 1", "displayName": "Speaker 1", "originalLabel": "SPEAKER_00"},
			{"label": "Speaker 2"}
		],
		"segments": [
			{"id": 0, "speakerLabel": "Speaker 1", "startMs": 0, "endMs": 1200, "transcript": "hello"},
			{"speaker": "Speaker 2", "start": 1.2, "end": 2.0, "text": "hi"}
		],
		"speakerStats": {"Speaker 1": {"segments": 1, "durationMs": 1200}}
	}`

	var payload Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, "completed", payload.Status)
	assert.Equal(t, "m-1", payload.MeetingID)
	require.NotNil(t, payload.DurationMs)
	assert.Equal(t, int64(60000), *payload.DurationMs)

	require.Len(t, payload.Speakers, 2)
	assert.Equal(t, "Speaker 1", payload.Speakers[0].Label)
	assert.Equal(t, "", payload.Speakers[1].DisplayName)

	require.Len(t, payload.Segments, 2)
	assert.Equal(t, "Speaker 1", payload.Segments[0].ResolvedLabel())
	assert.Equal(t, "hello", payload.Segments[0].ResolvedText())

	start, end := payload.Segments[1].Timing()
	assert.Equal(t, int64(1200), start)
	assert.Equal(t, int64(2000), end)
}

func TestPayload_DecodesFailureResult(t *testing.T) {
	raw := `{"status": "failed", "meetingId": "m-2", "error": "cuda out of memory"}`

	var payload Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, "failed", payload.Status)
	assert.Equal(t, "cuda out of memory", payload.Error)
	assert.Nil(t, payload.DurationMs)
	assert.Empty(t, payload.Speakers)
}
