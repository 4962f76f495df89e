package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mberrors "github.com/meetingbuddy/mbud/pkg/errors"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"pending", StatusPending, false},
		{"processing", StatusProcessing, false},
		{"done", StatusDone, false},
		{"failed", StatusFailed, false},
		{"", "", true},
		{"completed", "", true},
		{"Pending", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, mberrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusDone.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestDefaultSeeds(t *testing.T) {
	seeds := DefaultSeeds(3)
	require.Len(t, seeds, 3)
	assert.Equal(t, "Speaker 1", seeds[0].Label)
	assert.Equal(t, "Speaker 3", seeds[2].Label)
	assert.Equal(t, seeds[1].Label, seeds[1].DisplayName, "display name defaults to the label")
}

func TestDefaultSeedsFallback(t *testing.T) {
	for _, count := range []int{0, -5} {
		seeds := DefaultSeeds(count)
		require.Len(t, seeds, 1, "count %d should fall back to one speaker", count)
		assert.Equal(t, "Speaker 1", seeds[0].Label)
	}
}

func TestNextOrdinalLabel(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"empty roster", nil, "Speaker 1"},
		{"sequential", []string{"Speaker 1", "Speaker 2"}, "Speaker 3"},
		{"custom labels", []string{"Alice", "Bob"}, "Speaker 3"},
		{"ordinal collision", []string{"Speaker 1", "Speaker 3"}, "Speaker 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextOrdinalLabel(tt.existing))
		})
	}
}

func TestSegmentDurationMs(t *testing.T) {
	seg := &Segment{StartMs: 250, EndMs: 1450}
	assert.Equal(t, int64(1200), seg.DurationMs())
}
