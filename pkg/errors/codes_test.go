package errors

import (
	"strings"
	"testing"
)

func TestErrorCodeRegistryComplete(t *testing.T) {
	codes := []ErrorCode{
		ErrAudioNotFound,
		ErrLaunchFailure,
		ErrProcessFailure,
		ErrPayloadMissing,
		ErrPersistenceError,
	}

	for _, code := range codes {
		info, ok := ErrorCodeRegistry[code]
		if !ok {
			t.Errorf("registry missing code %q", code)
			continue
		}
		if info.Code != code {
			t.Errorf("registry entry for %q has mismatched code %q", code, info.Code)
		}
		if info.Description == "" {
			t.Errorf("code %q has empty description", code)
		}
		if info.SuggestedAction == "" {
			t.Errorf("code %q has empty suggested action", code)
		}
	}

	if len(ErrorCodeRegistry) != len(codes) {
		t.Errorf("registry has %d entries, want %d", len(ErrorCodeRegistry), len(codes))
	}
}

func TestGetDescription(t *testing.T) {
	if got := GetDescription(ErrAudioNotFound); !strings.Contains(got, "Audio") {
		t.Errorf("GetDescription(audio_not_found) = %q, want audio-related text", got)
	}
	if got := GetDescription("nope"); got != "Unknown error" {
		t.Errorf("GetDescription(unknown) = %q, want Unknown error", got)
	}
}

func TestGetSuggestedAction(t *testing.T) {
	if got := GetSuggestedAction(ErrProcessFailure); !strings.Contains(got, "mbud") {
		t.Errorf("GetSuggestedAction(process_failure) = %q, want an mbud command hint", got)
	}
	if got := GetSuggestedAction("nope"); !strings.Contains(got, "mbud meeting show") {
		t.Errorf("GetSuggestedAction(unknown) = %q, want the default hint", got)
	}
}
