package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestJobErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *JobError
		want string
	}{
		{
			name: "with stage",
			err:  &JobError{Code: ErrProcessFailure, Stage: StageRun, Message: "exit status 1"},
			want: "process_failure: run: exit status 1",
		},
		{
			name: "without stage",
			err:  &JobError{Code: ErrPayloadMissing, Message: "no result"},
			want: "payload_missing: no result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobErrorUnwrap(t *testing.T) {
	cause := errors.New("exec: file not found")
	je := &JobError{Code: ErrLaunchFailure, Stage: StageLaunch, Cause: cause}

	if !errors.Is(je, cause) {
		t.Error("errors.Is should see through JobError to the cause")
	}
	if je.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", je.Unwrap(), cause)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		stage    string
		wantCode ErrorCode
	}{
		{"nil error", nil, StageRun, ""},
		{"validate default", errors.New("stat failed"), StageValidate, ErrAudioNotFound},
		{"launch default", errors.New("fork failed"), StageLaunch, ErrLaunchFailure},
		{"run default", errors.New("exit status 2"), StageRun, ErrProcessFailure},
		{"resolve default", errors.New("bad json"), StageResolve, ErrPayloadMissing},
		{"persist default", errors.New("tx failed"), StagePersist, ErrPersistenceError},
		{"unknown stage", errors.New("mystery"), "elsewhere", ErrPersistenceError},
		{"persistence sentinel wins", fmt.Errorf("insert: %w", ErrPersistence), StageRun, ErrPersistenceError},
		{"not found sentinel wins", fmt.Errorf("get meeting: %w", ErrNotFound), StageResolve, ErrPersistenceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, tt.stage, "m-1")
			if tt.err == nil {
				if got != nil {
					t.Fatalf("Classify(nil) = %v, want nil", got)
				}
				return
			}
			if got.Code != tt.wantCode {
				t.Errorf("Classify() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.MeetingID != "m-1" {
				t.Errorf("Classify() meeting = %q, want m-1", got.MeetingID)
			}
			if !errors.Is(got, tt.err) {
				t.Error("classified error should wrap the original")
			}
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	orig := &JobError{Code: ErrAudioNotFound, Stage: StageValidate, MeetingID: "m-2", Message: "gone"}
	wrapped := fmt.Errorf("job: %w", orig)

	got := Classify(wrapped, StagePersist, "m-other")
	if got != orig {
		t.Errorf("Classify() = %v, want the original *JobError untouched", got)
	}
	if got.Code != ErrAudioNotFound {
		t.Errorf("passthrough should preserve code, got %q", got.Code)
	}
}

func TestCodeOf(t *testing.T) {
	je := NewJobError(ErrProcessFailure, StageRun, "m-3", "exit status 1")
	wrapped := fmt.Errorf("background job: %w", je)

	if got := CodeOf(wrapped); got != ErrProcessFailure {
		t.Errorf("CodeOf() = %q, want %q", got, ErrProcessFailure)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestStageDefaultsAreClosed(t *testing.T) {
	// Every stage must map to one of the five taxonomy codes.
	valid := map[ErrorCode]bool{
		ErrAudioNotFound:    true,
		ErrLaunchFailure:    true,
		ErrProcessFailure:   true,
		ErrPayloadMissing:   true,
		ErrPersistenceError: true,
	}
	for stage, code := range stageDefaults {
		if !valid[code] {
			t.Errorf("stage %q maps to unknown code %q", stage, code)
		}
		if !strings.ContainsAny(stage, "abcdefghijklmnopqrstuvwxyz") {
			t.Errorf("stage %q should be lowercase", stage)
		}
	}
}
