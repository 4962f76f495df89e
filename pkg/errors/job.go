package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a classified diarization job failure.
type ErrorCode string

const (
	ErrAudioNotFound    ErrorCode = "audio_not_found"
	ErrLaunchFailure    ErrorCode = "launch_failure"
	ErrProcessFailure   ErrorCode = "process_failure"
	ErrPayloadMissing   ErrorCode = "payload_missing"
	ErrPersistenceError ErrorCode = "persistence_error"
)

// Pipeline stages a job moves through. Classification falls back to the
// stage's default code when an error carries no code of its own.
const (
	StageValidate = "validate"
	StageLaunch   = "launch"
	StageRun      = "run"
	StageResolve  = "resolve"
	StagePersist  = "persist"
)

// stageDefaults maps each pipeline stage to the failure code an
// unclassified error at that stage implies.
var stageDefaults = map[string]ErrorCode{
	StageValidate: ErrAudioNotFound,
	StageLaunch:   ErrLaunchFailure,
	StageRun:      ErrProcessFailure,
	StageResolve:  ErrPayloadMissing,
	StagePersist:  ErrPersistenceError,
}

// JobError is a structured error for diarization job failures.
type JobError struct {
	Code       ErrorCode
	Stage      string
	MeetingID  string
	Message    string
	Diagnostic string // captured engine stderr (or stdout) tail, if any
	Cause      error
}

func (e *JobError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// NewJobError builds a JobError with an explicit code.
func NewJobError(code ErrorCode, stage, meetingID, message string) *JobError {
	return &JobError{
		Code:      code,
		Stage:     stage,
		MeetingID: meetingID,
		Message:   message,
	}
}

// Classify inspects an error and returns a *JobError with the appropriate code.
// Already-classified errors pass through unchanged; storage sentinels map to
// ErrPersistenceError; anything else falls back to the stage's default code.
func Classify(err error, stage, meetingID string) *JobError {
	if err == nil {
		return nil
	}

	var je *JobError
	if errors.As(err, &je) {
		return je
	}

	code, ok := stageDefaults[stage]
	if !ok {
		code = ErrPersistenceError
	}
	if errors.Is(err, ErrPersistence) || errors.Is(err, ErrNotFound) {
		code = ErrPersistenceError
	}

	return &JobError{
		Code:      code,
		Stage:     stage,
		MeetingID: meetingID,
		Message:   err.Error(),
		Cause:     err,
	}
}

// CodeOf extracts the failure code from an error chain, or "" if the chain
// carries no JobError.
func CodeOf(err error) ErrorCode {
	var je *JobError
	if errors.As(err, &je) {
		return je.Code
	}
	return ""
}
