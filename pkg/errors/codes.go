package errors

// ErrorCodeInfo contains metadata about a job failure code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps failure codes to their metadata. None of the codes
// are retried automatically; the only recovery path is an explicit reprocess.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	ErrAudioNotFound: {
		Code:            ErrAudioNotFound,
		Description:     "Audio file missing at launch time",
		SuggestedAction: "Verify the recording exists on disk, then run: mbud meeting reprocess <meeting-id>",
	},
	ErrLaunchFailure: {
		Code:            ErrLaunchFailure,
		Description:     "Analysis process could not be started",
		SuggestedAction: "Check engine.python and engine.script: mbud config show",
	},
	ErrProcessFailure: {
		Code:            ErrProcessFailure,
		Description:     "Analysis process exited with a non-zero code",
		SuggestedAction: "Inspect the captured diagnostic: mbud meeting show <meeting-id>",
	},
	ErrPayloadMissing: {
		Code:            ErrPayloadMissing,
		Description:     "No parseable result found in process output or the output directory",
		SuggestedAction: "Check the engine log level, then run: mbud meeting reprocess <meeting-id>",
	},
	ErrPersistenceError: {
		Code:            ErrPersistenceError,
		Description:     "Storage rejected a read or write",
		SuggestedAction: "Check the storage configuration: mbud config show",
	},
}

// GetSuggestedAction returns the suggested action for the given failure code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check the job log: mbud meeting show <meeting-id>"
}

// GetDescription returns the human-readable description for the given failure code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
