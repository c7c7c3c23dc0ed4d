package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReference - malformed storage locator
	ErrInvalidReference = errors.New("invalid reference")
	// ErrSourceNotFound - the source object does not exist
	ErrSourceNotFound = errors.New("source not found")
	// ErrTranscriptionFailed - transcription job ended with FAILED
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrResultParse - transcription result document is missing or malformed
	ErrResultParse = errors.New("result parse error")
	// ErrGeneration - text generation failed
	ErrGeneration = errors.New("generation error")
	// ErrNoCredentials - generation service is not configured
	ErrNoCredentials = errors.New("no credentials configured")
	// ErrSynthesis - speech synthesis failed
	ErrSynthesis = errors.New("synthesis error")
	// ErrLocalWrite - can't write local audio file
	ErrLocalWrite = errors.New("local write error")
	// ErrStorageWrite - can't write to object store
	ErrStorageWrite = errors.New("storage write error")
	// ErrTimeout - transcription did not finish in time
	ErrTimeout = errors.New("timeout")
)

// StageError tags an error with the failing stage
type StageError struct {
	Stage Stage
	Err   error
}

// NewStageError wraps err with stage info
func NewStageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failing stage or empty string
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
