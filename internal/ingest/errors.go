package ingest

import "fmt"

// ValidationError rejects a batch before anything is persisted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ProcessingError reports a failed acceptance transaction. Nothing of the chunk was
// kept, so the agent may resend it.
type ProcessingError struct {
	RunID string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing chunk for run %s: %v", e.RunID, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
