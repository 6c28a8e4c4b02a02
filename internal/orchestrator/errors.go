package orchestrator

import (
	"fmt"
	"time"
)

// ValidationError is bad client-side input; no network call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// Upload error kinds.
const (
	UploadOversize        = "oversize"
	UploadUnsupportedType = "unsupported_type"
	UploadNetwork         = "network"
	UploadServer          = "server"
)

// UploadError is a classified upload failure.
type UploadError struct {
	Kind     string
	Filename string
	Reason   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %q failed (%s): %s", e.Filename, e.Kind, e.Reason)
}

// SessionError is a missing, expired or rejected session.
type SessionError struct {
	SessionID string
	Reason    string
}

func (e *SessionError) Error() string {
	if e.SessionID == "" {
		return "session error: " + e.Reason
	}
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Reason)
}

// InsufficientBalanceError means the user cannot pay for the submission. It is
// kept distinct from generic failures so callers can present a purchase prompt
// instead of a retry.
type InsufficientBalanceError struct {
	Reason string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Reason == "" {
		return "insufficient balance"
	}
	return "insufficient balance: " + e.Reason
}

// ConcurrentGenerationError means a task is already pending for the session.
type ConcurrentGenerationError struct {
	TaskID string
}

func (e *ConcurrentGenerationError) Error() string {
	return fmt.Sprintf("a generation task (%s) is already in flight for this session", e.TaskID)
}

// GenerationFailedError is a terminal failure reported by the backend.
type GenerationFailedError struct {
	TaskID  string
	Message string
}

func (e *GenerationFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("generation task %s failed", e.TaskID)
	}
	return fmt.Sprintf("generation task %s failed: %s", e.TaskID, e.Message)
}

// GenerationTimeoutError means a polling ceiling was exceeded while the task
// was still pending or processing. Distinct from a backend-reported failure:
// the job may still complete server-side, but this client gave up waiting.
type GenerationTimeoutError struct {
	TaskID   string
	Attempts int
	Elapsed  time.Duration
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("generation task %s timed out after %d attempts (%s elapsed)", e.TaskID, e.Attempts, e.Elapsed)
}
