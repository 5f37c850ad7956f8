package audits

import (
	"errors"
	"fmt"
)

// Input-stage errors are user-correctable; the rest surface with the failed stage.
var (
	ErrEmptyInput      = errors.New("contract source is empty")
	ErrUnsupportedFile = errors.New("unsupported file extension")
	ErrPayloadTooLarge = errors.New("contract exceeds the configured size limit")
	ErrFormatting      = errors.New("analysis result cannot be formatted")
	ErrDelivery        = errors.New("email delivery failed")
	ErrNotFound        = errors.New("report not found")
)

// Stage of a session. Transitions are strictly sequential:
// uploaded → analyzing → formatted → stored → notified → done.
type Stage string

const (
	StageUploaded  Stage = "uploaded"
	StageAnalyzing Stage = "analyzing"
	StageFormatted Stage = "formatted"
	StageStored    Stage = "stored"
	StageNotified  Stage = "notified"
)

// SessionError is the Failed(stage, reason) terminal state of one audit session.
type SessionError struct {
	Stage Stage
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("audit session failed at stage %s: %v", e.Stage, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// FailedAt wraps err as a terminal session failure.
func FailedAt(stage Stage, err error) *SessionError {
	return &SessionError{Stage: stage, Err: err}
}
