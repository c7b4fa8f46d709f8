package output

import (
	"errors"
	"fmt"
)

// OutputError is a failed start attempt.
type OutputError struct {
	Code    string
	Message string
	Cause   error
}

func (e *OutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *OutputError) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeNotReady     = "NOT_READY"
	ErrCodeNoParent     = "NO_PARENT"
	ErrCodeNoVideo      = "NO_VIDEO"
	ErrCodeInvalidVideo = "INVALID_VIDEO"
	ErrCodeService      = "SERVICE_ERROR"
	ErrCodeOutput       = "OUTPUT_ERROR"
	ErrCodeVideoOutput  = "VIDEO_OUTPUT_ERROR"
	ErrCodeAudioSource  = "AUDIO_SOURCE_ERROR"
	ErrCodeAudioOutput  = "AUDIO_OUTPUT_ERROR"
	ErrCodeVideoEncoder = "VIDEO_ENCODER_ERROR"
	ErrCodeAudioEncoder = "AUDIO_ENCODER_ERROR"
	ErrCodeStartFailed  = "START_FAILED"
)

// Causes of configuration errors. A start attempt failing with one of these
// is expected and retried silently.
var (
	ErrNotReady     = errors.New("host not initialized or filter disabled")
	ErrNoVideo      = errors.New("no video configuration")
	ErrInvalidVideo = errors.New("invalid video parameters")
)

// NewOutputError creates a new output error
func NewOutputError(code, message string, cause error) *OutputError {
	return &OutputError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsConfigError reports whether err is an expected, silent start abort.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNotReady) || errors.Is(err, ErrNoVideo) || errors.Is(err, ErrInvalidVideo)
}
