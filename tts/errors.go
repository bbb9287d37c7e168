package tts

import (
	"errors"
	"fmt"
)

// Common errors for the speech pipeline.
var (
	// Session errors
	ErrSessionClosed    = errors.New("speech session is closed")
	ErrDispatcherClosed = errors.New("synthesis dispatcher is closed")

	// Engine errors
	ErrEngineUnavailable = errors.New("speech engine is not available")
	ErrSynthesisFailed   = errors.New("text synthesis failed")
	ErrInvalidEngine     = errors.New("invalid speech engine specified")

	// Output errors
	ErrAudioUnavailable = errors.New("audio device unavailable")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorCode identifies specific error types.
type ErrorCode string

const (
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeEngineTimeout     ErrorCode = "ENGINE_TIMEOUT"
	ErrorCodeAudioDevice       ErrorCode = "AUDIO_DEVICE"
	ErrorCodeAudioFormat       ErrorCode = "AUDIO_FORMAT"
	ErrorCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrorCodeCanceled          ErrorCode = "CANCELED"
)

// TTSError represents a speech error with additional context.
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// NewTTSError creates a new error with context.
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error.
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// IsFatal returns true if the error should stop the program rather than
// degrade to silence.
func (e *TTSError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable, ErrorCodeAudioDevice:
		return true
	default:
		return false
	}
}

// IsFatal reports whether err carries a fatal error code.
func IsFatal(err error) bool {
	var te *TTSError
	if errors.As(err, &te) {
		return te.IsFatal()
	}
	return errors.Is(err, ErrEngineUnavailable) || errors.Is(err, ErrAudioUnavailable)
}
