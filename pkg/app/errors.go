package app

import (
	"errors"
	"fmt"
	"time"

	"comterm/pkg/receive"
	"comterm/pkg/serial"
)

// ErrorKind classifies errors reported during a session. None of them end
// the session.
type ErrorKind int

const (
	// ErrorConfig: the port rejected new settings.
	ErrorConfig ErrorKind = iota
	// ErrorIO: a port or capture write failed.
	ErrorIO
	// ErrorAnomaly: something odd but harmless, such as sending while
	// disconnected.
	ErrorAnomaly
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case ErrorConfig:
		return "config"
	case ErrorIO:
		return "io"
	case ErrorAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

// AppError represents an application-specific error
type AppError struct {
	Kind      ErrorKind
	Message   string
	Cause     error
	Timestamp time.Time
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{
		Kind:      kind,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// Classify returns the kind of err. Errors that are not otherwise
// recognised are treated as I/O failures.
func Classify(err error) ErrorKind {
	var appErr *AppError
	var captureErr *receive.CaptureError
	var serialErr *serial.SerialError
	switch {
	case errors.As(err, &appErr):
		return appErr.Kind
	case errors.As(err, &captureErr):
		return ErrorIO
	case errors.As(err, &serialErr):
		return ErrorConfig
	default:
		return ErrorIO
	}
}
