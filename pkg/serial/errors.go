package serial

import "fmt"

// SerialError represents a serial port specific error
type SerialError struct {
	Operation string
	Port      string
	Cause     error
}

// Error implements the error interface
func (e *SerialError) Error() string {
	where := ""
	if e.Port != "" {
		where = " on port " + e.Port
	}
	if e.Cause != nil {
		return fmt.Sprintf("serial %s operation failed%s: %v", e.Operation, where, e.Cause)
	}
	return fmt.Sprintf("serial %s operation failed%s", e.Operation, where)
}

// Unwrap returns the underlying cause
func (e *SerialError) Unwrap() error {
	return e.Cause
}

// NewSerialError creates a new serial error
func NewSerialError(operation, port string, cause error) *SerialError {
	return &SerialError{
		Operation: operation,
		Port:      port,
		Cause:     cause,
	}
}

// ConnectionState represents the state of a serial connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the string representation of ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
