package student

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or malformed client setting. It is
// returned by constructors before any request is attempted.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Setting != "" {
		return fmt.Sprintf("student: configuration %s: %v", e.Setting, e.Err)
	}
	return fmt.Sprintf("student: configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError reports input that cannot be sent: required fields that
// are missing or out of range, or a record that cannot be encoded. No
// request is sent when it is returned.
type ValidationError struct {
	Operation Operation
	Fields    []string
	Reason    string
	Err       error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("student: ")
	if e.Operation != "" {
		b.WriteString(string(e.Operation))
		b.WriteString(": ")
	}
	switch {
	case e.Reason != "":
		b.WriteString(e.Reason)
	case len(e.Fields) > 0:
		b.WriteString("missing required fields: ")
		b.WriteString(strings.Join(e.Fields, ", "))
	default:
		b.WriteString("invalid input")
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError covers network failures, timeouts and non-2xx replies.
// StatusCode is 0 when no HTTP response was received.
type TransportError struct {
	Operation  Operation
	StatusCode int
	Body       []byte
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("student: %s: node returned status %d: %v", e.Operation, e.StatusCode, e.Err)
	case e.Timeout:
		return fmt.Sprintf("student: %s: request timed out: %v", e.Operation, e.Err)
	default:
		return fmt.Sprintf("student: %s: transport: %v", e.Operation, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError reports a reply whose body is not valid JSON.
type DecodeError struct {
	Operation  Operation
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("student: %s: decode response: %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
