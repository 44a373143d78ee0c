package groq

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is wrapped by ConfigurationError when no key was resolved.
var ErrMissingAPIKey = errors.New("missing Groq API key")

// ConfigurationError reports a missing or unusable credential. It is raised
// before any network call.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	if e == nil || e.Err == nil {
		return "configuration error"
	}
	return e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ValidationError names the option that violated a local constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TransportError wraps network failures, non-2xx responses and undecodable
// response bodies. StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("groq: request failed with status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("groq: request failed with status %d", e.StatusCode)
	case e.Message != "":
		return "groq: " + e.Message
	default:
		return "groq: request failed"
	}
}

func (e *TransportError) Unwrap() error { return e.Cause }

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConfiguration(err error) bool {
	var e *ConfigurationError
	return errors.As(err, &e)
}

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}
