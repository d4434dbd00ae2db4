package domain

import (
	"errors"
	"fmt"
)

// ConfigError indicates an invalid or unknown gateway configuration for a
// request. It is fatal for the request, surfaced before any network call,
// and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigError builds a ConfigError with a formatted reason.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// TransportError indicates a failed exchange with an upstream provider:
// connect failure, non-2xx status, timeout, or an unparseable payload.
type TransportError struct {
	Provider string
	Status   int // 0 when no HTTP status was received
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: upstream timeout", e.Provider)
	case e.Status != 0:
		return fmt.Sprintf("%s: upstream status %d: %v", e.Provider, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: upstream error: %v", e.Provider, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a request-level configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTimeout reports whether err is an upstream timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}

// ErrorDetail is the canonical error payload exposed at the boundary.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
}

// ErrorResponse is the canonical error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// NewErrorResponse classifies err into the canonical error envelope.
func NewErrorResponse(err error) *ErrorResponse {
	detail := ErrorDetail{Message: err.Error(), Type: "server_error"}

	var ce *ConfigError
	var te *TransportError
	switch {
	case errors.As(err, &ce):
		detail.Type = "invalid_request_error"
	case errors.As(err, &te):
		detail.Type = "upstream_error"
		if te.Status != 0 {
			detail.Code = te.Status
		}
		if te.Timeout {
			detail.Type = "timeout_error"
		}
	}

	return &ErrorResponse{Error: detail}
}
