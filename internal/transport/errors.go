package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/domain"
)

// TimeoutError reports that the configured request timeout elapsed, either
// before the response arrived or between stream events.
type TimeoutError struct {
	Provider string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timeout", e.Provider)
}

// statusError reports a non-2xx upstream status or an unparseable payload.
type statusError struct {
	provider   string
	status     int
	body       []byte
	badPayload bool
}

func (e *statusError) Error() string {
	if e.badPayload {
		return fmt.Sprintf("%s: unparseable upstream payload (status %d)", e.provider, e.status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.provider, e.status, truncate(e.body, 256))
}

// AsDomainError translates a transport failure into the domain taxonomy.
func AsDomainError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var se *statusError
	if errors.As(err, &se) {
		return &domain.TransportError{Provider: provider, Status: se.status, Err: err}
	}

	var toErr *TimeoutError
	if errors.As(err, &toErr) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.TransportError{Provider: provider, Timeout: true, Err: err}
	}

	var de *domain.TransportError
	if errors.As(err, &de) {
		return err
	}

	return &domain.TransportError{Provider: provider, Err: err}
}

func (t *Transport) wrapErr(provider string, err error) error {
	return AsDomainError(provider, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
