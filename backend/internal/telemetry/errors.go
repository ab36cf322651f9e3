package telemetry

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnconfigured is reported when credentials are missing or still placeholders.
	ErrUnconfigured = errors.New("credentials not configured")
	// ErrEmptyFeed is reported when the channel returned no feed entries.
	ErrEmptyFeed = errors.New("channel returned no feeds")
	// ErrNoData is reported when the latest feed holds only zero measurements.
	ErrNoData = errors.New("latest feed holds no measurements")
)

// StatusError is a non-200 answer from the remote service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s)", e.Code, e.Reason())
}

// Reason gives a diagnostic description for the status codes the service is known to use.
func (e *StatusError) Reason() string {
	switch e.Code {
	case http.StatusUnauthorized:
		return "api key rejected"
	case http.StatusNotFound:
		return "channel not found"
	case http.StatusTooManyRequests:
		return "rate limited"
	default:
		return http.StatusText(e.Code)
	}
}

func statusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}

	return 0
}
