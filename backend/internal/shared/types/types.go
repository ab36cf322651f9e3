// Package types holds the response bodies shared by the monitor's HTTP surfaces.
package types

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrorResponse is the body of every failed request. Validation failures list one message
// per rejected field, e.g. {"results": "must be between 1 and 8000"}.
//
//nolint:errname // ErrorResponse is an API response type, not a traditional error
type ErrorResponse struct {
	// HTTP status code, not sent to the client
	StatusCode int               `json:"-"`
	RequestID  string            `json:"requestID"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Error returns the message followed by the rejected field names, sorted.
func (e *ErrorResponse) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}

	return e.Message + ": " + strings.Join(slices.Sorted(maps.Keys(e.Errors)), ", ")
}

// PingResponse answers a liveness check with the running build and the server clock, which
// dashboards compare against channel timestamps.
type PingResponse struct {
	Message    string     `json:"message"`
	Status     PingStatus `json:"status"`
	Build      string     `json:"build"`
	ServerTime time.Time  `json:"serverTime"`
}

type PingStatus string

const PingStatusOK PingStatus = "OK"
