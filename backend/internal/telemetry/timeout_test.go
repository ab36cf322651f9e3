package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newHangingServer accepts requests and never answers until the test ends.
func newHangingServer(t *testing.T) *httptest.Server {
	t.Helper()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))

	// Cleanups run last-in first-out: unblock handlers before Close waits on them
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	return srv
}

func TestWithTimeouts_HangingService(t *testing.T) {
	t.Parallel()

	const (
		timeout = 50 * time.Millisecond
		bound   = 2 * time.Second
	)

	timeouts := Timeouts{Probe: timeout, Latest: timeout, History: timeout, Command: timeout, Status: timeout}

	tests := []struct {
		name string
		call func(c *Client) bool
	}{
		{
			name: "send",
			call: func(c *Client) bool { return c.Send(context.Background(), Watering, true) },
		},
		{
			name: "status",
			call: func(c *Client) bool {
				_, live := c.FetchStatusLive(context.Background())
				return live
			},
		},
		{
			name: "history",
			call: func(c *Client) bool { return len(c.FetchHistory(context.Background(), 5)) != 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newHangingServer(t)
			c := New(discardLogger(), StaticCredentials(testCredentials()),
				WithBaseURL(srv.URL),
				WithHTTPClient(srv.Client()),
				WithTimeouts(timeouts),
			)

			start := time.Now()
			ok := tt.call(c)
			elapsed := time.Since(start)

			if ok {
				t.Error("call against a hanging service reported success")
			}

			if elapsed > bound {
				t.Errorf("call took %v, want under %v", elapsed, bound)
			}
		})
	}
}
