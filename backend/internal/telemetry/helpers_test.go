package telemetry

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testChannel  = "1234567"
	testReadKey  = "READKEY0123456789"
	testWriteKey = "WRITEKEY012345678"
)

func testCredentials() Credentials {
	return Credentials{ChannelID: testChannel, ReadKey: testReadKey, WriteKey: testWriteKey}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClock is a manually advanced clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

// fakeChannel emulates the feeds and update endpoints of one channel.
type fakeChannel struct {
	mu sync.Mutex

	public       bool
	feeds        []map[string]any
	feedsStatus  int
	feedsBody    string
	updateStatus int
	updateBody   string

	requests []*url.URL
}

func (f *fakeChannel) setFeeds(feeds ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.feeds = feeds
}

func (f *fakeChannel) requested() []*url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*url.URL(nil), f.requests...)
}

func (f *fakeChannel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.URL)
	q := r.URL.Query()

	switch {
	case r.URL.Path == "/channels/"+testChannel+"/feeds.json":
		if !f.public && q.Get("api_key") != testReadKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if f.feedsStatus != 0 {
			w.WriteHeader(f.feedsStatus)
			return
		}

		if f.feedsBody != "" {
			_, _ = io.WriteString(w, f.feedsBody)
			return
		}

		n, _ := strconv.Atoi(q.Get("results"))
		feeds := f.feeds
		if n > 0 && n < len(feeds) {
			feeds = feeds[len(feeds)-n:]
		}

		if feeds == nil {
			feeds = []map[string]any{}
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"channel": map[string]any{"id": testChannel, "name": "greenhouse"},
			"feeds":   feeds,
		})
	case r.URL.Path == "/update":
		if f.updateStatus != 0 {
			w.WriteHeader(f.updateStatus)
			return
		}

		body := f.updateBody
		if body == "" {
			body = "42"
		}

		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, ch *fakeChannel, creds Credentials) (*Client, *testClock) {
	t.Helper()

	srv := httptest.NewServer(ch)
	t.Cleanup(srv.Close)

	clk := newTestClock()
	c := New(discardLogger(), StaticCredentials(creds),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithClock(clk.Now),
	)

	return c, clk
}

// countingDoer fails every request and counts them.
type countingDoer struct {
	calls atomic.Int32
	err   error
}

func (d *countingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls.Add(1)

	if d.err == nil {
		return nil, errors.New("network unreachable")
	}

	return nil, d.err
}

// statusDoer answers every request with a fixed status and body.
type statusDoer struct {
	status int
	body   string
	last   *http.Request
}

func (d *statusDoer) Do(req *http.Request) (*http.Response, error) {
	d.last = req

	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func feedEntry(f1, f2, f3, f4 any, createdAt string) map[string]any {
	return map[string]any{
		"created_at": createdAt,
		"entry_id":   1,
		"field1":     f1,
		"field2":     f2,
		"field3":     f3,
		"field4":     f4,
	}
}
