package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"greenhouse-monitor/backend/pkg/utils"
)

// DefaultBaseURL is the public ThingSpeak API.
const DefaultBaseURL = "https://api.thingspeak.com"

// maxResults is the largest history window the service will return in one request.
const maxResults = 8000

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 4 << 20

// Timeouts bound each kind of request.
type Timeouts struct {
	Probe   time.Duration
	Latest  time.Duration
	History time.Duration
	Command time.Duration
	Status  time.Duration
}

// DefaultTimeouts favor immediacy for commands and status and patience for history.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Probe:   5 * time.Second,
		Latest:  10 * time.Second,
		History: 15 * time.Second,
		Command: 2 * time.Second,
		Status:  3 * time.Second,
	}
}

// Client is the telemetry and control client for one channel. It owns the freshness cache;
// construct one per process and share it.
type Client struct {
	l        *slog.Logger
	http     HTTPDoer
	creds    CredentialProvider
	baseURL  string
	cache    *Cache
	now      func() time.Time
	timeouts Timeouts
	observer Observer

	retention time.Duration

	mu         sync.Mutex
	lastSource Source
	statusLive bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport.
func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) { c.http = d }
}

// WithBaseURL points the client at another deployment of the service.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithCacheRetention sets how long cached readings remain usable.
func WithCacheRetention(d time.Duration) Option {
	return func(c *Client) { c.retention = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTimeouts overrides the request timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) { c.timeouts = t }
}

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client reading credentials from creds.
func New(l *slog.Logger, creds CredentialProvider, opts ...Option) *Client {
	c := &Client{
		l:          l.With(slog.String("component", "telemetry-client")),
		http:       http.DefaultClient,
		creds:      creds,
		baseURL:    DefaultBaseURL,
		now:        time.Now,
		timeouts:   DefaultTimeouts(),
		observer:   noopObserver{},
		retention:  DefaultCacheRetention,
		lastSource: SourceDefault,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.cache = NewCache(c.retention, c.now)

	return c
}

// Cache exposes the freshness cache for age and staleness queries and for clearing on logout.
func (c *Client) Cache() *Cache {
	return c.cache
}

// LastSource returns the source of the most recent FetchLatest result.
func (c *Client) LastSource() Source {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastSource
}

// LastStatusLive reports whether the most recent FetchStatus reflected a successful read.
// When false the returned status was the all-off default and should not be trusted.
func (c *Client) LastStatusLive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.statusLive
}

// credentials returns the current credentials, treating lookup errors as unconfigured.
func (c *Client) credentials(ctx context.Context) Credentials {
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		c.l.Warn("failed to load credentials", utils.ErrAttr(err))
		return Credentials{}
	}

	return creds
}

func (c *Client) feedsURL(creds Credentials, mode AccessMode, results int) string {
	q := url.Values{}
	q.Set("results", strconv.Itoa(results))

	if mode == AccessKeyedRead {
		q.Set("api_key", creds.ReadKey)
	}

	return fmt.Sprintf("%s/channels/%s/feeds.json?%s", c.baseURL, url.PathEscape(creds.ChannelID), q.Encode())
}

// get performs a GET bounded by timeout and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer utils.LogOnError(c.l, resp.Body.Close, "failed to close response body")

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return body, nil
}

// getFeeds requests the newest results entries and decodes them.
func (c *Client) getFeeds(ctx context.Context, creds Credentials, mode AccessMode, results int, timeout time.Duration) (feedsResponse, error) {
	body, err := c.get(ctx, c.feedsURL(creds, mode, results), timeout)
	if err != nil {
		return feedsResponse{}, err
	}

	resp, err := utils.FromJSONStreamLoose[feedsResponse](bytes.NewReader(body))
	if err != nil {
		return feedsResponse{}, fmt.Errorf("failed to decode feeds: %w", err)
	}

	return resp, nil
}

// logFailure logs a failed request, distinguishing protocol failures by status code.
func (c *Client) logFailure(op string, mode AccessMode, err error) {
	code := statusCode(err)
	c.observer.ObserveRequestFailure(op, code)

	if code != 0 {
		c.l.Warn("remote service rejected request",
			slog.String("operation", op),
			slog.String("access", mode.String()),
			slog.Int("status", code),
			slog.String("reason", (&StatusError{Code: code}).Reason()))

		return
	}

	c.l.Warn("request failed",
		slog.String("operation", op),
		slog.String("access", mode.String()),
		utils.ErrAttr(err))
}

func clampResults(n int) int {
	return min(max(n, 1), maxResults)
}
