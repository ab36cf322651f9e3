package telemetry

import (
	"context"
	"log/slog"
	"time"
)

const (
	opLatest  = "latest"
	opHistory = "history"
	opStatus  = "status"
	opCommand = "command"
)

// FetchLatest returns the most recent reading. It never fails: when live data is missing,
// invalid or unreachable it falls back to the cached reading, and to a zero reading stamped
// with the current time when the cache is empty or expired. Result.Source tells them apart.
func (c *Client) FetchLatest(ctx context.Context) Result {
	creds := c.credentials(ctx)
	if !creds.ReadConfigured() {
		c.l.Warn("serving fallback reading", slog.String("reason", ErrUnconfigured.Error()))
		return c.record(c.fallback())
	}

	mode := c.resolveAccess(ctx, creds)

	resp, err := c.getFeeds(ctx, creds, mode, 1, c.timeouts.Latest)
	if err != nil {
		c.logFailure(opLatest, mode, err)
		return c.record(c.fallback())
	}

	latest, ok := resp.latest()
	if !ok {
		c.l.Info("serving fallback reading", slog.String("reason", ErrEmptyFeed.Error()))
		return c.record(c.fallback())
	}

	reading := latest.reading()
	if reading.IsZero() {
		c.l.Info("serving fallback reading",
			slog.String("reason", ErrNoData.Error()),
			slog.String("feedTimestamp", reading.Timestamp))

		return c.record(c.fallback())
	}

	now := c.now()
	c.cache.Set(reading, now)

	c.l.Debug("fetched reading",
		slog.Float64("temperature", reading.Temperature),
		slog.Float64("humidity", reading.Humidity),
		slog.Float64("soilMoisture", reading.SoilMoisture),
		slog.Float64("lightLevel", reading.LightLevel),
		slog.String("timestamp", reading.Timestamp))

	return c.record(Result{Reading: reading, Source: SourceFresh, FetchedAt: now})
}

// fallback serves the cached reading if it is within the retention window, else a zero reading.
func (c *Client) fallback() Result {
	if e, ok := c.cache.Get(); ok {
		return Result{Reading: e.Reading, Source: SourceCached, FetchedAt: e.FetchedAt}
	}

	now := c.now()

	return Result{
		Reading:   Reading{Timestamp: now.UTC().Format(time.RFC3339)},
		Source:    SourceDefault,
		FetchedAt: now,
	}
}

func (c *Client) record(r Result) Result {
	c.mu.Lock()
	c.lastSource = r.Source
	c.mu.Unlock()

	c.observer.ObserveFetch(opLatest, r.Source)

	return r
}

// FetchHistory returns up to count readings, oldest first. Zero readings are kept as served.
// Any failure yields an empty slice; history is never cached.
func (c *Client) FetchHistory(ctx context.Context, count int) []Reading {
	creds := c.credentials(ctx)
	if !creds.ReadConfigured() {
		c.l.Warn("skipping history fetch", slog.String("reason", ErrUnconfigured.Error()))
		return []Reading{}
	}

	mode := c.resolveAccess(ctx, creds)

	resp, err := c.getFeeds(ctx, creds, mode, clampResults(count), c.timeouts.History)
	if err != nil {
		c.logFailure(opHistory, mode, err)
		return []Reading{}
	}

	readings := make([]Reading, 0, len(resp.Feeds))
	for _, f := range resp.Feeds {
		readings = append(readings, f.reading())
	}

	c.l.Debug("fetched history", slog.Int("requested", count), slog.Int("received", len(readings)))

	return readings
}

// FetchStatus returns the actuator state from the latest feed. There is no cache: any failure
// yields all actuators off, and LastStatusLive reports false.
func (c *Client) FetchStatus(ctx context.Context) DeviceStatus {
	status, _ := c.FetchStatusLive(ctx)

	return status
}

// FetchStatusLive is FetchStatus that also reports whether the status came from a
// successful read. Callers reconciling local state must ignore the all-off default.
func (c *Client) FetchStatusLive(ctx context.Context) (DeviceStatus, bool) {
	status, ok := c.fetchStatus(ctx)

	c.mu.Lock()
	c.statusLive = ok
	c.mu.Unlock()

	source := SourceDefault
	if ok {
		source = SourceFresh
	}

	c.observer.ObserveFetch(opStatus, source)

	return status, ok
}

func (c *Client) fetchStatus(ctx context.Context) (DeviceStatus, bool) {
	creds := c.credentials(ctx)
	if !creds.ReadConfigured() {
		c.l.Warn("skipping status fetch", slog.String("reason", ErrUnconfigured.Error()))
		return DeviceStatus{}, false
	}

	mode := c.resolveAccess(ctx, creds)

	resp, err := c.getFeeds(ctx, creds, mode, 1, c.timeouts.Status)
	if err != nil {
		c.logFailure(opStatus, mode, err)
		return DeviceStatus{}, false
	}

	latest, ok := resp.latest()
	if !ok {
		c.l.Warn("status fetch returned no entries")
		return DeviceStatus{}, false
	}

	return latest.status(), true
}
