// Package poller fetches the latest reading on a fixed interval and hands every result to
// the registered sinks.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/utils"
)

// DefaultInterval matches the rate at which the devices publish new entries.
const DefaultInterval = 5 * time.Minute

// Fetcher returns the latest reading. *telemetry.Client implements it.
type Fetcher interface {
	FetchLatest(ctx context.Context) telemetry.Result
}

// Sink receives each fetched result.
type Sink interface {
	HandleReading(ctx context.Context, r telemetry.Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r telemetry.Result) error

func (f SinkFunc) HandleReading(ctx context.Context, r telemetry.Result) error {
	return f(ctx, r)
}

type Poller struct {
	l        *slog.Logger
	fetcher  Fetcher
	interval time.Duration

	mu    sync.RWMutex
	sinks []Sink
	last  *telemetry.Result
}

func New(l *slog.Logger, fetcher Fetcher, interval time.Duration, sinks ...Sink) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller{
		l:        l.With(slog.String("component", "poller")),
		fetcher:  fetcher,
		interval: interval,
		sinks:    sinks,
	}
}

// AddSink registers another sink. Safe to call while Run is active.
func (p *Poller) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sinks = append(p.sinks, s)
}

// Run fetches immediately and then once per interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.l.Info("Polling started", slog.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			p.l.Info("Polling stopped")
			return nil
		case <-ticker.C:
			p.Trigger(ctx)
		}
	}
}

// Trigger performs one fetch and delivers the result. It may run concurrently with the
// timer; the freshness cache resolves overlapping fetches by last write.
func (p *Poller) Trigger(ctx context.Context) telemetry.Result {
	start := time.Now()
	r := p.fetcher.FetchLatest(ctx)

	p.mu.Lock()
	p.last = &r
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()

	p.l.Debug("Polled reading", slog.String("source", string(r.Source)), utils.Since(start))

	for _, s := range sinks {
		if err := s.HandleReading(ctx, r); err != nil {
			p.l.Warn("sink failed to handle reading", utils.ErrAttr(err))
		}
	}

	return r
}

// Last returns the most recent result, if any fetch has completed.
func (p *Poller) Last() (telemetry.Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.last == nil {
		return telemetry.Result{}, false
	}

	return *p.last, true
}
