// Package metrics exports telemetry client and HTTP API instruments to Prometheus.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"greenhouse-monitor/backend/internal/telemetry"
)

const namespace = "greenhouse"

// Metrics implements telemetry.Observer. Instruments are registered on a private registry
// so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	fetches          *prometheus.CounterVec
	requestFailures  *prometheus.CounterVec
	commands         *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	lastReadingValue *prometheus.GaugeVec
}

// New creates the instruments. cache may be nil; when set, its age is exported as a gauge.
func New(cache *telemetry.Cache) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Telemetry fetches by operation and where the result came from.",
		}, []string{"op", "source"}),
		requestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_failures_total",
			Help:      "Failed requests to the channel service by operation and HTTP status (0 for transport errors).",
		}, []string{"op", "code"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Actuator commands by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		lastReadingValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Most recent environment reading by measurement.",
		}, []string{"measurement"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.fetches,
		m.requestFailures,
		m.commands,
		m.httpRequests,
		m.httpDuration,
		m.lastReadingValue,
	)

	if cache != nil {
		m.TrackCache(cache)
	}

	return m
}

// TrackCache exports the age of cache as a gauge. Call it at most once per Metrics.
func (m *Metrics) TrackCache(cache *telemetry.Cache) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_age_seconds",
		Help:      "Age of the cached reading, -1 when the cache is empty.",
	}, func() float64 {
		age, ok := cache.Age()
		if !ok {
			return -1
		}

		return age.Seconds()
	}))
}

func (m *Metrics) ObserveFetch(op string, source telemetry.Source) {
	m.fetches.WithLabelValues(op, string(source)).Inc()
}

func (m *Metrics) ObserveRequestFailure(op string, statusCode int) {
	m.requestFailures.WithLabelValues(op, strconv.Itoa(statusCode)).Inc()
}

func (m *Metrics) ObserveCommand(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}

	m.commands.WithLabelValues(result).Inc()
}

// ObserveReading exports the measurements of a non-default result.
func (m *Metrics) ObserveReading(r telemetry.Result) {
	if r.Source == telemetry.SourceDefault {
		return
	}

	m.lastReadingValue.WithLabelValues("temperature").Set(r.Reading.Temperature)
	m.lastReadingValue.WithLabelValues("humidity").Set(r.Reading.Humidity)
	m.lastReadingValue.WithLabelValues("soil_moisture").Set(r.Reading.SoilMoisture)
	m.lastReadingValue.WithLabelValues("light_level").Set(r.Reading.LightLevel)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack lets websocket upgrades pass through the middleware.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	s.status = http.StatusSwitchingProtocols

	return http.NewResponseController(s.ResponseWriter).Hijack()
}

// Middleware records request counts and durations labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		m.httpRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
