package api

import (
	"log/slog"
	"time"

	localservices "greenhouse-monitor/backend/internal/local/services"
	"greenhouse-monitor/backend/pkg/router"
)

const (
	CoreGroup        = "Core"
	ReadingsGroup    = "Readings"
	DevicesGroup     = "Devices"
	CredentialsGroup = "Credentials"
)

// Handler represents the local API handler.
type Handler struct {
	l   *slog.Logger
	svc *localservices.Services
	now func() time.Time
}

// NewHandler creates a new local API handler.
func NewHandler(l *slog.Logger, svc *localservices.Services) *Handler {
	return &Handler{
		l:   l.With(slog.String("component", "localapi")),
		svc: svc,
		now: time.Now,
	}
}

// Register mounts every documented route under rb.
func (h *Handler) Register(rb *router.RouteBuilder) {
	h.RegisterPing("/ping", rb)
	h.RegisterHealth("/health", rb)

	rb.Route("/readings", func(rb *router.RouteBuilder) {
		h.RegisterLatestReading("/latest", rb)
		h.RegisterReadingHistory("/history", rb)
		h.RegisterRefreshReading("/refresh", rb)
		h.RegisterClearCache("/cache", rb)
	})

	rb.Route("/devices", func(rb *router.RouteBuilder) {
		h.RegisterDeviceStatus("/status", rb)
		h.RegisterDeviceState("/state", rb)
		h.RegisterSetActuator("/{actuator}", rb)
		h.RegisterCommandLog("/commands", rb)
	})

	rb.Route("/credentials", func(rb *router.RouteBuilder) {
		h.RegisterGetCredentials("/", rb)
		h.RegisterPutCredentials("/", rb)
		h.RegisterDeleteCredentials("/", rb)
	})
}

func pathParam(description string) map[string]router.ParameterSpec {
	return map[string]router.ParameterSpec{
		"actuator": {In: router.ParameterInPath, Description: description, Required: true},
	}
}
