package mqtt

import (
	"context"
	"log/slog"
	"time"

	"greenhouse-monitor/backend/internal/controller"
	"greenhouse-monitor/backend/internal/telemetry"
)

const (
	TelemetryGroup = "Telemetry"
	ControlGroup   = "Control"

	commandTimeout = 30 * time.Second
)

// Publisher publishes a registered operation. *mqtt.MQTTClient implements it.
type Publisher interface {
	Publish(operationID string, params map[string]string, payload any) error
}

// Controller applies actuator commands. *controller.Controller implements it.
type Controller interface {
	Apply(ctx context.Context, cmd controller.Command) (controller.State, error)
}

// Handler bridges the controller and poller to the local broker.
type Handler struct {
	l     *slog.Logger
	pub   Publisher
	ctrl  Controller
	creds telemetry.CredentialProvider
	now   func() time.Time
}

// NewMQTTHandler creates a new MQTT handler.
func NewMQTTHandler(l *slog.Logger, pub Publisher, ctrl Controller, creds telemetry.CredentialProvider) *Handler {
	return &Handler{
		l:     l.With(slog.String("component", "mqtt-handler")),
		pub:   pub,
		ctrl:  ctrl,
		creds: creds,
		now:   time.Now,
	}
}

// channelID returns the configured channel id, or false while none is set.
func (h *Handler) channelID(ctx context.Context) (string, bool) {
	creds, err := h.creds.Credentials(ctx)
	if err != nil || !creds.ChannelConfigured() {
		return "", false
	}

	return creds.ChannelID, true
}
