package local

import (
	"context"
	"log/slog"

	"greenhouse-monitor/backend/internal/commandlog"
	"greenhouse-monitor/backend/internal/controller"
	"greenhouse-monitor/backend/internal/poller"
	"greenhouse-monitor/backend/internal/telemetry"
)

// CredentialStore persists channel credentials. *credentials.Store implements it.
type CredentialStore interface {
	Credentials(ctx context.Context) (telemetry.Credentials, error)
	Set(ctx context.Context, creds telemetry.Credentials) error
	Clear(ctx context.Context) error
}

// CommandHistory lists dispatched commands. *commandlog.Log implements it.
type CommandHistory interface {
	Recent(ctx context.Context, limit int) ([]commandlog.Entry, error)
}

// Dependencies are the components the services are built from.
type Dependencies struct {
	Telemetry   *telemetry.Client
	Controller  *controller.Controller
	Poller      *poller.Poller
	Credentials CredentialStore
	Commands    CommandHistory
	Database    Checker
	// MQTT is nil when the broker connection is disabled
	MQTT ConnectionChecker
}

// Services holds all local service instances.
type Services struct {
	l           *slog.Logger
	Telemetry   *telemetry.Client
	Controller  *controller.Controller
	Poller      *poller.Poller
	Credentials CredentialStore
	Commands    CommandHistory
	Core        *CoreService
}

// NewServices creates a new local services instance.
func NewServices(l *slog.Logger, deps Dependencies) *Services {
	return &Services{
		l:           l.With(slog.String("module", "local-services")),
		Telemetry:   deps.Telemetry,
		Controller:  deps.Controller,
		Poller:      deps.Poller,
		Credentials: deps.Credentials,
		Commands:    deps.Commands,
		Core:        NewCoreService(l, deps.Database, deps.MQTT, deps.Telemetry.Cache(), deps.Credentials),
	}
}

// ReplaceCredentials stores creds and drops the cached reading when the channel changes, so a
// reading from the previous channel is never served as the new channel's fallback.
func (s *Services) ReplaceCredentials(ctx context.Context, creds telemetry.Credentials) error {
	prev, err := s.Credentials.Credentials(ctx)
	if err != nil {
		return err
	}

	if err := s.Credentials.Set(ctx, creds); err != nil {
		return err
	}

	if creds.ChannelID != "" && creds.ChannelID != prev.ChannelID {
		s.l.Info("Channel changed, clearing cached reading")
		s.Telemetry.Cache().Clear()
	}

	return nil
}

// Logout removes stored credentials and the cached reading.
func (s *Services) Logout(ctx context.Context) error {
	if err := s.Credentials.Clear(ctx); err != nil {
		return err
	}

	s.Telemetry.Cache().Clear()
	s.l.Info("Credentials cleared")

	return nil
}
