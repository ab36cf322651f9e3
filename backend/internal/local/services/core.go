package local

import (
	"context"
	"log/slog"

	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/utils"
)

// Checker verifies a dependency is usable. *database.DB implements it.
type Checker interface {
	Check(ctx context.Context) error
}

// ConnectionChecker reports broker connectivity. *mqtt.MQTTBuilder implements it.
type ConnectionChecker interface {
	IsConnected() bool
}

// CoreService handles core business logic for the local API.
type CoreService struct {
	l     *slog.Logger
	db    Checker
	mqtt  ConnectionChecker
	cache *telemetry.Cache
	creds telemetry.CredentialProvider
}

// NewCoreService creates a new core service instance.
func NewCoreService(l *slog.Logger, db Checker, mqtt ConnectionChecker, cache *telemetry.Cache, creds telemetry.CredentialProvider) *CoreService {
	return &CoreService{
		l:     l.With(slog.String("service", "core")),
		db:    db,
		mqtt:  mqtt,
		cache: cache,
		creds: creds,
	}
}

// HealthStatus represents the health status of local services.
type HealthStatus struct {
	Database    bool
	MQTT        bool
	MQTTEnabled bool
	Configured  bool
	// CacheAgeSeconds is nil while nothing is cached
	CacheAgeSeconds *float64
}

// Healthy reports whether every required dependency is reachable. Missing credentials and an
// empty cache are reported but do not make the service unhealthy.
func (h HealthStatus) Healthy() bool {
	return h.Database && (h.MQTT || !h.MQTTEnabled)
}

// Health checks the health of local services (database and MQTT).
func (s *CoreService) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Database:    true,
		MQTTEnabled: s.mqtt != nil,
	}

	if err := s.db.Check(ctx); err != nil {
		s.l.Error("database unreachable", utils.ErrAttr(err))

		status.Database = false
	}

	if s.mqtt != nil {
		status.MQTT = s.mqtt.IsConnected()
		if !status.MQTT {
			s.l.Error("mqtt broker unreachable")
		}
	}

	if creds, err := s.creds.Credentials(ctx); err == nil {
		status.Configured = creds.ReadConfigured()
	}

	if age, ok := s.cache.Age(); ok {
		seconds := age.Seconds()
		status.CacheAgeSeconds = &seconds
	}

	return status
}
