package types

import (
	"time"

	"greenhouse-monitor/backend/internal/commandlog"
	"greenhouse-monitor/backend/internal/controller"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/mqtt"
	"greenhouse-monitor/backend/pkg/router"
)

// HealthResponse is the response to a health check request for local API.
type HealthResponse struct {
	// Status of the database connection
	Database bool `json:"database"`
	// Status of the MQTT broker connection, false when MQTT is disabled
	MQTT bool `json:"mqtt"`
	// Whether the MQTT bridge is enabled at all
	MQTTEnabled bool `json:"mqttEnabled"`
	// Whether channel credentials allow reading
	Configured bool `json:"configured"`
	// Age of the cached reading in seconds, absent when nothing is cached
	CacheAgeSeconds *float64 `json:"cacheAgeSeconds,omitempty"`
	// Build metadata
	Build map[string]string `json:"build"`
}

// ReadingResponse is the latest reading and where it came from.
type ReadingResponse struct {
	Reading telemetry.Reading `json:"reading"`
	// "fresh", "cache" or "default"
	Source telemetry.Source `json:"source"`
	// When the reading was fetched from the remote service, absent for default readings
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	// Age of the reading in seconds, absent for default readings
	AgeSeconds *float64 `json:"ageSeconds,omitempty"`
}

// HistoryResponse lists readings oldest first.
type HistoryResponse struct {
	Readings []telemetry.Reading `json:"readings"`
}

// DeviceStatusResponse compares the remote status with the intended state after reconciling.
type DeviceStatusResponse struct {
	// Remote is the status last reported by the channel
	Remote telemetry.DeviceStatus `json:"remote"`
	// Live is false when the channel could not be read and Remote is the all-off default
	Live bool `json:"live"`
	// Intended is the controller state after reconciling with Remote
	Intended controller.State `json:"intended"`
}

// ActuatorRequest switches one actuator.
type ActuatorRequest struct {
	On bool `json:"on"`
	// DurationSeconds bounds a watering run; 0 uses the configured default
	DurationSeconds int `json:"durationSeconds,omitempty"`
}

// CredentialsResponse shows the stored credentials with keys masked.
type CredentialsResponse struct {
	Credentials     telemetry.Credentials `json:"credentials"`
	ReadConfigured  bool                  `json:"readConfigured"`
	WriteConfigured bool                  `json:"writeConfigured"`
}

// CommandLogResponse lists recent commands, newest first.
type CommandLogResponse struct {
	Commands []commandlog.Entry `json:"commands"`
}

// OperationsResponse documents the HTTP routes and MQTT operations this server exposes.
type OperationsResponse struct {
	Routes []router.RouteInfo   `json:"routes"`
	MQTT   []mqtt.OperationInfo `json:"mqtt"`
}
