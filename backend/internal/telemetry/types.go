package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Placeholder values shipped in default configuration. A credential equal to one of these is
// treated exactly like a missing one.
const (
	PlaceholderChannelID = "YOUR_CHANNEL_ID"
	PlaceholderReadKey   = "YOUR_READ_API_KEY"
	PlaceholderWriteKey  = "YOUR_WRITE_API_KEY"
)

// Reading is one environment observation decoded from channel fields 1-4.
type Reading struct {
	// Air temperature in degrees Celsius
	Temperature float64 `json:"temperature"`
	// Relative air humidity in percent
	Humidity float64 `json:"humidity"`
	// Soil moisture in percent
	SoilMoisture float64 `json:"soilMoisture"`
	// Light level in percent
	LightLevel float64 `json:"lightLevel"`
	// Provider timestamp of the feed entry, or the synthesis instant for default readings
	Timestamp string `json:"timestamp"`
}

// IsZero reports whether all four measurements are exactly zero. Such a reading is taken to
// mean "no data" (device offline or not transmitting yet), never a real observation.
func (r Reading) IsZero() bool {
	return r.Temperature == 0 && r.Humidity == 0 && r.SoilMoisture == 0 && r.LightLevel == 0
}

// Source tells where the reading in a Result came from.
type Source string

const (
	// SourceFresh means the reading was just fetched and validated.
	SourceFresh Source = "fresh"
	// SourceCached means the last known good reading was served from the freshness cache.
	SourceCached Source = "cache"
	// SourceDefault means neither live nor cached data was available.
	SourceDefault Source = "default"
)

// Result is the outcome of FetchLatest.
type Result struct {
	Reading Reading `json:"reading"`
	Source  Source  `json:"source"`
	// FetchedAt is when the reading was obtained from the remote service. For cached
	// results this is the original fetch time.
	FetchedAt time.Time `json:"fetchedAt"`
}

// DeviceStatus is the actuator state decoded from channel fields 5-7.
type DeviceStatus struct {
	GrowLight bool `json:"growLight"`
	Watering  bool `json:"watering"`
	AutoMode  bool `json:"autoMode"`
}

// Get returns the state of a single actuator.
func (s DeviceStatus) Get(f ControlField) bool {
	switch f {
	case GrowLight:
		return s.GrowLight
	case Watering:
		return s.Watering
	case AutoMode:
		return s.AutoMode
	default:
		return false
	}
}

// With returns a copy of s with one actuator changed.
func (s DeviceStatus) With(f ControlField, on bool) DeviceStatus {
	switch f {
	case GrowLight:
		s.GrowLight = on
	case Watering:
		s.Watering = on
	case AutoMode:
		s.AutoMode = on
	}

	return s
}

// ControlField is a writable channel field backing an actuator.
type ControlField int

const (
	GrowLight ControlField = iota + 1
	Watering
	AutoMode
)

// ControlFields lists every actuator in field order.
//
//nolint:gochecknoglobals // Fixed channel contract
var ControlFields = []ControlField{GrowLight, Watering, AutoMode}

// Key is the channel field name used on the wire.
func (f ControlField) Key() string {
	switch f {
	case GrowLight:
		return "field5"
	case Watering:
		return "field6"
	case AutoMode:
		return "field7"
	default:
		return ""
	}
}

func (f ControlField) String() string {
	switch f {
	case GrowLight:
		return "growLight"
	case Watering:
		return "watering"
	case AutoMode:
		return "autoMode"
	default:
		return fmt.Sprintf("ControlField(%d)", int(f))
	}
}

// Valid reports whether f is one of the known actuators.
func (f ControlField) Valid() bool {
	return f.Key() != ""
}

// ParseControlField maps an actuator name ("growLight", "watering", "autoMode") to its field.
func ParseControlField(name string) (ControlField, error) {
	for _, f := range ControlFields {
		if f.String() == name {
			return f, nil
		}
	}

	return 0, fmt.Errorf("unknown actuator %q", name)
}

// Credentials address one channel. Any field may be empty until configured.
type Credentials struct {
	ChannelID string `json:"channelID"`
	ReadKey   string `json:"readKey"`
	WriteKey  string `json:"writeKey"`
}

func isSet(value, placeholder string) bool {
	return value != "" && value != placeholder
}

// ChannelConfigured reports whether a real channel id is set.
func (c Credentials) ChannelConfigured() bool {
	return isSet(c.ChannelID, PlaceholderChannelID)
}

// ReadConfigured reports whether reads may be attempted.
func (c Credentials) ReadConfigured() bool {
	return c.ChannelConfigured() && isSet(c.ReadKey, PlaceholderReadKey)
}

// WriteConfigured reports whether commands may be sent.
func (c Credentials) WriteConfigured() bool {
	return c.ChannelConfigured() && isSet(c.WriteKey, PlaceholderWriteKey)
}

// Configured reports whether every credential is set to a real value.
func (c Credentials) Configured() bool {
	return c.ReadConfigured() && c.WriteConfigured()
}

// Masked returns a copy safe to show to users, with keys reduced to their first four characters.
func (c Credentials) Masked() Credentials {
	return Credentials{
		ChannelID: c.ChannelID,
		ReadKey:   mask(c.ReadKey),
		WriteKey:  mask(c.WriteKey),
	}
}

func mask(key string) string {
	const visible = 4
	if len(key) <= visible {
		return key
	}

	return key[:visible] + "****"
}

// AccessMode is how a read request authenticates.
type AccessMode int

const (
	// AccessPublic means the channel is readable without an API key.
	AccessPublic AccessMode = iota
	// AccessKeyedRead means requests must carry the read key.
	AccessKeyedRead
)

func (m AccessMode) String() string {
	if m == AccessPublic {
		return "public"
	}

	return "keyed"
}

// CredentialProvider supplies the current channel credentials.
type CredentialProvider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials is a CredentialProvider returning fixed values.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

// HTTPDoer performs HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives fetch and command outcomes, typically to export metrics.
type Observer interface {
	ObserveFetch(op string, source Source)
	ObserveRequestFailure(op string, statusCode int)
	ObserveCommand(ok bool)
}

type noopObserver struct{}

func (noopObserver) ObserveFetch(string, Source)        {}
func (noopObserver) ObserveRequestFailure(string, int) {}
func (noopObserver) ObserveCommand(bool)               {}
