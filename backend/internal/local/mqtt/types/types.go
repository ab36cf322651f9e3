package types

import "time"

// ReadingMessage is a polled environment reading published to local subscribers.
type ReadingMessage struct {
	// ChannelID is the remote channel the reading was fetched from
	ChannelID string `json:"channelID"`
	// Temperature in degrees Celsius
	Temperature float64 `json:"temperature"`
	// Humidity is relative air humidity in percent
	Humidity float64 `json:"humidity"`
	// SoilMoisture in percent
	SoilMoisture float64 `json:"soilMoisture"`
	// LightLevel in percent
	LightLevel float64 `json:"lightLevel"`
	// Timestamp is the provider timestamp of the reading
	Timestamp string `json:"timestamp"`
	// Source is "fresh", "cache" or "default"
	Source string `json:"source"`
	// FetchedAt is when the reading was obtained from the remote service
	FetchedAt time.Time `json:"fetchedAt"`
}

// StatusMessage is the intended actuator state.
type StatusMessage struct {
	ChannelID string `json:"channelID"`
	GrowLight bool   `json:"growLight"`
	Watering  bool   `json:"watering"`
	AutoMode  bool   `json:"autoMode"`
	// AutoStopPending is true while a watering auto-stop is scheduled
	AutoStopPending bool `json:"autoStopPending"`
	// WateringUntil is when the scheduled auto-stop fires
	WateringUntil *time.Time `json:"wateringUntil,omitempty"`
	// UpdatedAt is when the message was produced
	UpdatedAt time.Time `json:"updatedAt"`
}

// CommandMessage switches one actuator.
type CommandMessage struct {
	// Actuator is one of "growLight", "watering" or "autoMode"
	Actuator string `json:"actuator"`
	// On is the requested state
	On bool `json:"on"`
	// DurationSeconds bounds a watering run; 0 uses the configured default
	DurationSeconds int `json:"durationSeconds,omitempty"`
}

// AvailabilityMessage reports whether the monitor is connected to the broker. The broker
// publishes the offline variant as the client's last will.
type AvailabilityMessage struct {
	Online bool `json:"online"`
}
