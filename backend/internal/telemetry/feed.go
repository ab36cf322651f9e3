package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// feedsResponse is the subset of the feeds.json payload the client uses.
type feedsResponse struct {
	Feeds []feed `json:"feeds"`
}

// feed is one channel snapshot. Field values arrive as strings or null.
type feed struct {
	Field1    fieldValue `json:"field1"`
	Field2    fieldValue `json:"field2"`
	Field3    fieldValue `json:"field3"`
	Field4    fieldValue `json:"field4"`
	Field5    fieldValue `json:"field5"`
	Field6    fieldValue `json:"field6"`
	Field7    fieldValue `json:"field7"`
	CreatedAt string     `json:"created_at"`
}

// fieldValue keeps the raw text of a channel field. Numbers are accepted and kept as their
// literal text so a provider that stops quoting values does not invalidate the whole feed.
type fieldValue struct {
	text   string
	quoted bool
	set    bool
}

func (v *fieldValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = fieldValue{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid field value: %w", err)
		}

		*v = fieldValue{text: s, quoted: true, set: true}

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Objects, arrays and booleans are data quality problems, not protocol errors
		*v = fieldValue{}
		return nil //nolint:nilerr // Unparseable field degrades to "missing"
	}

	*v = fieldValue{text: n.String(), set: true}

	return nil
}

// measurement parses a sensor field. Missing, unparseable, non-finite or negative values
// become 0.0 for that field only.
func (v fieldValue) measurement() float64 {
	if !v.set {
		return 0
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}

	return f
}

// switchedOn decodes a control field. Only the string "1" means on.
func (v fieldValue) switchedOn() bool {
	return v.set && v.quoted && v.text == "1"
}

func (f feed) reading() Reading {
	return Reading{
		Temperature:  f.Field1.measurement(),
		Humidity:     f.Field2.measurement(),
		SoilMoisture: f.Field3.measurement(),
		LightLevel:   f.Field4.measurement(),
		Timestamp:    f.CreatedAt,
	}
}

func (f feed) status() DeviceStatus {
	return DeviceStatus{
		GrowLight: f.Field5.switchedOn(),
		Watering:  f.Field6.switchedOn(),
		AutoMode:  f.Field7.switchedOn(),
	}
}

// latest returns the newest feed entry. The provider orders feeds oldest first.
func (r feedsResponse) latest() (feed, bool) {
	if len(r.Feeds) == 0 {
		return feed{}, false
	}

	return r.Feeds[len(r.Feeds)-1], true
}

func wireBool(on bool) string {
	if on {
		return "1"
	}

	return "0"
}
