package mqtt

import (
	"fmt"

	"greenhouse-monitor/backend/internal/local/mqtt/types"
	"greenhouse-monitor/backend/pkg/mqtt"
	"greenhouse-monitor/backend/pkg/utils"
)

const (
	AvailabilityTopic = "greenhouse/monitor/availability"

	opPublishAvailability = "publishAvailability"
)

// Will is the last will announcing the monitor as offline.
func Will() (*mqtt.WillMessage, error) {
	payload, err := utils.ToJSON(types.AvailabilityMessage{Online: false})
	if err != nil {
		return nil, fmt.Errorf("failed to encode last will: %w", err)
	}

	return &mqtt.WillMessage{
		Topic:    AvailabilityTopic,
		Payload:  string(payload),
		QoS:      mqtt.QoSAtLeastOnce,
		Retained: true,
	}, nil
}

// RegisterAvailabilityPublish registers the availability publication operation.
func (h *Handler) RegisterAvailabilityPublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish(AvailabilityTopic, mqtt.PublicationSpec{
		OperationID: opPublishAvailability,
		Summary:     "Publish monitor availability",
		Description: "Announces the monitor as online after every broker connection. The broker publishes the offline message as the last will.",
		Group:       TelemetryGroup,
		MessageType: types.AvailabilityMessage{},
		QoS:         mqtt.QoSAtLeastOnce,
		Retained:    true,
	})
}

// PublishOnline announces the monitor as online. It is meant to run on every (re)connection,
// replacing the retained last will.
func (h *Handler) PublishOnline() {
	if err := h.pub.Publish(opPublishAvailability, nil, types.AvailabilityMessage{Online: true}); err != nil {
		h.l.Warn("Failed to publish availability", utils.ErrAttr(err))
	}
}
