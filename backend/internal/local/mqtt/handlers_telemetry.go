package mqtt

import (
	"context"
	"errors"
	"log/slog"

	"greenhouse-monitor/backend/internal/local/mqtt/types"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/mqtt"
)

const opPublishReading = "publishReading"

// RegisterReadingPublish registers the reading publication operation.
func (h *Handler) RegisterReadingPublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish("greenhouse/{channelID}/reading", mqtt.PublicationSpec{
		OperationID: opPublishReading,
		Summary:     "Publish environment reading",
		Description: "Publishes every polled reading. Retained so new subscribers get the latest value immediately.",
		Group:       TelemetryGroup,
		TopicParameters: []mqtt.TopicParameter{
			{Name: "channelID", Description: "Remote channel the reading belongs to"},
		},
		MessageType: types.ReadingMessage{},
		QoS:         mqtt.QoSAtLeastOnce,
		Retained:    true,
	})
}

// HandleReading publishes r. Default readings are skipped since they carry no data.
func (h *Handler) HandleReading(ctx context.Context, r telemetry.Result) error {
	if r.Source == telemetry.SourceDefault {
		return nil
	}

	channelID, ok := h.channelID(ctx)
	if !ok {
		return nil
	}

	msg := types.ReadingMessage{
		ChannelID:    channelID,
		Temperature:  r.Reading.Temperature,
		Humidity:     r.Reading.Humidity,
		SoilMoisture: r.Reading.SoilMoisture,
		LightLevel:   r.Reading.LightLevel,
		Timestamp:    r.Reading.Timestamp,
		Source:       string(r.Source),
		FetchedAt:    r.FetchedAt,
	}

	return h.publish(opPublishReading, channelID, msg)
}

func (h *Handler) publish(operationID, channelID string, payload any) error {
	err := h.pub.Publish(operationID, map[string]string{"channelID": channelID}, payload)
	if errors.Is(err, mqtt.ErrNotConnected) {
		h.l.Debug("Skipping publish while disconnected", slog.String("operationID", operationID))
		return nil
	}

	return err
}
