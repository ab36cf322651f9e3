package mqtt

import (
	"context"
	"fmt"
	"log/slog"

	"greenhouse-monitor/backend/internal/controller"
	"greenhouse-monitor/backend/internal/local/mqtt/types"
	"greenhouse-monitor/backend/pkg/mqtt"
	"greenhouse-monitor/backend/pkg/utils"
)

const opPublishStatus = "publishStatus"

// RegisterStatusPublish registers the actuator status publication operation.
func (h *Handler) RegisterStatusPublish(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterPublish("greenhouse/{channelID}/status", mqtt.PublicationSpec{
		OperationID: opPublishStatus,
		Summary:     "Publish actuator status",
		Description: "Publishes the intended actuator state after every command, auto-stop and reconciliation.",
		Group:       ControlGroup,
		TopicParameters: []mqtt.TopicParameter{
			{Name: "channelID", Description: "Remote channel the actuators belong to"},
		},
		MessageType: types.StatusMessage{},
		QoS:         mqtt.QoSAtLeastOnce,
		Retained:    true,
	})
}

// RegisterCommandSubscribe registers the actuator command subscription operation.
func (h *Handler) RegisterCommandSubscribe(mb *mqtt.MQTTBuilder) {
	mb.MustRegisterSubscribe("greenhouse/{channelID}/command", mqtt.SubscriptionSpec{
		OperationID: "subscribeCommand",
		Summary:     "Subscribe to actuator commands",
		Description: "Receives actuator commands and applies them through the controller. Commands for other channels are ignored.",
		Group:       ControlGroup,
		TopicParameters: []mqtt.TopicParameter{
			{Name: "channelID", Description: "Must match the configured channel"},
		},
		MessageType: types.CommandMessage{},
		Handler:     h.handleCommand,
		QoS:         mqtt.QoSAtLeastOnce,
	})
}

// PublishStatus publishes state as the current actuator status.
func (h *Handler) PublishStatus(ctx context.Context, state controller.State) error {
	channelID, ok := h.channelID(ctx)
	if !ok {
		return nil
	}

	return h.publish(opPublishStatus, channelID, types.StatusMessage{
		ChannelID:       channelID,
		GrowLight:       state.GrowLight,
		Watering:        state.Watering,
		AutoMode:        state.AutoMode,
		AutoStopPending: state.AutoStopPending,
		WateringUntil:   state.WateringUntil,
		UpdatedAt:       h.now().UTC(),
	})
}

func (h *Handler) handleCommand(msg mqtt.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	channelID, ok := h.channelID(ctx)
	if !ok || msg.Params["channelID"] != channelID {
		h.l.Debug("Ignoring command for another channel", slog.String("topic", msg.Topic))
		return nil
	}

	cmd, err := utils.FromJSON[types.CommandMessage](msg.Payload)
	if err != nil {
		return fmt.Errorf("invalid command payload: %w", err)
	}

	h.l.Info("Received actuator command",
		slog.String("actuator", cmd.Actuator),
		slog.Bool("on", cmd.On),
		slog.Int("durationSeconds", cmd.DurationSeconds))

	// The resulting status is published by the controller's state listener
	if _, err := h.ctrl.Apply(controller.WithOrigin(ctx, controller.OriginMQTT), controller.Command{
		Actuator:        cmd.Actuator,
		On:              cmd.On,
		DurationSeconds: cmd.DurationSeconds,
	}); err != nil {
		return fmt.Errorf("apply %s command: %w", cmd.Actuator, err)
	}

	return nil
}

// StateListener publishes every state change. Pass it to controller.WithStateListener.
func (h *Handler) StateListener(state controller.State) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.PublishStatus(ctx, state); err != nil {
		h.l.Warn("Failed to publish status", utils.ErrAttr(err))
	}
}
