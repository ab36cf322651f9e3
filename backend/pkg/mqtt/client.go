package mqtt

import (
	"errors"
	"fmt"
	"time"

	"greenhouse-monitor/backend/pkg/utils"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// ErrNotConnected is returned by Publish while the broker connection is down.
var ErrNotConnected = errors.New("not connected to MQTT broker")

type MQTTClient struct {
	client  paho.Client
	builder *MQTTBuilder
}

// Publish sends payload as JSON using the publication identified by operationID. params fill
// the {param} placeholders of the registered topic.
func (c *MQTTClient) Publish(operationID string, params map[string]string, payload any) error {
	c.builder.mu.RLock()
	pub, ok := c.builder.publications[operationID]
	c.builder.mu.RUnlock()

	if !ok {
		return fmt.Errorf("publication not found for operationID %s", operationID)
	}

	topic, err := fillTopic(pub.topic, params)
	if err != nil {
		return fmt.Errorf("failed to build topic for %s: %w", operationID, err)
	}

	if !c.builder.IsConnected() {
		return fmt.Errorf("publish to %s: %w", topic, ErrNotConnected)
	}

	bytes, err := utils.ToJSON(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize payload: %w", err)
	}

	token := c.client.Publish(topic, byte(pub.QoS), pub.Retained, bytes)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to topic %s timed out", topic)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}

	return nil
}

// IsConnected reports whether the underlying client holds a broker connection.
func (c *MQTTClient) IsConnected() bool {
	return c.builder.IsConnected()
}
