package mqtt

// QoS represents MQTT quality of service levels.
type QoS byte

const (
	// QoSAtMostOnce means the message is delivered at most once, or it may not be delivered at all.
	QoSAtMostOnce QoS = 0
	// QoSAtLeastOnce means the message is always delivered at least once.
	QoSAtLeastOnce QoS = 1
	// QoSExactlyOnce means the message is always delivered exactly once.
	QoSExactlyOnce QoS = 2
)

// TopicParameter describes a parameter in an MQTT topic pattern.
type TopicParameter struct {
	Name        string // Name is the parameter name (e.g., "channelID")
	Description string // Description explains what this parameter represents
}

// Message is a received message with the topic parameters resolved against the
// subscription pattern.
type Message struct {
	Topic   string
	Params  map[string]string
	Payload []byte
}

// MessageHandler handles a received message. A returned error is logged; the message is
// acknowledged either way.
type MessageHandler func(msg Message) error

// PublicationSpec describes an MQTT publication operation.
type PublicationSpec struct {
	OperationID     string           // OperationID is a unique identifier for this publication operation (e.g., "publishReading").
	Summary         string           // Summary is a short description of the publication.
	Description     string           // Description provides detailed information about the publication.
	Group           string           // Group is a logical grouping for the publication (e.g., "Telemetry", "Control").
	TopicParameters []TopicParameter // TopicParameters describes the parameters in the topic pattern (e.g., {channelID}).
	MessageType     any              // MessageType is the Go type of the message being published.
	QoS             QoS              // QoS is the quality of service level for this publication.
	Retained        bool             // Retained indicates whether the message should be retained by the broker.

	topic     string
	topicMQTT string
}

// SubscriptionSpec describes an MQTT subscription operation.
type SubscriptionSpec struct {
	OperationID     string           // OperationID is a unique identifier for this subscription operation (e.g., "subscribeCommand").
	Summary         string           // Summary is a short description of the subscription.
	Description     string           // Description provides detailed information about the subscription.
	Group           string           // Group is a logical grouping for the subscription (e.g., "Telemetry", "Control").
	TopicParameters []TopicParameter // TopicParameters describes the parameters in the topic pattern (e.g., {channelID}).
	MessageType     any              // Expected Go type of messages received on this subscription.
	Handler         MessageHandler   // Handler is the function that will be called when a message is received.
	QoS             QoS              // QoS is the quality of service level for this subscription.

	topic     string
	topicMQTT string
}

// OperationInfo summarises a registered operation for listing endpoints.
type OperationInfo struct {
	OperationID string `json:"operationID"`
	Kind        string `json:"kind"`
	Topic       string `json:"topic"`
	Summary     string `json:"summary"`
	Group       string `json:"group"`
	QoS         QoS    `json:"qos"`
	Retained    bool   `json:"retained"`
}
