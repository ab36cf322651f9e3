package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"greenhouse-monitor/backend/pkg/utils"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout     = 5 * time.Second
	retryInterval      = 5 * time.Second
	maxReconnect       = 15 * time.Second
	keepAlive          = 30 * time.Second
	disconnectQuiesce  = 250 // ms
	stillWaitingPeriod = 30 * time.Second
)

// MQTTBuilder provides a fluent API for registering MQTT publications and subscriptions.
type MQTTBuilder struct {
	client        paho.Client
	wrappedClient *MQTTClient
	l             *slog.Logger

	mu            sync.RWMutex
	operationIDs  map[string]struct{}
	publications  map[string]*PublicationSpec
	subscriptions map[string]*SubscriptionSpec

	onConnected func()

	connected      atomic.Bool
	runConnectOnce atomic.Bool
}

// MQTTClientOptions contains configuration for creating an MQTT client.
type MQTTClientOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// Will, when set, is published by the broker if the client disconnects uncleanly.
	Will *WillMessage
	// OnConnect runs in its own goroutine after every successful (re)connection, once the
	// subscriptions are in place.
	OnConnect func()
}

// WillMessage is the last will of the client.
type WillMessage struct {
	Topic    string
	Payload  string
	QoS      QoS
	Retained bool
}

// NewMQTTBuilder creates a new MQTT builder with the given broker configuration.
func NewMQTTBuilder(l *slog.Logger, opts MQTTClientOptions) (*MQTTBuilder, error) {
	l = l.With(slog.String("component", "mqtt-builder"))

	if opts.BrokerURL == "" {
		return nil, errors.New("broker URL is required")
	}

	if opts.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	mb := &MQTTBuilder{
		l:             l,
		operationIDs:  make(map[string]struct{}),
		publications:  make(map[string]*PublicationSpec),
		subscriptions: make(map[string]*SubscriptionSpec),
		onConnected:   opts.OnConnect,
	}

	clientOpts := paho.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}

	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	// Retry every 5 seconds, max interval 15 seconds
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectTimeout(connectTimeout)
	clientOpts.SetConnectRetryInterval(retryInterval)
	clientOpts.SetMaxReconnectInterval(maxReconnect)
	clientOpts.SetKeepAlive(keepAlive)

	clientOpts.SetOnConnectHandler(mb.onConnect)
	clientOpts.SetConnectionLostHandler(mb.onConnectionLost)
	clientOpts.SetReconnectingHandler(mb.onReconnecting)

	if w := opts.Will; w != nil {
		if err := validateQoS(w.QoS); err != nil {
			return nil, fmt.Errorf("invalid will message: %w", err)
		}

		clientOpts.SetWill(w.Topic, w.Payload, byte(w.QoS), w.Retained)
	}

	mb.client = paho.NewClient(clientOpts)
	mb.wrappedClient = &MQTTClient{
		client:  mb.client,
		builder: mb,
	}

	l.Info("MQTT builder created", slog.String("broker", opts.BrokerURL), slog.String("clientID", opts.ClientID))

	return mb, nil
}

// Client returns the publishing client.
func (mb *MQTTBuilder) Client() *MQTTClient {
	return mb.wrappedClient
}

// IsConnected reports whether the client currently holds a broker connection.
func (mb *MQTTBuilder) IsConnected() bool {
	return mb.connected.Load()
}

// RegisterPublish registers a publication operation.
func (mb *MQTTBuilder) RegisterPublish(topic string, spec PublicationSpec) error {
	if mb.runConnectOnce.Load() {
		return errors.New("cannot register publication after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validatePublicationSpec(spec); err != nil {
		return fmt.Errorf("invalid publication spec: %w", err)
	}

	if err := validateParameters(topic, spec.TopicParameters); err != nil {
		return fmt.Errorf("invalid topic parameters in operationID %s: %w", spec.OperationID, err)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.topic = topic
	spec.topicMQTT = convertTopicToMQTT(topic)

	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.publications[spec.OperationID] = &spec

	mb.l.Info("Registered MQTT publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic), slog.String("group", spec.Group))

	return nil
}

// MustRegisterPublish registers a publication operation and terminates the program if an error occurs.
func (mb *MQTTBuilder) MustRegisterPublish(topic string, spec PublicationSpec) {
	if err := mb.RegisterPublish(topic, spec); err != nil {
		mb.l.Error("Failed to register publication", slog.String("operationID", spec.OperationID), slog.String("topic", topic), slog.String("group", spec.Group), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// RegisterSubscribe registers a subscription operation.
func (mb *MQTTBuilder) RegisterSubscribe(topic string, spec SubscriptionSpec) error {
	if mb.runConnectOnce.Load() {
		return errors.New("cannot register subscription after connecting to MQTT broker")
	}

	if err := validateTopicPattern(topic); err != nil {
		return fmt.Errorf("invalid topic pattern: %w", err)
	}

	if err := validateSubscriptionSpec(spec); err != nil {
		return fmt.Errorf("invalid subscription spec: %w", err)
	}

	if err := validateParameters(topic, spec.TopicParameters); err != nil {
		return fmt.Errorf("invalid topic parameters in operationID %s: %w", spec.OperationID, err)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.operationIDs[spec.OperationID]; exists {
		return fmt.Errorf("duplicate operationID: %s", spec.OperationID)
	}

	spec.topic = topic
	spec.topicMQTT = convertTopicToMQTT(topic)

	mb.operationIDs[spec.OperationID] = struct{}{}
	mb.subscriptions[spec.OperationID] = &spec

	mb.l.Info("Registered MQTT subscription", slog.String("operationID", spec.OperationID), slog.String("topic", topic), slog.String("group", spec.Group))

	return nil
}

// MustRegisterSubscribe registers a subscription operation and terminates the program if an error occurs.
func (mb *MQTTBuilder) MustRegisterSubscribe(topic string, spec SubscriptionSpec) {
	if err := mb.RegisterSubscribe(topic, spec); err != nil {
		mb.l.Error("Failed to register subscription", slog.String("operationID", spec.OperationID), slog.String("topic", topic), slog.String("group", spec.Group), utils.ErrAttr(err))
		os.Exit(1)
	}
}

// Operations lists the registered operations sorted by operationID.
func (mb *MQTTBuilder) Operations() []OperationInfo {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	ops := make([]OperationInfo, 0, len(mb.operationIDs))

	for _, p := range mb.publications {
		ops = append(ops, OperationInfo{
			OperationID: p.OperationID, Kind: "publish", Topic: p.topic,
			Summary: p.Summary, Group: p.Group, QoS: p.QoS, Retained: p.Retained,
		})
	}

	for _, s := range mb.subscriptions {
		ops = append(ops, OperationInfo{
			OperationID: s.OperationID, Kind: "subscribe", Topic: s.topic,
			Summary: s.Summary, Group: s.Group, QoS: s.QoS,
		})
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].OperationID < ops[j].OperationID })

	return ops
}

// Connect connects to the MQTT broker and blocks until the first connection succeeds or
// ctx is done. The client keeps retrying in the background.
func (mb *MQTTBuilder) Connect(ctx context.Context) error {
	mb.runConnectOnce.Store(true)

	mb.l.Info("Connecting to MQTT broker")

	token := mb.client.Connect()

	ticker := time.NewTicker(stillWaitingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connecting to MQTT broker: %w", ctx.Err())
		case <-ticker.C:
			mb.l.Warn("MQTT has not done an initial connection yet, still waiting...")
		case <-token.Done():
			if err := token.Error(); err != nil {
				return fmt.Errorf("failed to connect to MQTT broker: %w", err)
			}

			mb.l.Info("Connected to MQTT broker")

			return nil
		}
	}
}

// Disconnect disconnects from the MQTT broker.
func (mb *MQTTBuilder) Disconnect() {
	if !mb.client.IsConnected() {
		return
	}

	mb.l.Info("Disconnecting from MQTT broker...")
	mb.client.Disconnect(disconnectQuiesce)
	mb.connected.Store(false)
	mb.l.Info("Disconnected from MQTT broker")
}

// onConnect is called when the client successfully connects or reconnects to the broker.
func (mb *MQTTBuilder) onConnect(client paho.Client) {
	mb.mu.RLock()
	subs := make([]*SubscriptionSpec, 0, len(mb.subscriptions))
	for _, s := range mb.subscriptions {
		subs = append(subs, s)
	}
	mb.mu.RUnlock()

	mb.l.Info("Connected to MQTT broker, subscribing to topics", slog.Int("subscriptionCount", len(subs)))
	mb.connected.Store(true)

	for _, spec := range subs {
		token := client.Subscribe(spec.topicMQTT, byte(spec.QoS), mb.dispatch(spec))
		token.Wait()

		if err := token.Error(); err != nil {
			mb.l.Error("Failed to subscribe", slog.String("topic", spec.topicMQTT), slog.String("operationID", spec.OperationID), utils.ErrAttr(err))
			continue
		}

		mb.l.Info("Subscribed", slog.String("topic", spec.topicMQTT), slog.String("operationID", spec.OperationID))
	}

	if mb.onConnected != nil {
		go mb.onConnected()
	}
}

// dispatch adapts a SubscriptionSpec handler to paho.
func (mb *MQTTBuilder) dispatch(spec *SubscriptionSpec) paho.MessageHandler {
	l := mb.l.With(slog.String("operationID", spec.OperationID))

	return func(_ paho.Client, m paho.Message) {
		params, ok := matchTopic(spec.topic, m.Topic())
		if !ok {
			l.Warn("Ignoring message on unexpected topic", slog.String("topic", m.Topic()))
			return
		}

		if err := spec.Handler(Message{Topic: m.Topic(), Params: params, Payload: m.Payload()}); err != nil {
			l.Warn("Message handler failed", slog.String("topic", m.Topic()), utils.ErrAttr(err))
		}
	}
}

// onConnectionLost is called when the client loses connection to the broker.
func (mb *MQTTBuilder) onConnectionLost(_ paho.Client, err error) {
	mb.l.Warn("Connection to MQTT broker lost", utils.ErrAttr(err))
	mb.connected.Store(false)
}

// onReconnecting is called when the client is reconnecting to the broker.
func (mb *MQTTBuilder) onReconnecting(_ paho.Client, opts *paho.ClientOptions) {
	mb.l.Info("Reconnecting to MQTT broker", slog.String("broker", opts.Servers[0].String()))
}
