package link

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Topic layout under the configured prefix:
//
//	<prefix>/down/<port>  downlinks from the network server
//	<prefix>/up/<port>    uplinks from this device
//	<prefix>/class        current device class ("A", "C")
const (
	topicDown  = "down"
	topicUp    = "up"
	topicClass = "class"
)

// Defaults applied by NewMQTT when the config leaves them unset.
const (
	DefaultClientID       = "relay-controller"
	DefaultTopicPrefix    = "lora/relay"
	DefaultConnectTimeout = 10 * time.Second
	DefaultSendTimeout    = 5 * time.Second
	DefaultEventBuffer    = 64
)

var errSendTimeout = errors.New("send timeout")

// MQTTConfig configures the MQTT-bridged transport.
type MQTTConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	ConnectTimeout time.Duration
	SendTimeout    time.Duration
	EventBuffer    int
}

// MQTT reaches the network server through an MQTT bridge. Joining maps to
// connecting to the broker.
type MQTT struct {
	cfg    MQTTConfig
	client paho.Client

	mu         sync.Mutex
	events     *ringBuffer
	connecting bool
}

// NewMQTT creates an uninitialized transport.
func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	return &MQTT{
		cfg:    cfg,
		events: newRingBuffer(cfg.EventBuffer),
	}
}

// Init builds the client. It does not connect.
func (m *MQTT) Init() error {
	if m.cfg.Broker == "" {
		return fmt.Errorf("init mqtt transport: no broker configured")
	}

	opts := paho.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}

	m.client = paho.NewClient(opts)
	log.Printf("link: mqtt transport ready (broker %s, prefix %s)", m.cfg.Broker, m.cfg.TopicPrefix)
	return nil
}

// Join starts connecting to the broker in the background. When the
// connection is already open, for example after a failed subscribe, it
// subscribes again instead.
func (m *MQTT) Join() error {
	if m.client == nil {
		return ErrNotInitialized
	}

	m.mu.Lock()
	if m.connecting {
		m.mu.Unlock()
		return nil
	}

	switch {
	case m.client.IsConnectionOpen():
		m.connecting = true
		m.mu.Unlock()
		go func() {
			ev := m.subscribe(m.client)
			m.mu.Lock()
			m.connecting = false
			m.events.push(ev)
			m.mu.Unlock()
		}()
		return nil

	case m.client.IsConnected():
		// paho is reconnecting; onConnect subscribes once it is back
		m.mu.Unlock()
		return nil
	}

	m.connecting = true
	m.mu.Unlock()

	token := m.client.Connect()
	go func() {
		token.Wait()
		m.mu.Lock()
		m.connecting = false
		if err := token.Error(); err != nil {
			m.events.push(Event{Kind: EventJoinFailed, Err: err})
		}
		m.mu.Unlock()
	}()
	return nil
}

// Pump returns queued events.
func (m *MQTT) Pump() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events.drainAll()
}

// Send publishes payload to <prefix>/up/<port>. Confirmed uplinks use QoS 1.
func (m *MQTT) Send(payload []byte, port uint8, confirmed bool) error {
	if m.client == nil {
		return ErrNotInitialized
	}
	if !m.client.IsConnectionOpen() {
		return ErrNotJoined
	}

	var qos byte
	if confirmed {
		qos = 1
	}
	token := m.client.Publish(m.upTopic(port), qos, false, payload)
	go func() {
		err := errSendTimeout
		if token.WaitTimeout(m.cfg.SendTimeout) {
			err = token.Error()
		}
		m.push(Event{Kind: EventSendComplete, OK: err == nil, Err: err})
	}()
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client != nil {
		m.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}

func (m *MQTT) push(ev Event) {
	m.mu.Lock()
	m.events.push(ev)
	m.mu.Unlock()
}

func (m *MQTT) onConnect(c paho.Client) {
	log.Printf("link: connected to %s", m.cfg.Broker)
	m.push(m.subscribe(c))
}

// subscribe requests the downlink and class topics and returns the outcome
// as EventJoined or EventJoinFailed.
func (m *MQTT) subscribe(c paho.Client) Event {
	filters := map[string]byte{
		m.cfg.TopicPrefix + "/" + topicDown + "/+": 1,
		m.cfg.TopicPrefix + "/" + topicClass:       1,
	}
	token := c.SubscribeMultiple(filters, m.onMessage)
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		return Event{Kind: EventJoinFailed, Err: fmt.Errorf("subscribe: timeout")}
	}
	if err := token.Error(); err != nil {
		return Event{Kind: EventJoinFailed, Err: fmt.Errorf("subscribe: %w", err)}
	}
	return Event{Kind: EventJoined}
}

func (m *MQTT) onConnectionLost(_ paho.Client, err error) {
	log.Printf("link: connection lost: %v", err)
	m.push(Event{Kind: EventLinkLost, Err: err})
}

func (m *MQTT) onMessage(_ paho.Client, msg paho.Message) {
	ev, ok := m.parseMessage(msg.Topic(), msg.Payload())
	if !ok {
		log.Printf("link: ignoring message on %s", msg.Topic())
		return
	}
	m.push(ev)
}

// parseMessage maps a received topic to an event. The payload is copied.
func (m *MQTT) parseMessage(topic string, payload []byte) (Event, bool) {
	rest, ok := strings.CutPrefix(topic, m.cfg.TopicPrefix+"/")
	if !ok {
		return Event{}, false
	}

	if rest == topicClass {
		class := strings.ToUpper(strings.TrimSpace(string(payload)))
		if class == "" {
			return Event{}, false
		}
		return Event{Kind: EventClassChanged, Class: class}, true
	}

	portStr, ok := strings.CutPrefix(rest, topicDown+"/")
	if !ok {
		return Event{}, false
	}
	port, err := strconv.ParseUint(portStr, 10, 8)
	if err != nil {
		return Event{}, false
	}

	body := make([]byte, len(payload))
	copy(body, payload)
	return Event{Kind: EventDownlink, Payload: body, Port: uint8(port)}, true
}

func (m *MQTT) upTopic(port uint8) string {
	return m.cfg.TopicPrefix + "/" + topicUp + "/" + strconv.Itoa(int(port))
}
