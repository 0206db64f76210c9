package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/chamber-control/internal/logger"
)

const (
	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
	bufferCapacity = 256
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt: publish timeout")

// Options configure a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Log      *logger.Logger
	Now      func() time.Time
}

// RealPublisher publishes to an actual MQTT broker. While the connection is
// down messages are queued and replayed in order on reconnect; only the
// latest STATUS snapshot is kept.
type RealPublisher struct {
	client paho.Client
	log    *logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	buffer    *outbox
	connected bool
	connects  int
	onConnect []func()
}

// NewRealPublisher creates a publisher and starts connecting to the broker.
// The connection is retried in the background; the publisher is usable
// before it succeeds.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := newPublisher(nil, o)

	will, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetKeepAlive(60*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.handleConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.handleConnectionLost(err) })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	// With ConnectRetry the token only completes once connected.
	if token.WaitTimeout(connectTimeout) {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
	} else {
		p.log.Warnw("broker not reachable yet, buffering", "broker", o.Broker)
	}
	return p, nil
}

func newPublisher(client paho.Client, o Options) *RealPublisher {
	if o.Log == nil {
		o.Log = logger.Nop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &RealPublisher{
		client: client,
		log:    o.Log,
		now:    o.Now,
		buffer: newOutbox(bufferCapacity),
	}
}

// Client returns the underlying client, for sharing with a Subscriber.
func (p *RealPublisher) Client() paho.Client {
	return p.client
}

// OnConnect registers fn to run after every (re)connect, e.g. to restore
// subscriptions. It runs on the paho callback goroutine.
func (p *RealPublisher) OnConnect(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onConnect = append(p.onConnect, fn)
	if p.connected {
		go fn()
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a controller event.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(outMsg{topic: TopicEvents, payload: payload})
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once)
	msg := outMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}
	if event.Event == "STATUS" {
		msg.key = event.Event
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg outMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		if p.buffer.push(msg) {
			p.log.Warnw("offline buffer full, dropping oldest", "capacity", bufferCapacity)
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.publish(msg)
}

func (p *RealPublisher) publish(msg outMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w on %s", ErrPublishTimeout, msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) handleConnect() {
	p.mu.Lock()
	p.connected = true
	p.connects++
	reconnect := p.connects > 1
	pending := p.buffer.drain()
	hooks := append([]func(){}, p.onConnect...)
	p.mu.Unlock()

	p.log.Infow("connected to broker", "replaying", len(pending))
	for _, fn := range hooks {
		fn()
	}
	for _, msg := range pending {
		if err := p.publish(msg); err != nil {
			p.log.Errorw("replay failed", "topic", msg.topic, "err", err)
		}
	}
	if reconnect {
		ev := SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"}
		if err := p.PublishSystem(ev); err != nil {
			p.log.Errorw("publish reconnect event failed", "err", err)
		}
	}
}

func (p *RealPublisher) handleConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.log.Warnw("connection to broker lost", "err", err)
}

// Buffered returns the number of messages waiting for the connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
