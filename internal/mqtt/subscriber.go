package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/chamber-control/internal/logger"
	"github.com/sweeney/chamber-control/internal/temp"
)

// ErrBadReading is returned for sensor payloads that hold no temperature.
var ErrBadReading = errors.New("mqtt: bad sensor reading")

// ReadingSink receives temperatures for one probe, e.g. sensor.External.
type ReadingSink interface {
	Set(t temp.Temp)
}

// Subscriber routes readings published under <prefix>/<name> to the sink
// registered for name.
type Subscriber struct {
	client paho.Client
	prefix string
	log    *logger.Logger

	mu    sync.RWMutex
	sinks map[string]ReadingSink
}

// NewSubscriber creates a subscriber for the probes under prefix.
func NewSubscriber(client paho.Client, prefix string, log *logger.Logger) *Subscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &Subscriber{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    log,
		sinks:  make(map[string]ReadingSink),
	}
}

// SensorTopic returns the topic a probe publishes to.
func SensorTopic(prefix, name string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

// Add registers the sink for the probe name.
func (s *Subscriber) Add(name string, sink ReadingSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks[name] = sink
}

// Subscribe subscribes to all probe topics. Call it again after a reconnect
// when the session is not persistent.
func (s *Subscriber) Subscribe() error {
	topic := s.prefix + "/+"
	token := s.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		s.handle(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	s.log.Infow("subscribed to sensor readings", "topic", topic)
	return nil
}

func (s *Subscriber) handle(topic string, payload []byte) {
	name, ok := strings.CutPrefix(topic, s.prefix+"/")
	if !ok || name == "" {
		s.log.Debugw("ignoring message", "topic", topic)
		return
	}

	s.mu.RLock()
	sink, ok := s.sinks[name]
	s.mu.RUnlock()
	if !ok {
		s.log.Debugw("reading for unknown probe", "probe", name)
		return
	}

	t, err := ParseReading(payload)
	if err != nil {
		s.log.Warnw("dropping sensor reading", "probe", name, "err", err)
		return
	}
	sink.Set(t)
}

// readingPayload is the JSON object form of a reading.
type readingPayload struct {
	Temperature *float64 `json:"temperature"`
}

// ParseReading decodes a probe payload in degrees Celsius. Accepted forms are
// a bare number ("19.5") or an object ({"temperature": 19.5}). An empty
// payload, "null" or a null temperature mean the probe is disconnected.
func ParseReading(payload []byte) (temp.Temp, error) {
	p := bytes.TrimSpace(payload)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return temp.Undefined(), nil
	}

	if p[0] == '{' {
		var r readingPayload
		if err := json.Unmarshal(p, &r); err != nil {
			return temp.Undefined(), fmt.Errorf("%w: %v", ErrBadReading, err)
		}
		if r.Temperature == nil {
			return temp.Undefined(), nil
		}
		return temp.Celsius(*r.Temperature), nil
	}

	c, err := strconv.ParseFloat(string(p), 64)
	if err != nil || math.IsNaN(c) || math.IsInf(c, 0) {
		return temp.Undefined(), fmt.Errorf("%w: %q", ErrBadReading, p)
	}
	return temp.Celsius(c), nil
}
