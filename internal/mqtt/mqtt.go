// Package mqtt publishes controller events and status to an MQTT broker and
// feeds external temperature readings back in, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TopicEvents is the MQTT topic for controller events.
const TopicEvents = "chamber/control/events"

// TopicSystem is the MQTT topic for system lifecycle and status events.
const TopicSystem = "chamber/control/system"

// DefaultSensorPrefix is the topic prefix probes publish under, one subtopic
// per probe name.
const DefaultSensorPrefix = "chamber/sensor"

// Event types.
const (
	EventAnnotation = "ANNOTATION"
	EventState      = "STATE"
	EventMode       = "MODE"
	EventSetpoint   = "SETPOINT"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is a controller event: an annotation such as a door edge, a state
// transition or an accepted command.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      string
	Message   string
	State     string
	Mode      string
}

// NewEvent creates an event with a fresh ID.
func NewEvent(t time.Time, typ, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: t,
		Type:      typ,
		Message:   message,
	}
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, status).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "STATUS"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Chamber EventPayload `json:"chamber"`
}

// EventPayload contains the event details.
type EventPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Message   string `json:"message,omitempty"`
	State     string `json:"state,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Chamber: EventPayload{
			ID:        event.ID,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Type,
			Message:   event.Message,
			State:     event.State,
			Mode:      event.Mode,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
