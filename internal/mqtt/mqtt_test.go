package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/chamber-control/internal/control"
)

var _ control.EventSink = (*Annotator)(nil)

func TestFormatPayload(t *testing.T) {
	event := Event{
		ID:        "0b6f1c30-5d35-4c19-9d44-6f0c5a1e9a10",
		Timestamp: time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC),
		Type:      EventState,
		State:     "COOLING",
		Mode:      "BEER_CONSTANT",
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"chamber":{"id":"0b6f1c30-5d35-4c19-9d44-6f0c5a1e9a10","timestamp":"2026-03-01T09:15:00Z","event":"STATE","state":"COOLING","mode":"BEER_CONSTANT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	event := Event{Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, loc), Type: EventAnnotation, Message: control.EventDoorOpened}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Chamber.Timestamp != "2026-03-01T09:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Chamber.Timestamp)
	}
	if parsed.Chamber.Message != "Fridge door opened" {
		t.Errorf("unexpected message: %s", parsed.Chamber.Message)
	}
	if parsed.Chamber.State != "" || parsed.Chamber.Mode != "" {
		t.Error("state and mode should be omitted for annotations")
	}
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := NewEvent(now, EventAnnotation, "hello")
	b := NewEvent(now, EventAnnotation, "hello")

	if _, err := uuid.Parse(a.ID); err != nil {
		t.Errorf("expected a UUID, got %q: %v", a.ID, err)
	}
	if a.ID == b.ID {
		t.Error("expected distinct IDs")
	}
	if !a.Timestamp.Equal(now) || a.Type != EventAnnotation || a.Message != "hello" {
		t.Errorf("unexpected event: %+v", a)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	tests := []struct {
		name     string
		event    SystemEvent
		expected string
	}{
		{
			"will",
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"},
			`{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`,
		},
		{
			"reconnected omits reason",
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC), Event: "RECONNECTED"},
			`{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`,
		},
		{
			"raw payload wins",
			SystemEvent{Event: "STATUS", RawPayload: []byte(`{"system":{"event":"STATUS"}}`)},
			`{"system":{"event":"STATUS"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatSystemPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.expected {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, tt.expected)
			}
		})
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(Event{Type: EventMode, Mode: "OFF"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 1 || len(f.Payloads) != 1 {
		t.Errorf("expected 1 event and payload, got %d/%d", len(f.Events), len(f.Payloads))
	}
	if names := f.SystemEventNames(); len(names) != 1 || names[0] != "STARTUP" {
		t.Errorf("unexpected system events: %v", names)
	}
	if !f.SystemEvents[0].Retained {
		t.Error("retained flag not recorded")
	}
	if types := f.EventTypes(); len(types) != 1 || types[0] != EventMode {
		t.Errorf("unexpected event types: %v", types)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")

	if err := f.Publish(Event{}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestAnnotator(t *testing.T) {
	f := NewFakePublisher()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := NewAnnotator(f, func() time.Time { return now }, nil)

	a.RecordEvent(control.EventDoorOpened)
	a.RecordEvent(control.EventDoorClosed)

	if len(f.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(f.Events))
	}
	if f.Events[0].Message != control.EventDoorOpened || f.Events[1].Message != control.EventDoorClosed {
		t.Errorf("unexpected messages: %q, %q", f.Events[0].Message, f.Events[1].Message)
	}
	for _, e := range f.Events {
		if e.Type != EventAnnotation || !e.Timestamp.Equal(now) || e.ID == "" {
			t.Errorf("unexpected event: %+v", e)
		}
	}

	// errors are swallowed
	f.PublishError = errors.New("broker down")
	a.RecordEvent("ignored")
}
