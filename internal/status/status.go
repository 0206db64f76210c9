// Package status provides a thread-safe status tracker for the chamber-control daemon.
// It is written by the run loop and read by HTTP handlers and status publishing.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/chamber-control/internal/control"
	"github.com/sweeney/chamber-control/internal/temp"
)

// MaxAnnotations is the number of recent annotations kept for display.
const MaxAnnotations = 20

// Source is the read side of the controller the tracker copies from.
type Source interface {
	State() control.State
	Mode() control.Mode
	BeerTemp() temp.Temp
	BeerSetting() temp.Temp
	FridgeTemp() temp.Temp
	FridgeSetting() temp.Temp
	Variables() control.Variables
	PeakDetect() (pos, neg bool)
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs    int64
	Broker    string
	HTTPPort  string
	Indicator string
	Storage   string
	Simulate  bool
}

// Outputs is the last commanded relay state.
type Outputs struct {
	Cooler bool
	Heater bool
	Light  bool
}

// DoorCounts counts door edges since startup.
type DoorCounts struct {
	Opened int
	Closed int
}

// Annotation is a recorded controller event.
type Annotation struct {
	Time    time.Time
	Message string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         control.State
	Mode          control.Mode
	BeerTemp      temp.Temp
	BeerSetting   temp.Temp
	FridgeTemp    temp.Temp
	FridgeSetting temp.Temp
	Estimates     control.Variables
	PosPeakDetect bool
	NegPeakDetect bool
	Outputs       Outputs
	Door          DoorCounts
	Annotations   []Annotation
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:     startTime,
			Config:        cfg,
			BeerTemp:      temp.Undefined(),
			BeerSetting:   temp.Undefined(),
			FridgeTemp:    temp.Undefined(),
			FridgeSetting: temp.Undefined(),
		},
		now: time.Now,
	}
}

// Update copies controller state. Called from runLoop on every tick.
func (t *Tracker) Update(src Source) {
	pos, neg := src.PeakDetect()
	t.mu.Lock()
	t.snap.State = src.State()
	t.snap.Mode = src.Mode()
	t.snap.BeerTemp = src.BeerTemp()
	t.snap.BeerSetting = src.BeerSetting()
	t.snap.FridgeTemp = src.FridgeTemp()
	t.snap.FridgeSetting = src.FridgeSetting()
	t.snap.Estimates = src.Variables()
	t.snap.PosPeakDetect = pos
	t.snap.NegPeakDetect = neg
	t.mu.Unlock()
}

// SetOutputs records the relay state after ApplyOutputs.
func (t *Tracker) SetOutputs(o Outputs) {
	t.mu.Lock()
	t.snap.Outputs = o
	t.mu.Unlock()
}

// RecordEvent keeps the annotation and counts door edges. It satisfies
// control.EventSink.
func (t *Tracker) RecordEvent(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch message {
	case control.EventDoorOpened:
		t.snap.Door.Opened++
	case control.EventDoorClosed:
		t.snap.Door.Closed++
	}

	a := append(t.snap.Annotations, Annotation{Time: t.now(), Message: message})
	if len(a) > MaxAnnotations {
		a = a[len(a)-MaxAnnotations:]
	}
	t.snap.Annotations = a
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Annotations = append([]Annotation(nil), t.snap.Annotations...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
