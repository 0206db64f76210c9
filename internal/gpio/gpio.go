// Package gpio drives the chamber relays and reads the door switch.
// The real implementation uses the Linux GPIO character device.
// The fakes allow testing without hardware.
package gpio

import (
	"sync"

	"github.com/sweeney/chamber-control/internal/logger"
)

// Default pin definitions (BCM numbering)
const (
	DefaultPinCooler = 5
	DefaultPinHeater = 6
	DefaultPinLight  = 13
	DefaultPinDoor   = 19
)

// Line is a requested GPIO line. Values are logical: active-low lines are
// inverted by the kernel.
type Line interface {
	Value() (int, error)
	SetValue(value int) error
}

// Relay switches an output line. It implements control.Actuator.
type Relay struct {
	name string
	line Line
	log  *logger.Logger

	mu    sync.Mutex
	known bool
	on    bool
}

// NewRelay wraps an output line.
func NewRelay(name string, line Line, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{name: name, line: line, log: log}
}

// SetActive switches the relay. The line is only written on a change. A
// failed write is logged and retried on the next call.
func (r *Relay) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.known && r.on == active {
		return
	}
	v := 0
	if active {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		r.known = false
		r.log.Errorw("relay write failed", "relay", r.name, "active", active, "err", err)
		return
	}
	r.known = true
	r.on = active
	r.log.Debugw("relay switched", "relay", r.name, "active", active)
}

// Active reports the last state written successfully.
func (r *Relay) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known && r.on
}

// DoorSwitch reads the door reed switch. It implements control.BinarySensor.
type DoorSwitch struct {
	line Line
	log  *logger.Logger

	mu     sync.Mutex
	last   bool
	failed bool
}

// NewDoorSwitch wraps an input line. A logical 1 means open.
func NewDoorSwitch(line Line, log *logger.Logger) *DoorSwitch {
	if log == nil {
		log = logger.Nop()
	}
	return &DoorSwitch{line: line, log: log}
}

// Sense reports whether the door is open. When the line cannot be read the
// last good reading is returned; the failure is logged once until the line
// recovers.
func (d *DoorSwitch) Sense() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, err := d.line.Value()
	if err != nil {
		if !d.failed {
			d.log.Errorw("door switch read failed", "err", err)
			d.failed = true
		}
		return d.last
	}
	if d.failed {
		d.log.Infow("door switch recovered")
		d.failed = false
	}
	d.last = v != 0
	return d.last
}
