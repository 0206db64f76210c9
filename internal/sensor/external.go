// Package sensor provides temperature probes for the controller: External,
// fed by readings published over MQTT, and Mock, a simulated chamber used by
// --simulate.
package sensor

import (
	"sync"
	"time"

	"github.com/sweeney/chamber-control/internal/temp"
)

// External is a probe whose readings are pushed in from elsewhere. It reports
// disconnected until the first reading and again once the latest reading is
// older than the timeout.
//
// Set may be called from the MQTT callback goroutine while the controller
// reads, so External is safe for concurrent use.
type External struct {
	name    string
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	value   temp.Temp
	updated time.Time
	fast    uint8
	slow    uint8
	slope   uint8
}

// NewExternal creates a probe. now may be nil to use time.Now.
func NewExternal(name string, timeout time.Duration, now func() time.Time) *External {
	if now == nil {
		now = time.Now
	}
	return &External{name: name, timeout: timeout, now: now}
}

// Name returns the probe name.
func (e *External) Name() string {
	return e.name
}

// Set records a new reading. An undefined value disconnects the probe.
func (e *External) Set(t temp.Temp) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = t
	e.updated = e.now()
}

// LastUpdate returns the time of the latest reading, zero if none arrived.
func (e *External) LastUpdate() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updated
}

// IsConnected reports whether a defined reading arrived within the timeout.
func (e *External) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected()
}

func (e *External) connected() bool {
	if !e.value.Defined() {
		return false
	}
	return e.now().Sub(e.updated) <= e.timeout
}

// ReadFastFiltered returns the latest reading, undefined when disconnected.
// Readings arrive already filtered by the publishing node.
func (e *External) ReadFastFiltered() temp.Temp {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected() {
		return temp.Undefined()
	}
	return e.value
}

// SetFastFilterCoefficients records the coefficient.
func (e *External) SetFastFilterCoefficients(b uint8) {
	e.mu.Lock()
	e.fast = b
	e.mu.Unlock()
}

// SetSlowFilterCoefficients records the coefficient.
func (e *External) SetSlowFilterCoefficients(b uint8) {
	e.mu.Lock()
	e.slow = b
	e.mu.Unlock()
}

// SetSlopeFilterCoefficients records the coefficient.
func (e *External) SetSlopeFilterCoefficients(b uint8) {
	e.mu.Lock()
	e.slope = b
	e.mu.Unlock()
}

// Filters returns the fast, slow and slope coefficients last pushed by the
// controller. They are published with the status so that the sensor nodes
// can apply them.
func (e *External) Filters() (fast, slow, slope uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fast, e.slow, e.slope
}
