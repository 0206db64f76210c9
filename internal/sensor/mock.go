package sensor

import (
	"sync"

	"github.com/sweeney/chamber-control/internal/control"
	"github.com/sweeney/chamber-control/internal/temp"
)

// Mock simulates a probe in a chamber. The value moves once per clock
// second by Delta, down while the controller cools and up while it heats.
// Otherwise it relaxes toward Ambient by one raw unit per second. Reads
// within the same second return the same value, so status readers do not
// disturb the simulation.
type Mock struct {
	Ambient temp.Fixed
	Delta   temp.Fixed

	clock control.Clock
	state func() control.State

	mu    sync.Mutex
	value temp.Fixed
	last  uint32
	fast  uint8
	slow  uint8
	slope uint8
}

// NewMock creates a connected mock starting at start. clock drives the
// simulation, nil uses a system clock. state reports the controller state;
// nil leaves the reading drifting toward ambient.
func NewMock(start, ambient, delta temp.Fixed, clock control.Clock, state func() control.State) *Mock {
	if clock == nil {
		clock = control.NewSystemClock()
	}
	if state == nil {
		state = func() control.State { return control.StateIdle }
	}
	return &Mock{Ambient: ambient, Delta: delta, clock: clock, state: state, value: start, last: clock.Seconds()}
}

// IsConnected always reports true.
func (m *Mock) IsConnected() bool { return true }

// ReadFastFiltered catches the simulation up with the clock and returns the
// value.
func (m *Mock) ReadFastFiltered() temp.Temp {
	now := m.clock.Seconds()
	m.mu.Lock()
	steps := now - m.last
	m.last = now
	m.mu.Unlock()
	if steps == 0 {
		return temp.Of(m.Peek())
	}

	st := m.state()
	m.mu.Lock()
	defer m.mu.Unlock()
	for ; steps > 0; steps-- {
		m.step(st)
	}
	return temp.Of(m.value)
}

func (m *Mock) step(st control.State) {
	switch st {
	case control.StateCooling:
		m.value = m.value.Add(-m.Delta)
	case control.StateHeating:
		m.value = m.value.Add(m.Delta)
	default:
		switch {
		case m.value > m.Ambient:
			m.value--
		case m.value < m.Ambient:
			m.value++
		}
	}
}

// Peek returns the current value without advancing.
func (m *Mock) Peek() temp.Fixed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

func (m *Mock) SetFastFilterCoefficients(b uint8) {
	m.mu.Lock()
	m.fast = b
	m.mu.Unlock()
}

func (m *Mock) SetSlowFilterCoefficients(b uint8) {
	m.mu.Lock()
	m.slow = b
	m.mu.Unlock()
}

func (m *Mock) SetSlopeFilterCoefficients(b uint8) {
	m.mu.Lock()
	m.slope = b
	m.mu.Unlock()
}

// Filters returns the coefficients last pushed by the controller.
func (m *Mock) Filters() (fast, slow, slope uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fast, m.slow, m.slope
}
