package control

import "github.com/sweeney/chamber-control/internal/temp"

// TempSensor is a filtered temperature probe.
type TempSensor interface {
	IsConnected() bool
	// ReadFastFiltered returns the low-latency filtered reading, undefined
	// when the probe is disconnected.
	ReadFastFiltered() temp.Temp
	SetFastFilterCoefficients(b uint8)
	SetSlowFilterCoefficients(b uint8)
	SetSlopeFilterCoefficients(b uint8)
}

// BinarySensor is an on/off input such as the door switch.
type BinarySensor interface {
	// Sense returns true when the door is open.
	Sense() bool
}

// Actuator is an on/off output such as a relay.
type Actuator interface {
	SetActive(active bool)
}

// Clock is the scheduler time base.
type Clock interface {
	// Seconds returns a monotonic second count. Wraparound is tolerated:
	// elapsed times are unsigned differences.
	Seconds() uint32
}

// EventSink records human-readable annotations. It must not block.
type EventSink interface {
	RecordEvent(message string)
}

// Storage reads and writes fixed-size blocks at byte offsets.
type Storage interface {
	ReadBlock(offset, size int) ([]byte, error)
	WriteBlock(offset int, data []byte) error
}

// SettingsComputer recomputes PID-derived settings after a setpoint change.
type SettingsComputer interface {
	UpdatePID(cc *Constants, cs *Settings, cv *Variables)
}

// Devices groups the hardware collaborators. Nil entries are replaced with
// inert stand-ins: a disconnected probe, a closed door, an output that
// ignores writes.
type Devices struct {
	Beer   TempSensor
	Fridge TempSensor
	Door   BinarySensor
	Heater Actuator
	Cooler Actuator
	Light  Actuator
}

type disconnectedSensor struct{}

func (disconnectedSensor) IsConnected() bool                { return false }
func (disconnectedSensor) ReadFastFiltered() temp.Temp      { return temp.Undefined() }
func (disconnectedSensor) SetFastFilterCoefficients(uint8)  {}
func (disconnectedSensor) SetSlowFilterCoefficients(uint8)  {}
func (disconnectedSensor) SetSlopeFilterCoefficients(uint8) {}

type closedDoor struct{}

func (closedDoor) Sense() bool { return false }

type nopActuator struct{}

func (nopActuator) SetActive(bool) {}

type nopSink struct{}

func (nopSink) RecordEvent(string) {}

type nopComputer struct{}

func (nopComputer) UpdatePID(*Constants, *Settings, *Variables) {}
