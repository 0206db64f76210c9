// Package control contains the chamber temperature controller: the control
// state machine, its overshoot peak estimator, the output mapping and the
// setpoint handlers.
//
// This package has no hardware, network or logging dependencies. Sensors,
// relays, the clock, the annotation sink and block storage are injected as
// small interfaces (see devices.go). A Controller is not safe for concurrent
// use; the caller serializes Tick, ApplyOutputs and the setters.
package control

import (
	"errors"
	"time"

	"github.com/sweeney/chamber-control/internal/temp"
)

// State is the discrete control state of the chamber.
type State string

const (
	StateStartup  State = "STARTUP"
	StateIdle     State = "IDLE"
	StateOff      State = "OFF"
	StateCooling  State = "COOLING"
	StateHeating  State = "HEATING"
	StateDoorOpen State = "DOOR_OPEN"
)

// Mode selects what the controller regulates. The byte values are part of the
// persisted settings record.
type Mode byte

const (
	ModeOff            Mode = 'o'
	ModeFridgeConstant Mode = 'f'
	ModeBeerConstant   Mode = 'b'
	ModeBeerProfile    Mode = 'p'
	ModeTest           Mode = 't'
)

// ParseMode accepts either the single-letter code or the mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeOff, ModeFridgeConstant, ModeBeerConstant, ModeBeerProfile, ModeTest} {
		if s == string(rune(m)) || s == m.String() {
			return m, nil
		}
	}
	return 0, ErrUnknownMode
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeOff, ModeFridgeConstant, ModeBeerConstant, ModeBeerProfile, ModeTest:
		return true
	}
	return false
}

// BeerDriven reports whether the mode regulates on the beer temperature.
func (m Mode) BeerDriven() bool {
	return m == ModeBeerConstant || m == ModeBeerProfile
}

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeFridgeConstant:
		return "FRIDGE_CONSTANT"
	case ModeBeerConstant:
		return "BEER_CONSTANT"
	case ModeBeerProfile:
		return "BEER_PROFILE"
	case ModeTest:
		return "TEST"
	}
	return "UNKNOWN"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// DoorIndicator selects which actuator signals an open door.
type DoorIndicator int

const (
	// IndicatorLight switches the light on while the door is open.
	IndicatorLight DoorIndicator = iota
	// IndicatorHeater uses the heater output (typically a lamp) instead, and
	// leaves the light output alone.
	IndicatorHeater
)

// Annotations recorded on door edges.
const (
	EventDoorOpened = "Fridge door opened"
	EventDoorClosed = "Fridge door closed"
)

// SignificantChange is the setpoint delta, in raw 1/512 °C units, above which
// the controller is reset and the settings are persisted. 128 is a quarter of
// a degree.
const SignificantChange temp.Fixed = 128

var (
	// ErrUnknownMode is returned for mode bytes or names outside the defined set.
	ErrUnknownMode = errors.New("control: unknown mode")
	// ErrShortBlock is returned when a persisted record has the wrong size.
	ErrShortBlock = errors.New("control: record size mismatch")
	// ErrNoStorage is returned by the load/store calls when no Storage is configured.
	ErrNoStorage = errors.New("control: no storage configured")
)

// Constants are the tunable, persisted control parameters.
type Constants struct {
	TempFormat byte // 'C' or 'F', display only

	MaxHeatTimeForEstimate uint16 // seconds of heating taken into account by the estimator
	MaxCoolTimeForEstimate uint16

	TempSettingMin temp.Fixed
	TempSettingMax temp.Fixed

	Kp        temp.Fixed
	Ki        temp.Fixed
	Kd        temp.Fixed
	IMaxError temp.Fixed

	// Offsets from the fridge setting bounding the band in which nothing
	// is switched on.
	IdleRangeHigh temp.Fixed
	IdleRangeLow  temp.Fixed

	// Acceptable windows around the estimated peak, for estimator tuning.
	HeatingTargetUpper temp.Fixed
	HeatingTargetLower temp.Fixed
	CoolingTargetUpper temp.Fixed
	CoolingTargetLower temp.Fixed

	FridgeFastFilter  uint8
	FridgeSlowFilter  uint8
	FridgeSlopeFilter uint8
	BeerFastFilter    uint8
	BeerSlowFilter    uint8
	BeerSlopeFilter   uint8
}

// Settings are the runtime setpoints and mode.
type Settings struct {
	Mode          Mode
	BeerSetting   temp.Temp
	FridgeSetting temp.Temp
	HeatEstimator temp.Fixed // overshoot per hour of heating
	CoolEstimator temp.Fixed // overshoot per hour of cooling, negative lowers the estimate
}

// Variables hold transient estimator state. They are not persisted.
type Variables struct {
	EstimatedPeak   temp.Temp
	PosPeakEstimate temp.Temp
	NegPeakEstimate temp.Temp
}

// Timings are the compressor protection thresholds, in seconds.
type Timings struct {
	MinCoolOffTime               uint32
	MinHeatOffTime               uint32
	MinCoolOnTime                uint32
	MinHeatOnTime                uint32
	MinCoolOffTimeFridgeConstant uint32
	MinSwitchTime                uint32

	// A pending peak detection is abandoned this long after the actuator
	// switched off, so that a missed peak cannot block the next cycle forever.
	HeatPeakDetectTime uint32
	CoolPeakDetectTime uint32
}

// DefaultTimings returns the stock protection thresholds.
func DefaultTimings() Timings {
	return Timings{
		MinCoolOffTime:               300,
		MinHeatOffTime:               300,
		MinCoolOnTime:                180,
		MinHeatOnTime:                180,
		MinCoolOffTimeFridgeConstant: 600,
		MinSwitchTime:                600,
		HeatPeakDetectTime:           1800,
		CoolPeakDetectTime:           1800,
	}
}

// DefaultConstants returns the factory constants.
func DefaultConstants() Constants {
	return Constants{
		TempFormat:             'C',
		MaxHeatTimeForEstimate: 600,
		MaxCoolTimeForEstimate: 1200,

		TempSettingMax: 30 * temp.Degree,
		TempSettingMin: 1 * temp.Degree,

		Kp:        10240, // +20
		Ki:        307,   // +0.6
		Kd:        -1536, // -3
		IMaxError: 256,   // 0.5 deg

		IdleRangeHigh: temp.Degree,
		IdleRangeLow:  -temp.Degree,

		HeatingTargetUpper: 154,  // +0.3 deg
		HeatingTargetLower: -102, // -0.2 deg
		CoolingTargetUpper: 102,  // +0.2 deg
		CoolingTargetLower: -154, // -0.3 deg

		// Filter b values; delay is 3.33 * 2^b * number of cascades.
		FridgeFastFilter:  1,
		FridgeSlowFilter:  4,
		FridgeSlopeFilter: 3,
		BeerFastFilter:    3,
		BeerSlowFilter:    5,
		BeerSlopeFilter:   4,
	}
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	return Settings{
		Mode:          ModeOff,
		BeerSetting:   temp.Of(20 * temp.Degree),
		FridgeSetting: temp.Of(20 * temp.Degree),
		HeatEstimator: 102,   // 0.2 deg/h
		CoolEstimator: -2560, // -5 deg/h
	}
}

// SystemClock counts whole seconds since it was created.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock starting at zero now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Seconds returns the elapsed whole seconds, wrapping at 2^32.
func (c *SystemClock) Seconds() uint32 {
	return uint32(time.Since(c.start) / time.Second)
}
