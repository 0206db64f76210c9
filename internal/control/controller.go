package control

import (
	"github.com/sweeney/chamber-control/internal/temp"
)

// Options configure a Controller. Zero values select defaults.
type Options struct {
	Clock  Clock
	Events EventSink

	// Storage receives the settings record whenever a setter decides to
	// persist, at SettingsOffset.
	Storage        Storage
	SettingsOffset int

	Timings   Timings
	Indicator DoorIndicator
	PID       SettingsComputer
}

// Controller runs the chamber state machine.
type Controller struct {
	beer   TempSensor
	fridge TempSensor
	door   BinarySensor
	heater Actuator
	cooler Actuator
	light  Actuator

	clock          Clock
	events         EventSink
	storage        Storage
	settingsOffset int
	timings        Timings
	indicator      DoorIndicator
	pid            SettingsComputer

	cc Constants
	cs Settings
	cv Variables

	state           State
	doPosPeakDetect bool
	doNegPeakDetect bool

	// beer setting as last written to storage
	storedBeerSetting temp.Temp

	lastIdleTime uint32
	lastHeatTime uint32
	lastCoolTime uint32
}

// New creates a controller in the STARTUP state with default constants and
// settings. The filter coefficients are pushed to both probes.
func New(dev Devices, opts Options) *Controller {
	c := &Controller{
		beer:           dev.Beer,
		fridge:         dev.Fridge,
		door:           dev.Door,
		heater:         dev.Heater,
		cooler:         dev.Cooler,
		light:          dev.Light,
		clock:          opts.Clock,
		events:         opts.Events,
		storage:        opts.Storage,
		settingsOffset: opts.SettingsOffset,
		timings:        opts.Timings,
		indicator:      opts.Indicator,
		pid:            opts.PID,
		cs:             DefaultSettings(),
		state:          StateStartup,
	}
	if c.beer == nil {
		c.beer = disconnectedSensor{}
	}
	if c.fridge == nil {
		c.fridge = disconnectedSensor{}
	}
	if c.door == nil {
		c.door = closedDoor{}
	}
	if c.heater == nil {
		c.heater = nopActuator{}
	}
	if c.cooler == nil {
		c.cooler = nopActuator{}
	}
	if c.light == nil {
		c.light = nopActuator{}
	}
	if c.clock == nil {
		c.clock = NewSystemClock()
	}
	if c.events == nil {
		c.events = nopSink{}
	}
	if c.pid == nil {
		c.pid = nopComputer{}
	}
	if c.timings == (Timings{}) {
		c.timings = DefaultTimings()
	}
	c.LoadDefaultConstants()
	return c
}

// State returns the current control state.
func (c *Controller) State() State {
	return c.state
}

// Mode returns the configured mode.
func (c *Controller) Mode() Mode {
	return c.cs.Mode
}

// Constants returns a copy of the control constants.
func (c *Controller) Constants() Constants {
	return c.cc
}

// Settings returns a copy of the settings.
func (c *Controller) Settings() Settings {
	return c.cs
}

// Variables returns a copy of the estimator state.
func (c *Controller) Variables() Variables {
	return c.cv
}

// PeakDetect reports the pending positive and negative peak detections.
func (c *Controller) PeakDetect() (pos, neg bool) {
	return c.doPosPeakDetect, c.doNegPeakDetect
}

// BeerTemp returns the latest fast-filtered beer reading.
func (c *Controller) BeerTemp() temp.Temp {
	return c.beer.ReadFastFiltered()
}

// BeerSetting returns the beer setpoint.
func (c *Controller) BeerSetting() temp.Temp {
	return c.cs.BeerSetting
}

// FridgeTemp returns the latest fast-filtered fridge reading.
func (c *Controller) FridgeTemp() temp.Temp {
	return c.fridge.ReadFastFiltered()
}

// FridgeSetting returns the fridge setpoint.
func (c *Controller) FridgeSetting() temp.Temp {
	return c.cs.FridgeSetting
}

// SetConstants replaces the control constants and pushes the filter
// coefficients to the probes.
func (c *Controller) SetConstants(cc Constants) {
	c.cc = cc
	c.constantsChanged()
}

// LoadDefaultConstants restores the factory constants.
func (c *Controller) LoadDefaultConstants() {
	c.SetConstants(DefaultConstants())
}

// LoadDefaultSettings restores the default settings. Nothing is persisted.
func (c *Controller) LoadDefaultSettings() {
	c.cs = DefaultSettings()
}

func (c *Controller) constantsChanged() {
	c.fridge.SetFastFilterCoefficients(c.cc.FridgeFastFilter)
	c.fridge.SetSlowFilterCoefficients(c.cc.FridgeSlowFilter)
	c.fridge.SetSlopeFilterCoefficients(c.cc.FridgeSlopeFilter)
	c.beer.SetFastFilterCoefficients(c.cc.BeerFastFilter)
	c.beer.SetSlowFilterCoefficients(c.cc.BeerSlowFilter)
	c.beer.SetSlopeFilterCoefficients(c.cc.BeerSlopeFilter)
}

func (c *Controller) timeSinceIdle(now uint32) uint32 {
	return now - c.lastIdleTime
}

func (c *Controller) timeSinceCooling(now uint32) uint32 {
	return now - c.lastCoolTime
}

func (c *Controller) timeSinceHeating(now uint32) uint32 {
	return now - c.lastHeatTime
}
