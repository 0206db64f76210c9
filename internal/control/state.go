package control

import "github.com/sweeney/chamber-control/internal/temp"

// Tick evaluates the state machine once and returns the new state. It is
// meant to be called once per second by the scheduler, followed by
// ApplyOutputs.
//
// Missing feedback never actuates: an undefined fridge setting or a
// disconnected probe force IDLE until the next tick sees valid inputs.
func (c *Controller) Tick() State {
	if c.door.Sense() {
		if c.state != StateDoorOpen {
			c.events.RecordEvent(EventDoorOpened)
		}
		c.state = StateDoorOpen
		return c.state
	}
	if c.state == StateDoorOpen {
		// Always leave through IDLE, the next tick decides what to do.
		c.events.RecordEvent(EventDoorClosed)
		c.state = StateIdle
		return c.state
	}
	c.state = c.nextState()
	return c.state
}

func (c *Controller) nextState() State {
	if c.cs.Mode == ModeOff {
		return StateOff
	}
	fridgeSetting, ok := c.cs.FridgeSetting.Value()
	if !ok {
		return StateIdle
	}
	if !c.fridge.IsConnected() || (!c.beer.IsConnected() && c.cs.Mode.BeerDriven()) {
		return StateIdle
	}
	fridgeFast, ok := c.fridge.ReadFastFiltered().Value()
	if !ok {
		return StateIdle
	}
	beerFast := c.beer.ReadFastFiltered()

	now := c.clock.Seconds()
	sinceIdle := c.timeSinceIdle(now)
	sinceCooling := c.timeSinceCooling(now)
	sinceHeating := c.timeSinceHeating(now)

	c.expirePeakDetect(sinceCooling, sinceHeating)

	switch c.state {
	case StateStartup, StateIdle, StateOff:
		c.lastIdleTime = now
		return c.fromIdle(fridgeSetting, fridgeFast, beerFast, sinceCooling, sinceHeating)

	case StateCooling:
		c.doNegPeakDetect = true
		c.lastCoolTime = now
		peak := EstimatePeak(fridgeFast, c.cc.MaxCoolTimeForEstimate, c.cs.CoolEstimator, sinceIdle)
		c.cv.EstimatedPeak = temp.Of(peak)
		// sinceIdle counts from the last idle tick, so this is the on time
		if peak <= fridgeSetting && sinceIdle > c.timings.MinCoolOnTime {
			c.cv.NegPeakEstimate = c.cv.EstimatedPeak
			return StateIdle
		}
		return StateCooling

	case StateHeating:
		c.doPosPeakDetect = true
		c.lastHeatTime = now
		peak := EstimatePeak(fridgeFast, c.cc.MaxHeatTimeForEstimate, c.cs.HeatEstimator, sinceIdle)
		c.cv.EstimatedPeak = temp.Of(peak)
		if peak >= fridgeSetting && sinceIdle > c.timings.MinHeatOnTime {
			c.cv.PosPeakEstimate = c.cv.EstimatedPeak
			return StateIdle
		}
		return StateHeating
	}
	return StateIdle
}

// fromIdle decides whether to start cooling or heating. The minimum off and
// switch times protect the compressor from short-cycling; STARTUP has no
// previous cycle to protect and bypasses them.
func (c *Controller) fromIdle(fridgeSetting, fridgeFast temp.Fixed, beerFast temp.Temp, sinceCooling, sinceHeating uint32) State {
	startup := c.state == StateStartup
	stay := StateIdle
	if startup {
		stay = StateStartup
	}

	// Wait for the previous cycle's peak before switching again.
	if c.doNegPeakDetect || c.doPosPeakDetect {
		return stay
	}

	t := c.timings
	beer, beerOK := beerFast.Value()
	beerSetting, settingOK := c.cs.BeerSetting.Value()
	beerKnown := beerOK && settingOK

	if fridgeFast > fridgeSetting.Add(c.cc.IdleRangeHigh) {
		if c.cs.Mode == ModeFridgeConstant {
			if startup || (sinceCooling > t.MinCoolOffTimeFridgeConstant && sinceHeating > t.MinSwitchTime) {
				return StateCooling
			}
			return stay
		}
		// only cool when the beer is too warm
		if !beerKnown || beer < beerSetting {
			return stay
		}
		if startup || (sinceCooling > t.MinCoolOffTime && sinceHeating > t.MinSwitchTime) {
			return StateCooling
		}
		return stay
	}

	if fridgeFast < fridgeSetting.Add(c.cc.IdleRangeLow) {
		// only heat when the beer is too cold
		if beerKnown && beer > beerSetting {
			return stay
		}
		if !beerKnown && c.cs.Mode.BeerDriven() {
			return stay
		}
		if startup || (sinceCooling > t.MinSwitchTime && sinceHeating > t.MinHeatOffTime) {
			return StateHeating
		}
	}
	return stay
}

// expirePeakDetect abandons a pending peak detection once the actuator has
// been off for the configured detect time.
func (c *Controller) expirePeakDetect(sinceCooling, sinceHeating uint32) {
	if c.doPosPeakDetect && c.state != StateHeating && sinceHeating > c.timings.HeatPeakDetectTime {
		c.doPosPeakDetect = false
	}
	if c.doNegPeakDetect && c.state != StateCooling && sinceCooling > c.timings.CoolPeakDetectTime {
		c.doNegPeakDetect = false
	}
}
