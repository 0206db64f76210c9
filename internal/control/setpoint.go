package control

import (
	"fmt"

	"github.com/sweeney/chamber-control/internal/temp"
)

// SetMode switches the control mode. A change forces IDLE and persists the
// settings. BEER_PROFILE and OFF clear both setpoints: they have to be
// supplied again before anything is switched on.
func (c *Controller) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMode, byte(m))
	}
	if m == c.cs.Mode {
		return nil
	}
	c.state = StateIdle
	c.cs.Mode = m
	if m == ModeBeerProfile || m == ModeOff {
		c.cs.BeerSetting = temp.Undefined()
		c.cs.FridgeSetting = temp.Undefined()
	}
	return c.storeTempSettings()
}

// SetBeerTemp updates the beer setpoint and re-evaluates the state. A change
// of more than SignificantChange resets the controller: old overshoot
// predictions no longer apply.
//
// The settings are only written when the new value is more than
// SignificantChange away from the last persisted one. The host re-sends its
// settings after a power loss, so storage is a fallback and is spared the
// writes of small adjustments.
func (c *Controller) SetBeerTemp(t temp.Temp) error {
	t = c.clampSetting(t)
	old := c.cs.BeerSetting
	c.cs.BeerSetting = t
	if significantChange(old, t) {
		c.Reset()
	}
	c.UpdatePID()
	c.Tick()
	if significantChange(c.storedBeerSetting, t) {
		return c.storeTempSettings()
	}
	return nil
}

// SetFridgeTemp updates the fridge setpoint, resets the controller and
// re-evaluates the state.
func (c *Controller) SetFridgeTemp(t temp.Temp) {
	c.cs.FridgeSetting = c.clampSetting(t)
	c.Reset()
	c.UpdatePID()
	c.Tick()
}

// Reset clears the pending peak detections.
func (c *Controller) Reset() {
	c.doPosPeakDetect = false
	c.doNegPeakDetect = false
}

// UpdatePID lets the settings computer derive settings from the new setpoints.
func (c *Controller) UpdatePID() {
	c.pid.UpdatePID(&c.cc, &c.cs, &c.cv)
}

func (c *Controller) clampSetting(t temp.Temp) temp.Temp {
	v, ok := t.Value()
	if !ok {
		return t
	}
	switch {
	case v > c.cc.TempSettingMax:
		return temp.Of(c.cc.TempSettingMax)
	case v < c.cc.TempSettingMin:
		return temp.Of(c.cc.TempSettingMin)
	}
	return t
}

func (c *Controller) storeTempSettings() error {
	if c.storage == nil {
		return nil
	}
	_, err := c.StoreSettings(c.settingsOffset)
	return err
}

// significantChange reports whether a and b differ by more than
// SignificantChange. Gaining or losing a value always counts.
func significantChange(a, b temp.Temp) bool {
	av, aok := a.Value()
	bv, bok := b.Value()
	if aok != bok {
		return true
	}
	if !aok {
		return false
	}
	d := av.Wide() - bv.Wide()
	if d < 0 {
		d = -d
	}
	return d > SignificantChange.Wide()
}
