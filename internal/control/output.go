package control

// ApplyOutputs drives the actuators from the current state. In TEST mode the
// outputs are under manual control and are left untouched.
func (c *Controller) ApplyOutputs() {
	if c.cs.Mode == ModeTest {
		return
	}

	c.cooler.SetActive(c.state == StateCooling)
	switch c.indicator {
	case IndicatorHeater:
		c.heater.SetActive(c.state == StateHeating || c.state == StateDoorOpen)
	default:
		c.heater.SetActive(c.state == StateHeating)
		c.light.SetActive(c.state == StateDoorOpen)
	}
}
