package control

import "github.com/sweeney/chamber-control/internal/temp"

const secondsPerHour = 3600

// EstimatePeak predicts the fridge temperature extreme reached after the
// actuator switches off. The actuators lag, so the reading keeps drifting
// after they stop; switching on the estimate compensates for that inertia.
//
// coefficient is the overshoot per hour of activity. Only the last maxWindow
// seconds of activity count. The product is formed in the wide type and the
// result saturates.
func EstimatePeak(reading temp.Fixed, maxWindow uint16, coefficient temp.Fixed, sinceIdle uint32) temp.Fixed {
	active := sinceIdle
	if w := uint32(maxWindow); w < active {
		active = w
	}
	overshoot := coefficient.Wide() * temp.Wide(active) / secondsPerHour
	return (reading.Wide() + overshoot).Fixed()
}
