package control

import (
	"fmt"

	"github.com/sweeney/chamber-control/internal/temp"
)

type fakeSensor struct {
	connected bool
	reading   temp.Temp
	fast      uint8
	slow      uint8
	slope     uint8
}

func newFakeSensor(c float64) *fakeSensor {
	return &fakeSensor{connected: true, reading: temp.Celsius(c)}
}

func (s *fakeSensor) IsConnected() bool { return s.connected }

func (s *fakeSensor) ReadFastFiltered() temp.Temp {
	if !s.connected {
		return temp.Undefined()
	}
	return s.reading
}

func (s *fakeSensor) SetFastFilterCoefficients(b uint8)  { s.fast = b }
func (s *fakeSensor) SetSlowFilterCoefficients(b uint8)  { s.slow = b }
func (s *fakeSensor) SetSlopeFilterCoefficients(b uint8) { s.slope = b }

type fakeDoor struct{ open bool }

func (d *fakeDoor) Sense() bool { return d.open }

type fakeActuator struct {
	active bool
	writes int
}

func (a *fakeActuator) SetActive(active bool) {
	a.active = active
	a.writes++
}

type fakeClock struct{ now uint32 }

func (c *fakeClock) Seconds() uint32 { return c.now }

type fakeSink struct{ events []string }

func (s *fakeSink) RecordEvent(msg string) { s.events = append(s.events, msg) }

type fakeStorage struct {
	data     map[int][]byte
	writes   int
	writeErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{data: make(map[int][]byte)}
}

func (s *fakeStorage) ReadBlock(offset, size int) ([]byte, error) {
	b, ok := s.data[offset]
	if !ok || len(b) != size {
		return nil, fmt.Errorf("no block of %d bytes at %d", size, offset)
	}
	return append([]byte(nil), b...), nil
}

func (s *fakeStorage) WriteBlock(offset int, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes++
	s.data[offset] = append([]byte(nil), data...)
	return nil
}

type countingComputer struct{ calls int }

func (p *countingComputer) UpdatePID(*Constants, *Settings, *Variables) { p.calls++ }

// rig bundles a controller with its fakes.
type rig struct {
	c       *Controller
	beer    *fakeSensor
	fridge  *fakeSensor
	door    *fakeDoor
	heater  *fakeActuator
	cooler  *fakeActuator
	light   *fakeActuator
	clock   *fakeClock
	sink    *fakeSink
	storage *fakeStorage
	pid     *countingComputer
}

func newRig(indicator DoorIndicator) *rig {
	r := &rig{
		beer:    newFakeSensor(20),
		fridge:  newFakeSensor(20),
		door:    &fakeDoor{},
		heater:  &fakeActuator{},
		cooler:  &fakeActuator{},
		light:   &fakeActuator{},
		clock:   &fakeClock{now: 10000},
		sink:    &fakeSink{},
		storage: newFakeStorage(),
		pid:     &countingComputer{},
	}
	r.c = New(Devices{
		Beer:   r.beer,
		Fridge: r.fridge,
		Door:   r.door,
		Heater: r.heater,
		Cooler: r.cooler,
		Light:  r.light,
	}, Options{
		Clock:          r.clock,
		Events:         r.sink,
		Storage:        r.storage,
		SettingsOffset: 64,
		Indicator:      indicator,
		PID:            r.pid,
	})
	return r
}

// idleSince puts the controller in IDLE with the given elapsed times.
func (r *rig) idleSince(sinceCooling, sinceHeating uint32) {
	r.c.state = StateIdle
	r.c.lastIdleTime = r.clock.now
	r.c.lastCoolTime = r.clock.now - sinceCooling
	r.c.lastHeatTime = r.clock.now - sinceHeating
}

func (r *rig) fridgeConstant(setting float64) {
	r.c.cs.Mode = ModeFridgeConstant
	r.c.cs.FridgeSetting = temp.Celsius(setting)
}

func (r *rig) beerConstant(beer, fridge float64) {
	r.c.cs.Mode = ModeBeerConstant
	r.c.cs.BeerSetting = temp.Celsius(beer)
	r.c.cs.FridgeSetting = temp.Celsius(fridge)
}
