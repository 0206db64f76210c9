package control

import (
	"testing"

	"github.com/sweeney/chamber-control/internal/temp"
)

var allStates = []State{StateStartup, StateIdle, StateOff, StateCooling, StateHeating, StateDoorOpen}

func TestNewController(t *testing.T) {
	r := newRig(IndicatorLight)

	if got := r.c.State(); got != StateStartup {
		t.Errorf("expected STARTUP, got %s", got)
	}
	if r.c.Constants() != DefaultConstants() {
		t.Error("expected default constants")
	}
	if r.c.Settings() != DefaultSettings() {
		t.Error("expected default settings")
	}
	if r.fridge.fast != 1 || r.fridge.slow != 4 || r.fridge.slope != 3 {
		t.Errorf("fridge filters: got %d/%d/%d, want 1/4/3", r.fridge.fast, r.fridge.slow, r.fridge.slope)
	}
	if r.beer.fast != 3 || r.beer.slow != 5 || r.beer.slope != 4 {
		t.Errorf("beer filters: got %d/%d/%d, want 3/5/4", r.beer.fast, r.beer.slow, r.beer.slope)
	}
}

func TestNewControllerNilDevices(t *testing.T) {
	c := New(Devices{}, Options{Clock: &fakeClock{now: 42}})
	c.cs.Mode = ModeFridgeConstant

	// Disconnected stand-in probes never let the controller actuate.
	if got := c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE with no probes, got %s", got)
	}
	c.ApplyOutputs()
}

func TestDoorOpenWins(t *testing.T) {
	modes := []Mode{ModeOff, ModeFridgeConstant, ModeBeerConstant, ModeBeerProfile, ModeTest}

	for _, prior := range allStates {
		for _, mode := range modes {
			t.Run(string(prior)+"/"+mode.String(), func(t *testing.T) {
				r := newRig(IndicatorLight)
				r.c.state = prior
				r.c.cs.Mode = mode
				r.fridge.reading = temp.Celsius(30)
				r.door.open = true

				if got := r.c.Tick(); got != StateDoorOpen {
					t.Fatalf("expected DOOR_OPEN, got %s", got)
				}

				wantEvents := 1
				if prior == StateDoorOpen {
					wantEvents = 0
				}
				if len(r.sink.events) != wantEvents {
					t.Errorf("expected %d events, got %v", wantEvents, r.sink.events)
				}
			})
		}
	}
}

func TestDoorOpenedEventOnlyOnEdge(t *testing.T) {
	r := newRig(IndicatorLight)
	r.door.open = true

	for i := 0; i < 5; i++ {
		r.clock.now++
		r.c.Tick()
	}

	if len(r.sink.events) != 1 || r.sink.events[0] != EventDoorOpened {
		t.Errorf("expected a single %q event, got %v", EventDoorOpened, r.sink.events)
	}
}

func TestDoorCloseReturnsToIdle(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.fridge.reading = temp.Celsius(15)
	r.c.state = StateDoorOpen

	if got := r.c.Tick(); got != StateIdle {
		t.Fatalf("expected IDLE after door closed, got %s", got)
	}
	if len(r.sink.events) != 1 || r.sink.events[0] != EventDoorClosed {
		t.Errorf("expected %q event, got %v", EventDoorClosed, r.sink.events)
	}

	r.clock.now++
	if got := r.c.Tick(); got != StateCooling {
		t.Errorf("expected COOLING on the tick after closing, got %s", got)
	}
	if len(r.sink.events) != 1 {
		t.Errorf("expected no further events, got %v", r.sink.events)
	}
}

func TestModeOff(t *testing.T) {
	for _, prior := range []State{StateStartup, StateIdle, StateCooling, StateHeating} {
		r := newRig(IndicatorLight)
		r.c.state = prior
		r.c.cs.Mode = ModeOff
		r.fridge.reading = temp.Celsius(30)

		if got := r.c.Tick(); got != StateOff {
			t.Errorf("%s: expected OFF, got %s", prior, got)
		}
	}
}

func TestUndefinedFridgeSettingStaysIdle(t *testing.T) {
	r := newRig(IndicatorLight)
	r.c.cs.Mode = ModeFridgeConstant
	r.c.cs.FridgeSetting = temp.Undefined()
	r.fridge.reading = temp.Celsius(30)

	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE, got %s", got)
	}
}

func TestDisconnectedSensors(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		fridgeConn bool
		beerConn   bool
		want       State
	}{
		{"fridge lost fridge-constant", ModeFridgeConstant, false, true, StateIdle},
		{"fridge lost beer-constant", ModeBeerConstant, false, true, StateIdle},
		{"beer lost beer-constant", ModeBeerConstant, true, false, StateIdle},
		{"beer lost beer-profile", ModeBeerProfile, true, false, StateIdle},
		{"beer lost fridge-constant", ModeFridgeConstant, true, false, StateCooling},
		{"all connected beer-constant", ModeBeerConstant, true, true, StateCooling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(IndicatorLight)
			r.c.cs.Mode = tt.mode
			r.c.cs.BeerSetting = temp.Celsius(18)
			r.c.cs.FridgeSetting = temp.Celsius(10)
			r.fridge.reading = temp.Celsius(15)
			r.beer.reading = temp.Celsius(20)
			r.fridge.connected = tt.fridgeConn
			r.beer.connected = tt.beerConn
			r.idleSince(9999, 9999)

			if got := r.c.Tick(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFridgeConstantStartsCooling(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.idleSince(9999, 9999)
	r.fridge.reading = temp.Celsius(11.5)

	if got := r.c.Tick(); got != StateCooling {
		t.Errorf("expected COOLING, got %s", got)
	}
}

func TestFridgeConstantCoolOffTimeGate(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.idleSince(5, 9999)
	r.fridge.reading = temp.Celsius(11.5)

	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE, got %s", got)
	}
}

func TestStartupBypassesTimeGates(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.idleSince(5, 5)
	r.c.state = StateStartup
	r.fridge.reading = temp.Celsius(11.5)

	if got := r.c.Tick(); got != StateCooling {
		t.Errorf("expected COOLING from STARTUP, got %s", got)
	}

	r = newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.idleSince(5, 5)
	r.c.state = StateStartup
	r.beer.reading = temp.Celsius(15)
	r.fridge.reading = temp.Celsius(8)

	if got := r.c.Tick(); got != StateHeating {
		t.Errorf("expected HEATING from STARTUP, got %s", got)
	}
}

func TestStartupHeldUntilFirstCycle(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.fridge.reading = temp.Celsius(10)

	for i := 0; i < 3; i++ {
		r.clock.now++
		if got := r.c.Tick(); got != StateStartup {
			t.Fatalf("tick %d: expected STARTUP inside the idle band, got %s", i, got)
		}
	}
}

func TestOffBecomesIdleWhenModeChanges(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.fridge.reading = temp.Celsius(10)
	r.c.state = StateOff

	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE, got %s", got)
	}
}

func TestBeerUnderTargetBlocksCooling(t *testing.T) {
	r := newRig(IndicatorLight)
	r.beerConstant(20, 10)
	r.idleSince(9999, 9999)
	r.beer.reading = temp.Celsius(19.5)
	r.fridge.reading = temp.Celsius(25)

	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE, got %s", got)
	}

	r.beer.reading = temp.Celsius(20.5)
	r.clock.now++
	if got := r.c.Tick(); got != StateCooling {
		t.Errorf("expected COOLING once beer is over target, got %s", got)
	}
}

func TestBeerOverTargetBlocksHeating(t *testing.T) {
	r := newRig(IndicatorLight)
	r.beerConstant(20, 25)
	r.idleSince(9999, 9999)
	r.beer.reading = temp.Celsius(20.5)
	r.fridge.reading = temp.Celsius(15)

	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE, got %s", got)
	}

	r.beer.reading = temp.Celsius(19.5)
	r.clock.now++
	if got := r.c.Tick(); got != StateHeating {
		t.Errorf("expected HEATING once beer is under target, got %s", got)
	}
}

func TestUndefinedBeerSettingBlocksBeerModes(t *testing.T) {
	r := newRig(IndicatorLight)
	r.beerConstant(20, 10)
	r.c.cs.BeerSetting = temp.Undefined()
	r.idleSince(9999, 9999)

	r.fridge.reading = temp.Celsius(25)
	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("cooling: expected IDLE, got %s", got)
	}
	r.fridge.reading = temp.Celsius(2)
	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("heating: expected IDLE, got %s", got)
	}
}

func TestHeatingGates(t *testing.T) {
	tests := []struct {
		name         string
		sinceCooling uint32
		sinceHeating uint32
		want         State
	}{
		{"both elapsed", 9999, 9999, StateHeating},
		{"heat off time not elapsed", 9999, 300, StateIdle},
		{"switch time not elapsed", 600, 9999, StateIdle},
		{"just past both", 601, 301, StateHeating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(IndicatorLight)
			r.fridgeConstant(10)
			r.idleSince(tt.sinceCooling, tt.sinceHeating)
			r.fridge.reading = temp.Celsius(8.5)

			if got := r.c.Tick(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestIdleBandExclusivity(t *testing.T) {
	readings := []float64{9, 9.25, 9.5, 10, 10.5, 10.75, 11}

	for _, mode := range []Mode{ModeFridgeConstant, ModeBeerConstant} {
		for _, f := range readings {
			r := newRig(IndicatorLight)
			r.c.cs.Mode = mode
			r.c.cs.FridgeSetting = temp.Celsius(10)
			r.beer.reading = temp.Celsius(20)
			r.idleSince(9999, 9999)
			r.fridge.reading = temp.Celsius(f)

			if got := r.c.Tick(); got != StateIdle {
				t.Errorf("%s fridge=%.2f: expected IDLE, got %s", mode, f, got)
			}
		}
	}
}

func TestAntiShortCycle(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		offTime uint32
	}{
		{"fridge constant", ModeFridgeConstant, 600},
		{"beer constant", ModeBeerConstant, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(IndicatorLight)
			r.beerConstant(18, 10)
			r.c.cs.Mode = tt.mode
			r.beer.reading = temp.Celsius(22)
			r.fridge.reading = temp.Celsius(25)
			r.idleSince(0, 9999)

			for i := uint32(1); i <= tt.offTime; i++ {
				r.clock.now++
				if got := r.c.Tick(); got != StateIdle {
					t.Fatalf("sinceCooling=%d: expected IDLE, got %s", i, got)
				}
			}
			r.clock.now++
			if got := r.c.Tick(); got != StateCooling {
				t.Errorf("sinceCooling=%d: expected COOLING, got %s", tt.offTime+1, got)
			}
		})
	}
}

func TestPendingPeakDetectBlocksSwitching(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.idleSince(900, 9999)
	r.c.doNegPeakDetect = true
	r.fridge.reading = temp.Celsius(15)

	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE while waiting for peak, got %s", got)
	}
	if _, neg := r.c.PeakDetect(); !neg {
		t.Error("negative peak detection should still be pending")
	}
}

func TestPeakDetectExpires(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.idleSince(1801, 9999)
	r.c.doNegPeakDetect = true
	r.fridge.reading = temp.Celsius(15)

	if got := r.c.Tick(); got != StateCooling {
		t.Errorf("expected COOLING after peak detect timeout, got %s", got)
	}
	if _, neg := r.c.PeakDetect(); neg {
		t.Error("negative peak detection should have expired")
	}
}

func TestCoolingStopsAtEstimatedPeak(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.c.cs.CoolEstimator = -temp.Degree
	r.c.state = StateCooling
	r.c.lastIdleTime = r.clock.now - 3600

	// 1200 s window at -1 deg/h predicts 170/512 below the reading
	setting, _ := r.c.cs.FridgeSetting.Value()
	r.fridge.reading = temp.Of(setting + 170)

	if got := r.c.Tick(); got != StateIdle {
		t.Fatalf("expected IDLE, got %s", got)
	}
	if got := r.c.Variables().NegPeakEstimate; got != temp.Of(setting) {
		t.Errorf("expected negPeakEstimate %s, got %s", temp.Of(setting), got)
	}
	if _, neg := r.c.PeakDetect(); !neg {
		t.Error("expected negative peak detection pending")
	}
	if r.c.lastCoolTime != r.clock.now {
		t.Errorf("expected lastCoolTime refreshed to %d, got %d", r.clock.now, r.c.lastCoolTime)
	}
}

func TestCoolingMinOnTime(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.c.state = StateCooling
	r.c.lastIdleTime = r.clock.now - 100
	r.fridge.reading = temp.Celsius(9)

	if got := r.c.Tick(); got != StateCooling {
		t.Errorf("expected COOLING before min on time, got %s", got)
	}

	r.clock.now += 81
	if got := r.c.Tick(); got != StateIdle {
		t.Errorf("expected IDLE after min on time, got %s", got)
	}
}

func TestCoolingContinuesAbovePeak(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.c.state = StateCooling
	r.c.lastIdleTime = r.clock.now - 3600
	r.fridge.reading = temp.Celsius(14)

	if got := r.c.Tick(); got != StateCooling {
		t.Errorf("expected COOLING, got %s", got)
	}
	if !r.c.Variables().EstimatedPeak.Defined() {
		t.Error("expected an estimated peak")
	}
}

func TestHeatingStopsAtEstimatedPeak(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.c.cs.HeatEstimator = temp.Degree
	r.c.state = StateHeating
	r.c.lastIdleTime = r.clock.now - 3600

	// 600 s window at +1 deg/h predicts 85/512 above the reading
	setting, _ := r.c.cs.FridgeSetting.Value()
	r.fridge.reading = temp.Of(setting - 85)

	if got := r.c.Tick(); got != StateIdle {
		t.Fatalf("expected IDLE, got %s", got)
	}
	if got := r.c.Variables().PosPeakEstimate; got != temp.Of(setting) {
		t.Errorf("expected posPeakEstimate %s, got %s", temp.Of(setting), got)
	}
	if pos, _ := r.c.PeakDetect(); !pos {
		t.Error("expected positive peak detection pending")
	}
}

func TestHeatingMinOnTime(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.c.state = StateHeating
	r.c.lastIdleTime = r.clock.now - 180
	r.fridge.reading = temp.Celsius(11)

	if got := r.c.Tick(); got != StateHeating {
		t.Errorf("expected HEATING at exactly min on time, got %s", got)
	}
}

func TestTickAlwaysDefined(t *testing.T) {
	valid := make(map[State]bool)
	for _, s := range allStates {
		valid[s] = true
	}

	modes := []Mode{ModeOff, ModeFridgeConstant, ModeBeerConstant, ModeBeerProfile, ModeTest}
	readings := []temp.Temp{temp.Undefined(), temp.Celsius(-20), temp.Celsius(10), temp.Celsius(60), temp.Of(temp.MaxValue), temp.Of(temp.MinValue)}

	for _, prior := range allStates {
		for _, mode := range modes {
			for _, f := range readings {
				for _, door := range []bool{false, true} {
					r := newRig(IndicatorLight)
					r.c.state = prior
					r.c.cs.Mode = mode
					r.c.cs.FridgeSetting = temp.Celsius(10)
					r.fridge.reading = f
					r.beer.reading = f
					r.door.open = door

					got := r.c.Tick()
					if !valid[got] {
						t.Fatalf("prior=%s mode=%s fridge=%s door=%v: undefined state %q", prior, mode, f, door, got)
					}
					if got != r.c.State() {
						t.Fatalf("Tick returned %s but State() is %s", got, r.c.State())
					}
				}
			}
		}
	}
}

func TestTickIdempotent(t *testing.T) {
	r := newRig(IndicatorLight)
	r.fridgeConstant(10)
	r.idleSince(9999, 9999)
	r.fridge.reading = temp.Celsius(10.5)

	first := r.c.Tick()
	for i := 0; i < 10; i++ {
		if got := r.c.Tick(); got != first {
			t.Fatalf("tick %d: expected %s, got %s", i, first, got)
		}
	}
}
