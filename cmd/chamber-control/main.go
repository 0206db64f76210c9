// Command chamber-control regulates a fermentation chamber: it reads the beer
// and fridge probes, drives the cooler, heater and light relays, and reports
// over MQTT and a local status page.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/sweeney/chamber-control/internal/config"
	"github.com/sweeney/chamber-control/internal/control"
	"github.com/sweeney/chamber-control/internal/eeprom"
	"github.com/sweeney/chamber-control/internal/gpio"
	"github.com/sweeney/chamber-control/internal/logger"
	"github.com/sweeney/chamber-control/internal/mqtt"
	"github.com/sweeney/chamber-control/internal/sensor"
	"github.com/sweeney/chamber-control/internal/status"
	"github.com/sweeney/chamber-control/internal/temp"
	"github.com/sweeney/chamber-control/internal/web"
)

const commandQueue = 16

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("fatal", "err", err)
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	layout := eeprom.Layout{Base: cfg.Storage.Base}
	store, closeStore, err := openStorage(cfg, layout)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore()
	mgr := eeprom.NewManager(store, layout, log.Named("eeprom"))

	if cfg.Dump {
		return dump(os.Stdout, mgr)
	}

	indicator, err := cfg.DoorIndicator()
	if err != nil {
		return err
	}

	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Log:      log.Named("mqtt"),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:    cfg.Poll.Milliseconds(),
		Broker:    cfg.MQTT.Broker,
		HTTPPort:  cfg.HTTPAddr,
		Indicator: cfg.Indicator,
		Storage:   cfg.Storage.Driver,
		Simulate:  cfg.Simulate,
	})

	clock := control.NewSystemClock()
	var ctrl *control.Controller
	hw, err := openHardware(cfg, log, publisher, clock, func() control.State {
		if ctrl == nil {
			return control.StateStartup
		}
		return ctrl.State()
	})
	if err != nil {
		return err
	}
	defer hw.close()

	ctrl = control.New(hw.devices(), control.Options{
		Clock:          clock,
		Events:         fanout{tracker, mqtt.NewAnnotator(publisher, time.Now, log.Named("annotate"))},
		Storage:        store,
		SettingsOffset: layout.SettingsOffset(),
		Timings:        cfg.ControlTimings(),
		Indicator:      indicator,
	})
	fresh, err := mgr.LoadOrInit(ctrl)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	log.Infow("settings loaded", "fresh", fresh, "mode", ctrl.Mode(),
		"beer", ctrl.BeerSetting(), "fridge", ctrl.FridgeSetting())
	tracker.Update(ctrl)

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Warnw("failed to publish startup event", "err", err)
	}

	var cmds chan web.Command
	if cfg.HTTPAddr != "" {
		cmds = make(chan web.Command, commandQueue)
		srv := web.New(cfg.HTTPAddr, tracker, cmds, log.Named("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", cfg.HTTPAddr)
	}

	log.Infow("started", "poll", cfg.Poll, "broker", cfg.MQTT.Broker,
		"indicator", cfg.Indicator, "storage", cfg.Storage.Driver, "simulate", cfg.Simulate)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		ctrl:      ctrl,
		pub:       publisher,
		mqtt:      publisher,
		tracker:   tracker,
		outputs:   hw.outputs,
		limiter:   statusLimiter(cfg.MQTT.StatusInterval),
		now:       time.Now,
		log:       log,
		lastState: ctrl.State(),
	}
	return l.run(ticker.C, sigCh, cmds)
}

// statusLimiter paces STATUS events. A non-positive interval disables them.
func statusLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func openStorage(cfg config.Config, layout eeprom.Layout) (control.Storage, func() error, error) {
	nop := func() error { return nil }
	if cfg.Simulate {
		return eeprom.NewMemory(layout.End()), nop, nil
	}
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return eeprom.NewMemory(layout.End()), nop, nil
	case config.DriverFile:
		f, err := eeprom.OpenFile(cfg.Storage.Path, layout.End())
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	case config.DriverSQLite:
		s, err := eeprom.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: storage driver %q", config.ErrInvalid, cfg.Storage.Driver)
}

// relay is an actuator that reports its last commanded state.
type relay interface {
	control.Actuator
	Active() bool
}

type hardware struct {
	beer, fridge control.TempSensor
	door         control.BinarySensor
	cooler       relay
	heater       relay
	light        relay
	close        func() error
}

func (h *hardware) devices() control.Devices {
	return control.Devices{
		Beer:   h.beer,
		Fridge: h.fridge,
		Door:   h.door,
		Cooler: h.cooler,
		Heater: h.heater,
		Light:  h.light,
	}
}

func (h *hardware) outputs() status.Outputs {
	return status.Outputs{
		Cooler: h.cooler.Active(),
		Heater: h.heater.Active(),
		Light:  h.light.Active(),
	}
}

// openHardware sets up the probes and relays. With --simulate the probes are
// mocks stepping with clock and reacting to the controller state, and the
// relays and door are fakes.
func openHardware(cfg config.Config, log *logger.Logger, pub *mqtt.RealPublisher, clock control.Clock, state func() control.State) (*hardware, error) {
	if cfg.Simulate {
		ambient := temp.FromCelsius(20)
		return &hardware{
			beer:   sensor.NewMock(ambient, ambient, temp.FromCelsius(0.002), clock, state),
			fridge: sensor.NewMock(ambient, ambient, temp.FromCelsius(0.05), clock, state),
			door:   gpio.NewFakeDoor(),
			cooler: &gpio.FakeRelay{},
			heater: &gpio.FakeRelay{},
			light:  &gpio.FakeRelay{},
			close:  func() error { return nil },
		}, nil
	}

	chip, err := gpio.OpenChip(cfg.GPIO.Chip, log.Named("gpio"))
	if err != nil {
		return nil, fmt.Errorf("init gpio: %w", err)
	}
	h := &hardware{close: chip.Close}
	if h.cooler, err = chip.Relay("cooler", cfg.GPIO.Cooler, cfg.GPIO.RelayActiveLow); err != nil {
		chip.Close()
		return nil, fmt.Errorf("init cooler: %w", err)
	}
	if h.heater, err = chip.Relay("heater", cfg.GPIO.Heater, cfg.GPIO.RelayActiveLow); err != nil {
		chip.Close()
		return nil, fmt.Errorf("init heater: %w", err)
	}
	if h.light, err = chip.Relay("light", cfg.GPIO.Light, cfg.GPIO.RelayActiveLow); err != nil {
		chip.Close()
		return nil, fmt.Errorf("init light: %w", err)
	}
	if h.door, err = chip.Door(cfg.GPIO.Door, cfg.GPIO.DoorActiveLow); err != nil {
		chip.Close()
		return nil, fmt.Errorf("init door: %w", err)
	}
	if cfg.GPIO.DoorDebounce > 0 {
		h.door = gpio.NewDebounced(h.door, cfg.GPIO.DoorDebounce, nil)
	}

	beer := sensor.NewExternal(cfg.MQTT.BeerSensor, cfg.MQTT.SensorTimeout, nil)
	fridge := sensor.NewExternal(cfg.MQTT.FridgeSensor, cfg.MQTT.SensorTimeout, nil)
	h.beer, h.fridge = beer, fridge

	sub := mqtt.NewSubscriber(pub.Client(), cfg.MQTT.SensorPrefix, log.Named("sensors"))
	sub.Add(beer.Name(), beer)
	sub.Add(fridge.Name(), fridge)
	pub.OnConnect(func() {
		if err := sub.Subscribe(); err != nil {
			log.Errorw("sensor subscribe failed", "err", err)
		}
	})
	return h, nil
}

// fanout forwards annotations to every sink.
type fanout []control.EventSink

func (f fanout) RecordEvent(msg string) {
	for _, s := range f {
		s.RecordEvent(msg)
	}
}

// loop owns the controller. Ticks, setpoint commands and signals are handled
// on one goroutine, so the controller is never entered concurrently.
type loop struct {
	ctrl    *control.Controller
	pub     mqtt.Publisher
	mqtt    mqtt.ConnectionStatus
	tracker *status.Tracker
	outputs func() status.Outputs
	limiter *rate.Limiter
	now     func() time.Time
	log     *logger.Logger

	lastState control.State
}

func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal, cmds <-chan web.Command) error {
	for {
		select {
		case s := <-sig:
			l.shutdown(s)
			return nil

		case cmd := <-cmds:
			l.apply(cmd)

		case <-tick:
			l.ctrl.Tick()
			l.ctrl.ApplyOutputs()
			l.checkState()
			l.refresh()

			if l.limiter != nil && l.limiter.Allow() {
				l.publishStatus("STATUS", "")
			}
		}
	}
}

func (l *loop) apply(cmd web.Command) {
	prevMode := l.ctrl.Mode()
	if err := cmd.Apply(l.ctrl); err != nil {
		l.log.Errorw("command failed", "command", cmd.String(), "err", err)
	} else {
		l.log.Infow("command applied", "command", cmd.String())
	}

	var ev mqtt.Event
	switch {
	case cmd.Kind == web.CommandMode && l.ctrl.Mode() != prevMode:
		ev = mqtt.NewEvent(l.now(), mqtt.EventMode, fmt.Sprintf("Mode changed from %s to %s", prevMode, l.ctrl.Mode()))
	case cmd.Kind == web.CommandBeer:
		ev = mqtt.NewEvent(l.now(), mqtt.EventSetpoint, fmt.Sprintf("Beer setting changed to %s", l.ctrl.BeerSetting()))
	case cmd.Kind == web.CommandFridge:
		ev = mqtt.NewEvent(l.now(), mqtt.EventSetpoint, fmt.Sprintf("Fridge setting changed to %s", l.ctrl.FridgeSetting()))
	}
	if ev.Type != "" {
		ev.Mode = l.ctrl.Mode().String()
		l.publish(ev)
	}

	// setters re-evaluate the state themselves
	l.ctrl.ApplyOutputs()
	l.checkState()
	l.refresh()
}

// checkState reports a state transition since the last call.
func (l *loop) checkState() {
	st := l.ctrl.State()
	if st == l.lastState {
		return
	}
	l.log.Debugw("state transition", "from", l.lastState, "to", st,
		"beer", l.ctrl.BeerTemp(), "fridge", l.ctrl.FridgeTemp(), "fridge_setting", l.ctrl.FridgeSetting())

	ev := mqtt.NewEvent(l.now(), mqtt.EventState, fmt.Sprintf("%s -> %s", l.lastState, st))
	ev.State = string(st)
	ev.Mode = l.ctrl.Mode().String()
	l.publish(ev)
	l.lastState = st
}

func (l *loop) refresh() {
	l.tracker.Update(l.ctrl)
	if l.outputs != nil {
		l.tracker.SetOutputs(l.outputs())
	}
	if l.mqtt != nil {
		l.tracker.SetMQTTConnected(l.mqtt.IsConnected())
	}
}

func (l *loop) publish(ev mqtt.Event) {
	if err := l.pub.Publish(ev); err != nil {
		l.log.Warnw("publish failed", "event", ev.Type, "err", err)
	}
}

func (l *loop) publishStatus(event, reason string) {
	snap := l.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  l.now(),
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := l.pub.PublishSystem(se); err != nil {
		l.log.Warnw("failed to publish system event", "event", event, "err", err)
	}
}

func (l *loop) shutdown(s os.Signal) {
	l.log.Infow("shutting down", "signal", s.String())
	reason := "UNKNOWN"
	switch s {
	case syscall.SIGINT:
		reason = "SIGINT"
	case syscall.SIGTERM:
		reason = "SIGTERM"
	}
	if l.mqtt != nil {
		l.tracker.SetMQTTConnected(l.mqtt.IsConnected())
	}
	l.publishStatus("SHUTDOWN", reason)
}
