package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sweeney/chamber-control/internal/control"
	"github.com/sweeney/chamber-control/internal/temp"
)

// ErrBadValue is returned for a setpoint value that cannot be parsed.
var ErrBadValue = errors.New("web: bad value")

// CommandKind names the setter a Command is applied with.
type CommandKind string

const (
	CommandMode   CommandKind = "mode"
	CommandBeer   CommandKind = "beer"
	CommandFridge CommandKind = "fridge"
)

// Command is a setpoint change queued by the HTTP API and applied on the run
// loop goroutine.
type Command struct {
	Kind CommandKind
	Mode control.Mode
	Temp temp.Temp
}

// Setter is the write side of the controller.
type Setter interface {
	SetMode(m control.Mode) error
	SetBeerTemp(t temp.Temp) error
	SetFridgeTemp(t temp.Temp)
}

// Apply runs the command against s.
func (c Command) Apply(s Setter) error {
	switch c.Kind {
	case CommandMode:
		return s.SetMode(c.Mode)
	case CommandBeer:
		return s.SetBeerTemp(c.Temp)
	case CommandFridge:
		s.SetFridgeTemp(c.Temp)
		return nil
	}
	return fmt.Errorf("web: unknown command %q", c.Kind)
}

func (c Command) String() string {
	if c.Kind == CommandMode {
		return fmt.Sprintf("%s=%s", c.Kind, c.Mode)
	}
	return fmt.Sprintf("%s=%s", c.Kind, c.Temp)
}

// commandRequest is the JSON body accepted by the API. Value is a mode name
// or code for /api/mode and degrees Celsius for the setpoints.
type commandRequest struct {
	Value json.RawMessage `json:"value"`
}

// parseCommand builds a command of the given kind from the raw value.
func parseCommand(kind CommandKind, raw string) (Command, error) {
	raw = strings.TrimSpace(raw)
	if kind == CommandMode {
		m, err := control.ParseMode(strings.Trim(raw, `"`))
		if err != nil {
			return Command{}, fmt.Errorf("%w: mode %q", ErrBadValue, raw)
		}
		return Command{Kind: kind, Mode: m}, nil
	}

	if raw == "" {
		return Command{}, fmt.Errorf("%w: empty temperature", ErrBadValue)
	}
	c, err := strconv.ParseFloat(strings.Trim(raw, `"`), 64)
	if err != nil || math.IsNaN(c) || math.IsInf(c, 0) {
		return Command{}, fmt.Errorf("%w: temperature %q", ErrBadValue, raw)
	}
	return Command{Kind: kind, Temp: temp.Celsius(c)}, nil
}
