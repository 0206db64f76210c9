//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/chamber-control/internal/logger"
)

// Chip requests lines from a GPIO character device.
type Chip struct {
	chip    *gpiocdev.Chip
	log     *logger.Logger
	outputs []*gpiocdev.Line
	inputs  []*gpiocdev.Line
}

// OpenChip opens the named chip, e.g. "gpiochip0".
func OpenChip(name string, log *logger.Logger) (*Chip, error) {
	if log == nil {
		log = logger.Nop()
	}
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: chip, log: log}, nil
}

// Relay requests pin as an output, initially inactive.
func (c *Chip) Relay(name string, pin int, activeLow bool) (*Relay, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s pin %d: %w", name, pin, err)
	}
	c.outputs = append(c.outputs, line)
	return NewRelay(name, line, c.log.Named(name)), nil
}

// Door requests pin as the door switch input with a pull-up, so that an
// unconnected switch reads as open on an active-high line.
func (c *Chip) Door(pin int, activeLow bool) (*DoorSwitch, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullUp}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := c.chip.RequestLine(pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request door pin %d: %w", pin, err)
	}
	c.inputs = append(c.inputs, line)
	return NewDoorSwitch(line, c.log.Named("door")), nil
}

// Close switches all relays off and releases the lines.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing.
func (c *Chip) Close() error {
	var errs []error

	for _, line := range c.outputs {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("deactivate line %d: %w", line.Offset(), err))
		}
	}
	for _, line := range append(c.outputs, c.inputs...) {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", line.Offset(), err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", line.Offset(), err))
		}
	}
	if err := c.chip.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close chip: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
