//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/chamber-control/internal/logger"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(string, *logger.Logger) (*Chip, error) {
	return nil, errUnsupported
}

// Relay is not implemented on non-Linux platforms.
func (c *Chip) Relay(string, int, bool) (*Relay, error) {
	return nil, errUnsupported
}

// Door is not implemented on non-Linux platforms.
func (c *Chip) Door(int, bool) (*DoorSwitch, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}
