package gpio

import (
	"sync"
	"time"
)

// BinaryInput is an on/off input such as the door switch.
type BinaryInput interface {
	Sense() bool
}

// Debounced filters contact bounce from an input. The first sample is taken
// as the baseline so the door state is known from the first tick; after
// that a new value is only reported once it has been seen continuously for
// the debounce duration.
type Debounced struct {
	in       BinaryInput
	debounce time.Duration
	now      func() time.Time

	mu           sync.Mutex
	baselined    bool
	stable       bool
	pendingSince time.Time
	hasPending   bool
	changes      int
}

// NewDebounced wraps in. now may be nil to use time.Now.
func NewDebounced(in BinaryInput, debounce time.Duration, now func() time.Time) *Debounced {
	if now == nil {
		now = time.Now
	}
	return &Debounced{in: in, debounce: debounce, now: now}
}

// Sense samples the input and returns the debounced value.
func (d *Debounced) Sense() bool {
	v := d.in.Sense()
	t := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.baselined {
		d.stable = v
		d.baselined = true
		return d.stable
	}

	if v == d.stable {
		// bounced back, drop the candidate
		d.hasPending = false
		return d.stable
	}

	if !d.hasPending {
		d.pendingSince = t
		d.hasPending = true
	}
	if t.Sub(d.pendingSince) >= d.debounce {
		d.stable = v
		d.hasPending = false
		d.changes++
	}
	return d.stable
}

// Changes returns the number of debounced transitions since creation.
func (d *Debounced) Changes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changes
}
