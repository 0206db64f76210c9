package gpio

import (
	"errors"
	"sync"
)

// FakeRelay is a test double recording relay writes.
type FakeRelay struct {
	mu     sync.Mutex
	active bool
	writes int
}

// SetActive records the state.
func (f *FakeRelay) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
	f.writes++
}

// Active returns the last state set.
func (f *FakeRelay) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Writes returns the number of SetActive calls.
func (f *FakeRelay) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// FakeDoor is a test double that returns scripted door states.
type FakeDoor struct {
	mu sync.Mutex

	// Samples contains scripted open/closed values. Each call to Sense
	// consumes the next sample; the last one repeats.
	Samples []bool
	index   int
}

// NewFakeDoor creates a FakeDoor with the given samples.
func NewFakeDoor(samples ...bool) *FakeDoor {
	return &FakeDoor{Samples: samples}
}

// Sense returns the next scripted sample, closed when none are configured.
func (f *FakeDoor) Sense() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Samples) == 0 {
		return false
	}
	open := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return open
}

// Set replaces the script with a single repeating value.
func (f *FakeDoor) Set(open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Samples = []bool{open}
	f.index = 0
}

// FakeLine is a Line backed by memory, for testing Relay and DoorSwitch.
type FakeLine struct {
	mu       sync.Mutex
	value    int
	sets     int
	ReadErr  error
	WriteErr error
}

// Value returns the current value or ReadErr.
func (f *FakeLine) Value() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	return f.value, nil
}

// SetValue stores the value or returns WriteErr.
func (f *FakeLine) SetValue(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	if v != 0 && v != 1 {
		return errors.New("invalid line value")
	}
	f.value = v
	f.sets++
	return nil
}

// Sets returns the number of successful SetValue calls.
func (f *FakeLine) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// SetError sets ReadErr and WriteErr under the lock.
func (f *FakeLine) SetError(read, write error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReadErr = read
	f.WriteErr = write
}

// Drive sets the value as seen by Value, like an external signal would.
func (f *FakeLine) Drive(v int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
}
