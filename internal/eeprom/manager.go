package eeprom

import (
	"fmt"

	"github.com/sweeney/chamber-control/internal/control"
	"github.com/sweeney/chamber-control/internal/logger"
)

// Initialized is the marker byte at the layout base once the records have been
// written.
const Initialized byte = 1

// Layout places the marker byte and the two records, starting at Base.
type Layout struct {
	Base int
}

// MarkerOffset returns the offset of the marker byte.
func (l Layout) MarkerOffset() int { return l.Base }

// SettingsOffset returns the offset of the settings record.
func (l Layout) SettingsOffset() int { return l.Base + 1 }

// ConstantsOffset returns the offset of the constants record.
func (l Layout) ConstantsOffset() int { return l.SettingsOffset() + control.SettingsSize }

// End returns the first offset past the layout.
func (l Layout) End() int { return l.ConstantsOffset() + control.ConstantsSize }

// Records are the decoded persisted records.
type Records struct {
	Initialized bool
	Constants   control.Constants
	Settings    control.Settings
}

// Manager loads and initializes the controller records in a storage.
type Manager struct {
	store  control.Storage
	layout Layout
	log    *logger.Logger
}

// NewManager creates a manager. store must be the storage the controllers
// passed to LoadOrInit and Init were created with. log may be nil.
func NewManager(store control.Storage, layout Layout, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{store: store, layout: layout, log: log}
}

// Layout returns the record layout.
func (m *Manager) Layout() Layout {
	return m.layout
}

// LoadOrInit restores the controller from storage. Blank storage, and storage
// holding records that do not decode, is initialized with the defaults.
// It reports whether the defaults were written.
func (m *Manager) LoadOrInit(c *control.Controller) (bool, error) {
	marker, err := m.store.ReadBlock(m.layout.MarkerOffset(), 1)
	if err != nil {
		return false, fmt.Errorf("read marker: %w", err)
	}
	if marker[0] == Initialized {
		err := m.load(c)
		if err == nil {
			m.log.Infow("loaded persisted settings", "mode", c.Mode(), "beer", c.BeerSetting(), "fridge", c.FridgeSetting())
			return false, nil
		}
		m.log.Warnw("persisted records unreadable, restoring defaults", "err", err)
	}

	if err := m.Init(c); err != nil {
		return false, err
	}
	m.log.Infow("initialized storage with defaults", "base", m.layout.Base)
	return true, nil
}

// load reads the constants first: they bound the settings.
func (m *Manager) load(c *control.Controller) error {
	if _, err := c.LoadConstants(m.layout.ConstantsOffset()); err != nil {
		return err
	}
	if _, err := c.LoadSettings(m.layout.SettingsOffset()); err != nil {
		return err
	}
	return nil
}

// Init resets the controller to the defaults and writes them with the
// marker.
func (m *Manager) Init(c *control.Controller) error {
	c.LoadDefaultSettings()
	c.LoadDefaultConstants()
	if _, err := c.StoreSettings(m.layout.SettingsOffset()); err != nil {
		return err
	}
	if _, err := c.StoreConstants(m.layout.ConstantsOffset()); err != nil {
		return err
	}
	// marker last, an interrupted init is redone on the next boot
	if err := m.store.WriteBlock(m.layout.MarkerOffset(), []byte{Initialized}); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// Read decodes the records without touching any controller.
func (m *Manager) Read() (Records, error) {
	marker, err := m.store.ReadBlock(m.layout.MarkerOffset(), 1)
	if err != nil {
		return Records{}, fmt.Errorf("read marker: %w", err)
	}
	if marker[0] != Initialized {
		return Records{}, nil
	}

	r := Records{Initialized: true}
	data, err := m.store.ReadBlock(m.layout.SettingsOffset(), control.SettingsSize)
	if err != nil {
		return Records{}, fmt.Errorf("read settings: %w", err)
	}
	if err := r.Settings.UnmarshalBinary(data); err != nil {
		return Records{}, fmt.Errorf("decode settings: %w", err)
	}
	data, err = m.store.ReadBlock(m.layout.ConstantsOffset(), control.ConstantsSize)
	if err != nil {
		return Records{}, fmt.Errorf("read constants: %w", err)
	}
	if err := r.Constants.UnmarshalBinary(data); err != nil {
		return Records{}, fmt.Errorf("decode constants: %w", err)
	}
	return r, nil
}
