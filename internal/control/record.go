package control

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sweeney/chamber-control/internal/temp"
)

// The persisted records are packed little-endian with no padding. Changing a
// field here changes the storage format.
type constantsRecord struct {
	TempFormat         uint8
	TempSettingMin     int16
	TempSettingMax     int16
	Kp                 int16
	Ki                 int16
	Kd                 int16
	IMaxError          int16
	IdleRangeHigh      int16
	IdleRangeLow       int16
	HeatingTargetUpper int16
	HeatingTargetLower int16
	CoolingTargetUpper int16
	CoolingTargetLower int16
	MaxHeatTime        uint16
	MaxCoolTime        uint16
	FridgeFastFilter   uint8
	FridgeSlowFilter   uint8
	FridgeSlopeFilter  uint8
	BeerFastFilter     uint8
	BeerSlowFilter     uint8
	BeerSlopeFilter    uint8
}

type settingsRecord struct {
	Mode          uint8
	BeerSetting   int16
	FridgeSetting int16
	HeatEstimator int16
	CoolEstimator int16
}

var (
	// ConstantsSize is the size of the persisted constants record.
	ConstantsSize = binary.Size(constantsRecord{})
	// SettingsSize is the size of the persisted settings record.
	SettingsSize = binary.Size(settingsRecord{})
)

// MarshalBinary encodes the constants record.
func (cc Constants) MarshalBinary() ([]byte, error) {
	return pack(constantsRecord{
		TempFormat:         cc.TempFormat,
		TempSettingMin:     int16(cc.TempSettingMin),
		TempSettingMax:     int16(cc.TempSettingMax),
		Kp:                 int16(cc.Kp),
		Ki:                 int16(cc.Ki),
		Kd:                 int16(cc.Kd),
		IMaxError:          int16(cc.IMaxError),
		IdleRangeHigh:      int16(cc.IdleRangeHigh),
		IdleRangeLow:       int16(cc.IdleRangeLow),
		HeatingTargetUpper: int16(cc.HeatingTargetUpper),
		HeatingTargetLower: int16(cc.HeatingTargetLower),
		CoolingTargetUpper: int16(cc.CoolingTargetUpper),
		CoolingTargetLower: int16(cc.CoolingTargetLower),
		MaxHeatTime:        cc.MaxHeatTimeForEstimate,
		MaxCoolTime:        cc.MaxCoolTimeForEstimate,
		FridgeFastFilter:   cc.FridgeFastFilter,
		FridgeSlowFilter:   cc.FridgeSlowFilter,
		FridgeSlopeFilter:  cc.FridgeSlopeFilter,
		BeerFastFilter:     cc.BeerFastFilter,
		BeerSlowFilter:     cc.BeerSlowFilter,
		BeerSlopeFilter:    cc.BeerSlopeFilter,
	})
}

// UnmarshalBinary decodes a constants record.
func (cc *Constants) UnmarshalBinary(data []byte) error {
	var r constantsRecord
	if err := unpack(data, &r); err != nil {
		return err
	}
	*cc = Constants{
		TempFormat:             r.TempFormat,
		MaxHeatTimeForEstimate: r.MaxHeatTime,
		MaxCoolTimeForEstimate: r.MaxCoolTime,
		TempSettingMin:         temp.Fixed(r.TempSettingMin),
		TempSettingMax:         temp.Fixed(r.TempSettingMax),
		Kp:                     temp.Fixed(r.Kp),
		Ki:                     temp.Fixed(r.Ki),
		Kd:                     temp.Fixed(r.Kd),
		IMaxError:              temp.Fixed(r.IMaxError),
		IdleRangeHigh:          temp.Fixed(r.IdleRangeHigh),
		IdleRangeLow:           temp.Fixed(r.IdleRangeLow),
		HeatingTargetUpper:     temp.Fixed(r.HeatingTargetUpper),
		HeatingTargetLower:     temp.Fixed(r.HeatingTargetLower),
		CoolingTargetUpper:     temp.Fixed(r.CoolingTargetUpper),
		CoolingTargetLower:     temp.Fixed(r.CoolingTargetLower),
		FridgeFastFilter:       r.FridgeFastFilter,
		FridgeSlowFilter:       r.FridgeSlowFilter,
		FridgeSlopeFilter:      r.FridgeSlopeFilter,
		BeerFastFilter:         r.BeerFastFilter,
		BeerSlowFilter:         r.BeerSlowFilter,
		BeerSlopeFilter:        r.BeerSlopeFilter,
	}
	return nil
}

// MarshalBinary encodes the settings record. Undefined setpoints are written
// as the int16 minimum.
func (cs Settings) MarshalBinary() ([]byte, error) {
	return pack(settingsRecord{
		Mode:          uint8(cs.Mode),
		BeerSetting:   cs.BeerSetting.Raw(),
		FridgeSetting: cs.FridgeSetting.Raw(),
		HeatEstimator: int16(cs.HeatEstimator),
		CoolEstimator: int16(cs.CoolEstimator),
	})
}

// UnmarshalBinary decodes a settings record. An unknown mode byte, as found
// in blank storage, is an error.
func (cs *Settings) UnmarshalBinary(data []byte) error {
	var r settingsRecord
	if err := unpack(data, &r); err != nil {
		return err
	}
	m := Mode(r.Mode)
	if !m.Valid() {
		return fmt.Errorf("%w: %#x", ErrUnknownMode, r.Mode)
	}
	*cs = Settings{
		Mode:          m,
		BeerSetting:   temp.Decode(r.BeerSetting),
		FridgeSetting: temp.Decode(r.FridgeSetting),
		HeatEstimator: temp.Fixed(r.HeatEstimator),
		CoolEstimator: temp.Fixed(r.CoolEstimator),
	}
	return nil
}

func pack(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpack(data []byte, v any) error {
	if len(data) != binary.Size(v) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortBlock, len(data), binary.Size(v))
	}
	return binary.Read(bytes.NewReader(data), binary.LittleEndian, v)
}

// StoreConstants writes the constants record at offset and returns its size.
func (c *Controller) StoreConstants(offset int) (int, error) {
	if c.storage == nil {
		return 0, ErrNoStorage
	}
	data, err := c.cc.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("encode constants: %w", err)
	}
	if err := c.storage.WriteBlock(offset, data); err != nil {
		return 0, fmt.Errorf("write constants at %d: %w", offset, err)
	}
	return len(data), nil
}

// LoadConstants reads the constants record at offset, pushes the filter
// coefficients to the probes and returns the record size.
func (c *Controller) LoadConstants(offset int) (int, error) {
	if c.storage == nil {
		return 0, ErrNoStorage
	}
	data, err := c.storage.ReadBlock(offset, ConstantsSize)
	if err != nil {
		return 0, fmt.Errorf("read constants at %d: %w", offset, err)
	}
	var cc Constants
	if err := cc.UnmarshalBinary(data); err != nil {
		return 0, fmt.Errorf("decode constants: %w", err)
	}
	c.SetConstants(cc)
	return ConstantsSize, nil
}

// StoreSettings writes the settings record at offset and returns its size.
func (c *Controller) StoreSettings(offset int) (int, error) {
	if c.storage == nil {
		return 0, ErrNoStorage
	}
	data, err := c.cs.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("encode settings: %w", err)
	}
	if err := c.storage.WriteBlock(offset, data); err != nil {
		return 0, fmt.Errorf("write settings at %d: %w", offset, err)
	}
	c.storedBeerSetting = c.cs.BeerSetting
	return len(data), nil
}

// LoadSettings reads the settings record at offset and returns its size.
// Setpoints outside the current constants' range are clamped into it.
func (c *Controller) LoadSettings(offset int) (int, error) {
	if c.storage == nil {
		return 0, ErrNoStorage
	}
	data, err := c.storage.ReadBlock(offset, SettingsSize)
	if err != nil {
		return 0, fmt.Errorf("read settings at %d: %w", offset, err)
	}
	var cs Settings
	if err := cs.UnmarshalBinary(data); err != nil {
		return 0, fmt.Errorf("decode settings: %w", err)
	}
	c.storedBeerSetting = cs.BeerSetting
	cs.BeerSetting = c.clampSetting(cs.BeerSetting)
	cs.FridgeSetting = c.clampSetting(cs.FridgeSetting)
	c.cs = cs
	return SettingsSize, nil
}
