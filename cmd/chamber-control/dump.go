package main

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/chamber-control/internal/eeprom"
	"github.com/sweeney/chamber-control/internal/temp"
)

type dumpView struct {
	Initialized bool           `yaml:"initialized"`
	Settings    *settingsView  `yaml:"settings,omitempty"`
	Constants   *constantsView `yaml:"constants,omitempty"`
}

// Temperatures are shown in degrees; undefined ones are null.
type settingsView struct {
	Mode          string   `yaml:"mode"`
	BeerSetting   *float64 `yaml:"beer_setting"`
	FridgeSetting *float64 `yaml:"fridge_setting"`
	HeatEstimator float64  `yaml:"heat_estimator"`
	CoolEstimator float64  `yaml:"cool_estimator"`
}

type constantsView struct {
	TempFormat             string  `yaml:"temp_format"`
	TempSettingMin         float64 `yaml:"temp_setting_min"`
	TempSettingMax         float64 `yaml:"temp_setting_max"`
	Kp                     float64 `yaml:"kp"`
	Ki                     float64 `yaml:"ki"`
	Kd                     float64 `yaml:"kd"`
	IMaxError              float64 `yaml:"i_max_error"`
	IdleRangeHigh          float64 `yaml:"idle_range_high"`
	IdleRangeLow           float64 `yaml:"idle_range_low"`
	HeatingTargetUpper     float64 `yaml:"heating_target_upper"`
	HeatingTargetLower     float64 `yaml:"heating_target_lower"`
	CoolingTargetUpper     float64 `yaml:"cooling_target_upper"`
	CoolingTargetLower     float64 `yaml:"cooling_target_lower"`
	MaxHeatTimeForEstimate uint16  `yaml:"max_heat_time_for_estimate"`
	MaxCoolTimeForEstimate uint16  `yaml:"max_cool_time_for_estimate"`
	Filters                filters `yaml:"filters"`
}

type filters struct {
	FridgeFast  uint8 `yaml:"fridge_fast"`
	FridgeSlow  uint8 `yaml:"fridge_slow"`
	FridgeSlope uint8 `yaml:"fridge_slope"`
	BeerFast    uint8 `yaml:"beer_fast"`
	BeerSlow    uint8 `yaml:"beer_slow"`
	BeerSlope   uint8 `yaml:"beer_slope"`
}

func celsius(t temp.Temp) *float64 {
	v, ok := t.Value()
	if !ok {
		return nil
	}
	c := v.Celsius()
	return &c
}

func newDumpView(r eeprom.Records) dumpView {
	if !r.Initialized {
		return dumpView{}
	}
	cs, cc := r.Settings, r.Constants
	return dumpView{
		Initialized: true,
		Settings: &settingsView{
			Mode:          cs.Mode.String(),
			BeerSetting:   celsius(cs.BeerSetting),
			FridgeSetting: celsius(cs.FridgeSetting),
			HeatEstimator: cs.HeatEstimator.Celsius(),
			CoolEstimator: cs.CoolEstimator.Celsius(),
		},
		Constants: &constantsView{
			TempFormat:             string(rune(cc.TempFormat)),
			TempSettingMin:         cc.TempSettingMin.Celsius(),
			TempSettingMax:         cc.TempSettingMax.Celsius(),
			Kp:                     cc.Kp.Celsius(),
			Ki:                     cc.Ki.Celsius(),
			Kd:                     cc.Kd.Celsius(),
			IMaxError:              cc.IMaxError.Celsius(),
			IdleRangeHigh:          cc.IdleRangeHigh.Celsius(),
			IdleRangeLow:           cc.IdleRangeLow.Celsius(),
			HeatingTargetUpper:     cc.HeatingTargetUpper.Celsius(),
			HeatingTargetLower:     cc.HeatingTargetLower.Celsius(),
			CoolingTargetUpper:     cc.CoolingTargetUpper.Celsius(),
			CoolingTargetLower:     cc.CoolingTargetLower.Celsius(),
			MaxHeatTimeForEstimate: cc.MaxHeatTimeForEstimate,
			MaxCoolTimeForEstimate: cc.MaxCoolTimeForEstimate,
			Filters: filters{
				FridgeFast:  cc.FridgeFastFilter,
				FridgeSlow:  cc.FridgeSlowFilter,
				FridgeSlope: cc.FridgeSlopeFilter,
				BeerFast:    cc.BeerFastFilter,
				BeerSlow:    cc.BeerSlowFilter,
				BeerSlope:   cc.BeerSlopeFilter,
			},
		},
	}
}

// dump prints the persisted records without starting the controller.
func dump(w io.Writer, mgr *eeprom.Manager) error {
	r, err := mgr.Read()
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDumpView(r)); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return enc.Close()
}
