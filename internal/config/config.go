// Package config loads the daemon configuration from flags, environment
// variables (CHAMBER_*, optionally from a .env file) and an optional YAML
// config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/chamber-control/internal/control"
	"github.com/sweeney/chamber-control/internal/gpio"
	"github.com/sweeney/chamber-control/internal/logger"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config is the complete daemon configuration.
type Config struct {
	Poll      time.Duration `mapstructure:"poll"`
	HTTPAddr  string        `mapstructure:"http"`
	LogLevel  string        `mapstructure:"log_level"`
	Indicator string        `mapstructure:"indicator"`
	Simulate  bool          `mapstructure:"simulate"`
	Dump      bool          `mapstructure:"dump"`

	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	GPIO    GPIOConfig    `mapstructure:"gpio"`
	Storage StorageConfig `mapstructure:"storage"`
	Timings TimingsConfig `mapstructure:"timings"`
}

// MQTTConfig configures the broker connection and the sensor feed.
type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	SensorPrefix   string        `mapstructure:"sensor_prefix"`
	BeerSensor     string        `mapstructure:"beer_sensor"`
	FridgeSensor   string        `mapstructure:"fridge_sensor"`
	SensorTimeout  time.Duration `mapstructure:"sensor_timeout"`
	StatusInterval time.Duration `mapstructure:"status_interval"`
}

// GPIOConfig holds BCM line offsets.
type GPIOConfig struct {
	Chip           string `mapstructure:"chip"`
	Cooler         int    `mapstructure:"cooler"`
	Heater         int    `mapstructure:"heater"`
	Light          int    `mapstructure:"light"`
	Door           int    `mapstructure:"door"`
	DoorActiveLow  bool   `mapstructure:"door_active_low"`
	RelayActiveLow bool   `mapstructure:"relay_active_low"`

	// DoorDebounce holds back door changes until stable this long; 0 disables.
	DoorDebounce time.Duration `mapstructure:"door_debounce"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	Base   int    `mapstructure:"base"`
}

// TimingsConfig mirrors control.Timings, in seconds.
type TimingsConfig struct {
	MinCoolOff               uint32 `mapstructure:"min_cool_off"`
	MinHeatOff               uint32 `mapstructure:"min_heat_off"`
	MinCoolOn                uint32 `mapstructure:"min_cool_on"`
	MinHeatOn                uint32 `mapstructure:"min_heat_on"`
	MinCoolOffFridgeConstant uint32 `mapstructure:"min_cool_off_fridge_constant"`
	MinSwitch                uint32 `mapstructure:"min_switch"`
	CoolPeakDetect           uint32 `mapstructure:"cool_peak_detect"`
	HeatPeakDetect           uint32 `mapstructure:"heat_peak_detect"`
}

// Default returns the built-in configuration.
func Default() Config {
	t := control.DefaultTimings()
	return Config{
		Poll:      time.Second,
		HTTPAddr:  ":80",
		LogLevel:  logger.InfoLevel,
		Indicator: "light",
		MQTT: MQTTConfig{
			Broker:         "tcp://192.168.1.200:1883",
			ClientID:       "chamber-control",
			SensorPrefix:   "chamber/sensor",
			BeerSensor:     "beer",
			FridgeSensor:   "fridge",
			SensorTimeout:  30 * time.Second,
			StatusInterval: time.Minute,
		},
		GPIO: GPIOConfig{
			Chip:          "gpiochip0",
			Cooler:        gpio.DefaultPinCooler,
			Heater:        gpio.DefaultPinHeater,
			Light:         gpio.DefaultPinLight,
			Door:          gpio.DefaultPinDoor,
			DoorActiveLow: true,
		},
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "chamber.db",
		},
		Timings: TimingsConfig{
			MinCoolOff:               t.MinCoolOffTime,
			MinHeatOff:               t.MinHeatOffTime,
			MinCoolOn:                t.MinCoolOnTime,
			MinHeatOn:                t.MinHeatOnTime,
			MinCoolOffFridgeConstant: t.MinCoolOffTimeFridgeConstant,
			MinSwitch:                t.MinSwitchTime,
			CoolPeakDetect:           t.CoolPeakDetectTime,
			HeatPeakDetect:           t.HeatPeakDetectTime,
		},
	}
}

// flag name -> config key
var flagKeys = map[string]string{
	"poll":       "poll",
	"http":       "http",
	"log-level":  "log_level",
	"indicator":  "indicator",
	"simulate":   "simulate",
	"dump":       "dump",
	"broker":     "mqtt.broker",
	"pin-cooler": "gpio.cooler",
	"pin-heater": "gpio.heater",
	"pin-light":  "gpio.light",
	"pin-door":   "gpio.door",
	"debounce":   "gpio.door_debounce",
	"storage":    "storage.driver",
	"db":         "storage.path",
}

// Load parses args (without the program name) and merges them with the
// environment and config file.
func Load(args []string) (Config, error) {
	d := Default()

	fset := pflag.NewFlagSet("chamber-control", pflag.ContinueOnError)
	configFile := fset.String("config", "", "Path to a YAML config file")
	envFile := fset.String("env-file", ".env", "Path to an optional .env file")
	fset.Duration("poll", d.Poll, "Control loop interval")
	fset.String("http", d.HTTPAddr, "HTTP status address (empty to disable)")
	fset.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fset.String("indicator", d.Indicator, `Door indicator: "light" or "heater"`)
	fset.Bool("simulate", false, "Run with simulated sensors and relays")
	fset.Bool("dump", false, "Print the persisted records as YAML and exit")
	fset.String("broker", d.MQTT.Broker, "MQTT broker address")
	fset.Int("pin-cooler", d.GPIO.Cooler, "BCM pin for the cooler relay")
	fset.Int("pin-heater", d.GPIO.Heater, "BCM pin for the heater relay")
	fset.Int("pin-light", d.GPIO.Light, "BCM pin for the chamber light")
	fset.Int("pin-door", d.GPIO.Door, "BCM pin for the door switch")
	fset.Duration("debounce", d.GPIO.DoorDebounce, "Door switch debounce (0 to disable)")
	fset.String("storage", d.Storage.Driver, "Storage driver (memory, file, sqlite)")
	fset.String("db", d.Storage.Path, "Storage path for the file and sqlite drivers")

	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	v := viper.New()
	setDefaults(v, d)
	v.SetEnvPrefix("CHAMBER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fset.Lookup(name)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if *configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("poll", d.Poll)
	v.SetDefault("http", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("indicator", d.Indicator)
	v.SetDefault("simulate", d.Simulate)
	v.SetDefault("dump", d.Dump)

	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("mqtt.sensor_prefix", d.MQTT.SensorPrefix)
	v.SetDefault("mqtt.beer_sensor", d.MQTT.BeerSensor)
	v.SetDefault("mqtt.fridge_sensor", d.MQTT.FridgeSensor)
	v.SetDefault("mqtt.sensor_timeout", d.MQTT.SensorTimeout)
	v.SetDefault("mqtt.status_interval", d.MQTT.StatusInterval)

	v.SetDefault("gpio.chip", d.GPIO.Chip)
	v.SetDefault("gpio.cooler", d.GPIO.Cooler)
	v.SetDefault("gpio.heater", d.GPIO.Heater)
	v.SetDefault("gpio.light", d.GPIO.Light)
	v.SetDefault("gpio.door", d.GPIO.Door)
	v.SetDefault("gpio.door_active_low", d.GPIO.DoorActiveLow)
	v.SetDefault("gpio.relay_active_low", d.GPIO.RelayActiveLow)
	v.SetDefault("gpio.door_debounce", d.GPIO.DoorDebounce)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.base", d.Storage.Base)

	v.SetDefault("timings.min_cool_off", d.Timings.MinCoolOff)
	v.SetDefault("timings.min_heat_off", d.Timings.MinHeatOff)
	v.SetDefault("timings.min_cool_on", d.Timings.MinCoolOn)
	v.SetDefault("timings.min_heat_on", d.Timings.MinHeatOn)
	v.SetDefault("timings.min_cool_off_fridge_constant", d.Timings.MinCoolOffFridgeConstant)
	v.SetDefault("timings.min_switch", d.Timings.MinSwitch)
	v.SetDefault("timings.cool_peak_detect", d.Timings.CoolPeakDetect)
	v.SetDefault("timings.heat_peak_detect", d.Timings.HeatPeakDetect)
}

// Validate checks the configuration for values the daemon cannot run with.
func (c Config) Validate() error {
	if c.Poll <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %v", ErrInvalid, c.Poll)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.LogLevel)
	}
	if _, err := c.DoorIndicator(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage driver %s needs a path", ErrInvalid, c.Storage.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalid, c.Storage.Driver)
	}
	if c.Storage.Base < 0 {
		return fmt.Errorf("%w: negative storage base %d", ErrInvalid, c.Storage.Base)
	}

	if c.MQTT.BeerSensor == "" || c.MQTT.FridgeSensor == "" {
		return fmt.Errorf("%w: beer and fridge sensor names are required", ErrInvalid)
	}
	if c.MQTT.BeerSensor == c.MQTT.FridgeSensor {
		return fmt.Errorf("%w: beer and fridge sensors must differ", ErrInvalid)
	}
	if c.MQTT.SensorTimeout <= 0 {
		return fmt.Errorf("%w: sensor timeout must be positive", ErrInvalid)
	}

	if c.GPIO.DoorDebounce < 0 {
		return fmt.Errorf("%w: negative door debounce %v", ErrInvalid, c.GPIO.DoorDebounce)
	}

	pins := map[int]string{}
	for name, pin := range map[string]int{
		"cooler": c.GPIO.Cooler,
		"heater": c.GPIO.Heater,
		"light":  c.GPIO.Light,
		"door":   c.GPIO.Door,
	} {
		if pin < 0 {
			return fmt.Errorf("%w: negative %s pin %d", ErrInvalid, name, pin)
		}
		if other, dup := pins[pin]; dup {
			return fmt.Errorf("%w: pin %d used for both %s and %s", ErrInvalid, pin, other, name)
		}
		pins[pin] = name
	}
	return nil
}

// DoorIndicator converts the indicator name.
func (c Config) DoorIndicator() (control.DoorIndicator, error) {
	switch c.Indicator {
	case "light":
		return control.IndicatorLight, nil
	case "heater":
		return control.IndicatorHeater, nil
	}
	return 0, fmt.Errorf("%w: unknown door indicator %q", ErrInvalid, c.Indicator)
}

// ControlTimings converts the timings for the controller.
func (c Config) ControlTimings() control.Timings {
	return control.Timings{
		MinCoolOffTime:               c.Timings.MinCoolOff,
		MinHeatOffTime:               c.Timings.MinHeatOff,
		MinCoolOnTime:                c.Timings.MinCoolOn,
		MinHeatOnTime:                c.Timings.MinHeatOn,
		MinCoolOffTimeFridgeConstant: c.Timings.MinCoolOffFridgeConstant,
		MinSwitchTime:                c.Timings.MinSwitch,
		CoolPeakDetectTime:           c.Timings.CoolPeakDetect,
		HeatPeakDetectTime:           c.Timings.HeatPeakDetect,
	}
}
