package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"envmon-go/errcode"
)

type Config struct {
	Device    string          `yaml:"device"`
	Log       LogConfig       `yaml:"log"`
	Loop      LoopConfig      `yaml:"loop"`
	Platform  PlatformConfig  `yaml:"platform"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Messaging MessagingConfig `yaml:"messaging"`
	NTP       NTPConfig       `yaml:"ntp"`
	Display   DisplayConfig   `yaml:"display"`
	Status    StatusConfig    `yaml:"status"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type LoopConfig struct {
	Period        time.Duration `yaml:"period"`
	PublishEvery  uint32        `yaml:"publish_every"`
	ResyncEvery   uint32        `yaml:"resync_every"`
	WrapBound     uint32        `yaml:"wrap_bound"`
	SyncOnBoot    bool          `yaml:"sync_on_boot"`
	PublishOnBoot bool          `yaml:"publish_on_boot"`
	SplashPeriods int           `yaml:"splash_periods"`
}

type PlatformConfig struct {
	Kind   string `yaml:"kind"` // "sim" or "linux"
	I2CBus string `yaml:"i2c_bus"`
}

type SensorsConfig struct {
	AHT20Addr   uint16  `yaml:"aht20_addr"`
	BH1750Addr  uint16  `yaml:"bh1750_addr"`
	ADS1115Addr uint16  `yaml:"ads1115_addr"`
	ADCChannel  int     `yaml:"adc_channel"`
	RefVoltage  float64 `yaml:"ref_voltage"`
}

type MessagingConfig struct {
	Transport      string        `yaml:"transport"` // "mqtt" or "nats"
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	PublishTopic   string        `yaml:"publish_topic"`
	SubscribeTopic string        `yaml:"subscribe_topic"`
	AutoReconnect  bool          `yaml:"auto_reconnect"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	portSet bool // port came from the file or the environment
}

type NTPConfig struct {
	Server    string        `yaml:"server"`
	Timeout   time.Duration `yaml:"timeout"`
	ClockMode string        `yaml:"clock_mode"` // "system" or "offset"
}

type DisplayConfig struct {
	ChartWidth int    `yaml:"chart_width"`
	Splash     string `yaml:"splash"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads a YAML config file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "ReadFile()")
	}
	return Parse(raw)
}

// LoadEmbedded resolves the built-in config for device.
func LoadEmbedded(device string) (*Config, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "config.LoadEmbedded", Msg: "no embedded config for device: " + device}
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if cfg.Device == "" {
		cfg.Device = device
	}
	return cfg, nil
}

// Parse decodes raw YAML, fills defaults and validates.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errcode.New(errcode.InvalidConfig, "config.Parse", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, errcode.New(errcode.InvalidConfig, "config.Parse", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides selected fields from ENVMON_* variables and revalidates.
func (c *Config) ApplyEnv() error {
	c.Device = getEnv("ENVMON_DEVICE", c.Device)
	c.Log.Level = getEnv("ENVMON_LOG_LEVEL", c.Log.Level)
	c.Messaging.Transport = getEnv("ENVMON_TRANSPORT", c.Messaging.Transport)
	c.Messaging.Host = getEnv("ENVMON_BROKER_HOST", c.Messaging.Host)
	if port := getEnvAsInt("ENVMON_BROKER_PORT", 0); port != 0 {
		c.Messaging.Port, c.Messaging.portSet = port, true
	} else if !c.Messaging.portSet {
		c.Messaging.Port = defaultPort(c.Messaging.Transport)
	}
	c.Messaging.User = getEnv("ENVMON_BROKER_USER", c.Messaging.User)
	c.Messaging.Password = getEnv("ENVMON_BROKER_PASSWORD", c.Messaging.Password)
	c.Messaging.ClientID = getEnv("ENVMON_CLIENT_ID", c.Messaging.ClientID)
	c.NTP.Server = getEnv("ENVMON_NTP_SERVER", c.NTP.Server)
	c.Status.Addr = getEnv("ENVMON_STATUS_ADDR", c.Status.Addr)
	if err := c.validate(); err != nil {
		return errcode.New(errcode.InvalidConfig, "config.ApplyEnv", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Loop.Period == 0 {
		c.Loop.Period = time.Second
	}
	if c.Loop.PublishEvery == 0 {
		c.Loop.PublishEvery = 60
	}
	if c.Loop.ResyncEvery == 0 {
		c.Loop.ResyncEvery = 120
	}
	if c.Loop.WrapBound == 0 {
		c.Loop.WrapBound = 86400
	}
	if c.Loop.SplashPeriods == 0 {
		c.Loop.SplashPeriods = 1
	}
	if c.Platform.Kind == "" {
		c.Platform.Kind = "sim"
	}
	if c.Sensors.AHT20Addr == 0 {
		c.Sensors.AHT20Addr = 0x38
	}
	if c.Sensors.BH1750Addr == 0 {
		c.Sensors.BH1750Addr = 0x23
	}
	if c.Sensors.ADS1115Addr == 0 {
		c.Sensors.ADS1115Addr = 0x48
	}
	if c.Sensors.RefVoltage == 0 {
		c.Sensors.RefVoltage = 3.3
	}
	if c.Messaging.Transport == "" {
		c.Messaging.Transport = "mqtt"
	}
	if c.Messaging.Host == "" {
		c.Messaging.Host = "localhost"
	}
	c.Messaging.portSet = c.Messaging.Port != 0
	if !c.Messaging.portSet {
		c.Messaging.Port = defaultPort(c.Messaging.Transport)
	}
	if c.Messaging.PublishTopic == "" {
		c.Messaging.PublishTopic = "/garden/notify"
	}
	if c.Messaging.SubscribeTopic == "" {
		c.Messaging.SubscribeTopic = "/garden/notify"
	}
	if c.Messaging.KeepAlive == 0 {
		c.Messaging.KeepAlive = 60 * time.Second
	}
	if c.Messaging.ConnectTimeout == 0 {
		c.Messaging.ConnectTimeout = 10 * time.Second
	}
	if c.Messaging.PublishTimeout == 0 {
		c.Messaging.PublishTimeout = 5 * time.Second
	}
	if c.NTP.Server == "" {
		c.NTP.Server = "pool.ntp.org"
	}
	if c.NTP.Timeout == 0 {
		c.NTP.Timeout = 5 * time.Second
	}
	if c.NTP.ClockMode == "" {
		c.NTP.ClockMode = "offset"
	}
	if c.Display.ChartWidth == 0 {
		c.Display.ChartWidth = 80
	}
	if c.Display.Splash == "" {
		c.Display.Splash = "Environment Monitor"
	}
	if c.Status.Addr == "" {
		c.Status.Addr = ":9100"
	}
}

// defaultPort is the broker port for transport when none is configured.
func defaultPort(transport string) int {
	if transport == "nats" {
		return 4222
	}
	return 1883
}

func (c *Config) validate() error {
	if c.Loop.Period <= 0 {
		return fmt.Errorf("loop.period must be positive, got %s", c.Loop.Period)
	}
	if c.Loop.PublishEvery > c.Loop.WrapBound || c.Loop.ResyncEvery > c.Loop.WrapBound {
		return fmt.Errorf("loop cadences must not exceed wrap_bound %d", c.Loop.WrapBound)
	}
	switch c.Platform.Kind {
	case "sim", "linux":
	default:
		return fmt.Errorf("platform.kind %q is not one of sim, linux", c.Platform.Kind)
	}
	if c.Sensors.ADCChannel < 0 || c.Sensors.ADCChannel > 3 {
		return fmt.Errorf("sensors.adc_channel must be 0..3, got %d", c.Sensors.ADCChannel)
	}
	if c.Sensors.RefVoltage < 0 {
		return fmt.Errorf("sensors.ref_voltage must not be negative")
	}
	switch c.Messaging.Transport {
	case "mqtt", "nats":
	default:
		return fmt.Errorf("messaging.transport %q is not one of mqtt, nats", c.Messaging.Transport)
	}
	if c.Messaging.Port < 1 || c.Messaging.Port > 65535 {
		return fmt.Errorf("messaging.port %d out of range", c.Messaging.Port)
	}
	if c.Messaging.PublishTopic == "" || c.Messaging.SubscribeTopic == "" {
		return fmt.Errorf("messaging topics are required")
	}
	switch c.NTP.ClockMode {
	case "system", "offset":
	default:
		return fmt.Errorf("ntp.clock_mode %q is not one of system, offset", c.NTP.ClockMode)
	}
	if c.Display.ChartWidth < 1 {
		return fmt.Errorf("display.chart_width must be positive")
	}
	return nil
}

// Sections returns the top-level sections keyed by name. Credentials are
// redacted.
func (c *Config) Sections() map[string]any {
	m := c.Messaging
	if m.Password != "" {
		m.Password = "***"
	}
	return map[string]any{
		"device":    c.Device,
		"log":       c.Log,
		"loop":      c.Loop,
		"platform":  c.Platform,
		"sensors":   c.Sensors,
		"messaging": m,
		"ntp":       c.NTP,
		"display":   c.Display,
		"status":    c.Status,
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
