// Package config loads the tracking daemon configuration from JSON or YAML.
//
// Optional settings are pointers so a partial file only overrides what it
// names; the Get* methods supply defaults for the rest.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/tracking.source/internal/serialmux"
)

const (
	DeviceVirtual = "virtual"
	DeviceSerial  = "serial"

	DefaultListen         = ":8080"
	DefaultUpdateInterval = 20 * time.Millisecond

	maxFileSize = 1 * 1024 * 1024 // 1MB
)

// DefaultTools are used when a config names no tools.
var DefaultTools = []string{"pointer", "reference"}

// Config is the root configuration.
type Config struct {
	Device         *string      `json:"device,omitempty" yaml:"device,omitempty" validate:"omitempty,oneof=virtual serial"`
	Model          *string      `json:"model,omitempty" yaml:"model,omitempty"`
	Tools          []ToolConfig `json:"tools,omitempty" yaml:"tools,omitempty" validate:"dive"`
	UpdateInterval *string      `json:"update_interval,omitempty" yaml:"update_interval,omitempty" validate:"omitempty,duration"`
	Listen         *string      `json:"listen,omitempty" yaml:"listen,omitempty" validate:"omitempty,hostport"`

	Serial  *SerialConfig  `json:"serial,omitempty" yaml:"serial,omitempty"`
	Virtual *VirtualConfig `json:"virtual,omitempty" yaml:"virtual,omitempty"`
}

// ToolConfig declares one tool in output order.
type ToolConfig struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled defaults to true.
func (t ToolConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// SerialConfig describes a pose streamer on a serial port.
type SerialConfig struct {
	Port          string   `json:"port" yaml:"port"`
	BaudRate      int      `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty" validate:"gte=0"`
	DataBits      int      `json:"data_bits,omitempty" yaml:"data_bits,omitempty" validate:"omitempty,gte=5,lte=8"`
	StopBits      int      `json:"stop_bits,omitempty" yaml:"stop_bits,omitempty" validate:"omitempty,oneof=1 2"`
	Parity        string   `json:"parity,omitempty" yaml:"parity,omitempty" validate:"omitempty,oneof=N E O n e o none even odd NONE EVEN ODD"`
	ReadTimeout   string   `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty" validate:"omitempty,duration"`
	StartCommands []string `json:"start_commands,omitempty" yaml:"start_commands,omitempty"`
	StopCommands  []string `json:"stop_commands,omitempty" yaml:"stop_commands,omitempty"`
}

// PortOptions converts the settings for serialmux.
func (s *SerialConfig) PortOptions() (serialmux.PortOptions, error) {
	opts := serialmux.PortOptions{
		BaudRate: s.BaudRate,
		DataBits: s.DataBits,
		StopBits: s.StopBits,
		Parity:   s.Parity,
	}
	if s.ReadTimeout != "" {
		d, err := time.ParseDuration(s.ReadTimeout)
		if err != nil {
			return opts, fmt.Errorf("invalid read_timeout %q: %w", s.ReadTimeout, err)
		}
		opts.ReadTimeout = d
	}
	return opts.Normalize()
}

// VirtualConfig tunes the simulated device.
type VirtualConfig struct {
	RefreshInterval *string  `json:"refresh_interval,omitempty" yaml:"refresh_interval,omitempty" validate:"omitempty,duration"`
	Radius          *float64 `json:"radius,omitempty" yaml:"radius,omitempty" validate:"omitempty,gt=0"`
	Noise           *float64 `json:"noise,omitempty" yaml:"noise,omitempty" validate:"omitempty,gte=0"`
	DropoutRate     *float64 `json:"dropout_rate,omitempty" yaml:"dropout_rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	Seed            *uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

func (v *VirtualConfig) GetRefreshInterval() time.Duration {
	if v == nil {
		return 0
	}
	return parseDuration(v.RefreshInterval, 0)
}

func (v *VirtualConfig) GetRadius() float64 {
	if v == nil || v.Radius == nil {
		return 0
	}
	return *v.Radius
}

func (v *VirtualConfig) GetNoise() float64 {
	if v == nil || v.Noise == nil {
		return 0
	}
	return *v.Noise
}

func (v *VirtualConfig) GetDropoutRate() float64 {
	if v == nil || v.DropoutRate == nil {
		return 0
	}
	return *v.DropoutRate
}

func (v *VirtualConfig) GetSeed() uint64 {
	if v == nil || v.Seed == nil {
		return 0
	}
	return *v.Seed
}

// Load reads a config file. The format follows the extension: .json,
// .yaml or .yml. The result is not validated; callers apply any overrides
// and then call Validate.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}
	return cfg, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("hostport", func(fl validator.FieldLevel) bool {
		_, _, err := net.SplitHostPort(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks field constraints, then the rules that span fields.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return err
	}
	if c.GetDevice() == DeviceSerial {
		if c.Serial == nil || c.Serial.Port == "" {
			return errors.New("serial device requires serial.port")
		}
		if _, err := c.Serial.PortOptions(); err != nil {
			return err
		}
	}
	return nil
}

func parseDuration(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetDevice returns the device kind, DeviceVirtual by default.
func (c *Config) GetDevice() string {
	if c.Device == nil || *c.Device == "" {
		return DeviceVirtual
	}
	return *c.Device
}

// GetModel returns the configured model name, or "" for the device default.
func (c *Config) GetModel() string {
	if c.Model == nil {
		return ""
	}
	return *c.Model
}

// GetTools returns the tool list, DefaultTools when none are configured.
func (c *Config) GetTools() []ToolConfig {
	if len(c.Tools) == 0 {
		tools := make([]ToolConfig, len(DefaultTools))
		for i, name := range DefaultTools {
			tools[i] = ToolConfig{Name: name}
		}
		return tools
	}
	return c.Tools
}

// ToolNames returns the tool names in output order.
func (c *Config) ToolNames() []string {
	tools := c.GetTools()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

func (c *Config) GetUpdateInterval() time.Duration {
	return parseDuration(c.UpdateInterval, DefaultUpdateInterval)
}

func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return DefaultListen
	}
	return *c.Listen
}
