package main

import (
	"fmt"

	"github.com/banshee-data/tracking.source/internal/config"
	"github.com/banshee-data/tracking.source/internal/serialmux"
	"github.com/banshee-data/tracking.source/internal/tracking"
	"github.com/banshee-data/tracking.source/internal/tracking/serialtracker"
	"github.com/banshee-data/tracking.source/internal/tracking/virtual"
)

// applyOverrides folds command-line flags over the loaded config. Empty
// values leave the config untouched.
func applyOverrides(cfg *config.Config, device, port, listen string) {
	if device != "" {
		cfg.Device = &device
	}
	if port != "" {
		if cfg.Serial == nil {
			cfg.Serial = &config.SerialConfig{}
		}
		cfg.Serial.Port = port
	}
	if listen != "" {
		cfg.Listen = &listen
	}
}

// buildDevice constructs the configured tracking device in the Setup state.
// factory overrides how serial ports are opened; nil opens real ports.
func buildDevice(cfg *config.Config, factory serialmux.SerialPortFactory) (tracking.Device, error) {
	tools := cfg.GetTools()

	switch kind := cfg.GetDevice(); kind {
	case config.DeviceVirtual:
		d := virtual.New(virtual.Config{
			Model:           cfg.GetModel(),
			RefreshInterval: cfg.Virtual.GetRefreshInterval(),
			Radius:          cfg.Virtual.GetRadius(),
			Noise:           cfg.Virtual.GetNoise(),
			DropoutRate:     cfg.Virtual.GetDropoutRate(),
			Seed:            cfg.Virtual.GetSeed(),
		})
		for _, tc := range tools {
			t, err := d.AddTool(tc.Name)
			if err != nil {
				return nil, err
			}
			t.SetEnabled(tc.IsEnabled())
		}
		return d, nil

	case config.DeviceSerial:
		if cfg.Serial == nil || cfg.Serial.Port == "" {
			return nil, fmt.Errorf("serial device requires a port")
		}
		opts, err := cfg.Serial.PortOptions()
		if err != nil {
			return nil, err
		}
		d := serialtracker.New(serialtracker.Config{
			Model:         cfg.GetModel(),
			Path:          cfg.Serial.Port,
			Options:       opts,
			Tools:         cfg.ToolNames(),
			StartCommands: cfg.Serial.StartCommands,
			StopCommands:  cfg.Serial.StopCommands,
			Factory:       factory,
		})
		for i, tc := range tools {
			if t, ok := d.Tool(i).(*tracking.InternalTool); ok {
				t.SetEnabled(tc.IsEnabled())
			}
		}
		return d, nil

	default:
		return nil, fmt.Errorf("unknown device kind %q", kind)
	}
}
