package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tracking.source/internal/config"
	"github.com/banshee-data/tracking.source/internal/monitoring"
	"github.com/banshee-data/tracking.source/internal/pipeline"
	"github.com/banshee-data/tracking.source/internal/serialmux"
	"github.com/banshee-data/tracking.source/internal/source"
	"github.com/banshee-data/tracking.source/internal/tracking"
	"github.com/banshee-data/tracking.source/internal/tracking/serialtracker"
	"github.com/banshee-data/tracking.source/internal/tracking/virtual"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configPath)
	assert.Equal(t, "", *listen, "empty defers to the config default")
	assert.Equal(t, "", *device)
	assert.Equal(t, "", *port)
	assert.False(t, *listPorts)
	assert.False(t, *showVersion)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DeviceVirtual, cfg.GetDevice())

	path := filepath.Join(t.TempDir(), "trackd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tools: [{name: stylus}]\n"), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"stylus"}, cfg.ToolNames())
}

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{}
	applyOverrides(cfg, "", "", "")
	assert.Nil(t, cfg.Device)
	assert.Nil(t, cfg.Serial)

	applyOverrides(cfg, "serial", "/dev/ttyACM0", "localhost:9000")
	assert.Equal(t, config.DeviceSerial, cfg.GetDevice())
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, "localhost:9000", cfg.GetListen())
	require.NoError(t, cfg.Validate())
}

func TestPortFlagCompletesSerialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: serial\ntools: [{name: pointer}]\n"), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err, "the port is supplied by flag")
	assert.Error(t, cfg.Validate())

	applyOverrides(cfg, "", "/dev/ttyX", "")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/dev/ttyX", cfg.Serial.Port)

	dev, err := buildDevice(cfg, serialmux.NewMockSerialPortFactory(serialmux.NewTestableSerialPort()))
	require.NoError(t, err)
	assert.IsType(t, &serialtracker.Device{}, dev)
}

func TestBuildDevice_Virtual(t *testing.T) {
	disabled := false
	cfg := &config.Config{Tools: []config.ToolConfig{
		{Name: "pointer"},
		{Name: "reference", Enabled: &disabled},
	}}
	dev, err := buildDevice(cfg, nil)
	require.NoError(t, err)

	v, ok := dev.(*virtual.Device)
	require.True(t, ok)
	assert.Equal(t, virtual.DefaultModel, v.Model())
	require.Equal(t, 2, v.ToolCount())
	assert.True(t, v.Tool(0).IsEnabled())
	assert.False(t, v.Tool(1).IsEnabled())
}

func TestBuildDevice_Serial(t *testing.T) {
	factory := serialmux.NewMockSerialPortFactory(serialmux.NewTestableSerialPort())
	model := "Bench"
	cfg := &config.Config{Model: &model}
	applyOverrides(cfg, config.DeviceSerial, "/dev/ttyTEST", "")

	dev, err := buildDevice(cfg, factory)
	require.NoError(t, err)
	_, ok := dev.(*serialtracker.Device)
	require.True(t, ok)
	assert.Equal(t, "Bench", dev.Model())
	assert.Equal(t, 2, dev.ToolCount())

	err = source.Run(dev, func(s *source.DeviceSource) error {
		assert.Equal(t, "Bench Tracking Source", s.Name())
		assert.True(t, s.IsTracking())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyTEST", factory.LastCall().Path)
	assert.Equal(t, tracking.Setup, dev.State())
}

func TestBuildDevice_Errors(t *testing.T) {
	kind := "optical"
	_, err := buildDevice(&config.Config{Device: &kind}, nil)
	assert.ErrorContains(t, err, "unknown device kind")

	kind = config.DeviceSerial
	_, err = buildDevice(&config.Config{Device: &kind}, nil)
	assert.ErrorContains(t, err, "requires a port")
}

func TestNewHandler(t *testing.T) {
	dev, err := buildDevice(&config.Config{}, nil)
	require.NoError(t, err)
	src := source.New()
	src.AssignDevice(dev)

	metrics, err := pipeline.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	runner := pipeline.NewRunner(src, 0, metrics)
	latest := pipeline.NewLatest()
	runner.Add(latest)
	require.NoError(t, runner.Cycle())

	srv := httptest.NewServer(newHandler(src, runner, latest, metrics))
	defer srv.Close()

	for path, want := range map[string]string{
		"/api/navigation":           `"name":"pointer"`,
		"/api/navigation/reference": `"name":"reference"`,
		"/metrics":                  "tracking_source_cycles_total 1",
		"/debug/outputs":            "reference valid=false",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}
