package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tracking.source/internal/tracking"
)

func TestRun_TearsDownAfterFn(t *testing.T) {
	d := newFakeDevice("t0")

	err := Run(d, func(s *DeviceSource) error {
		assert.True(t, s.IsTracking())
		assert.Equal(t, 1, s.NumberOfOutputs())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"open", "start", "stop", "close"}, d.calls)
	assert.Equal(t, tracking.Setup, d.State())
}

func TestRun_TearsDownOnError(t *testing.T) {
	d := newFakeDevice("t0")
	boom := errors.New("boom")

	err := Run(d, func(*DeviceSource) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, tracking.Setup, d.State())
}

func TestRun_TearsDownOnPanic(t *testing.T) {
	d := newFakeDevice("t0")

	assert.Panics(t, func() {
		_ = Run(d, func(*DeviceSource) error { panic("fn exploded") })
	})
	assert.Equal(t, tracking.Setup, d.State())
}

func TestRun_StartFailureStillDisconnects(t *testing.T) {
	d := newFakeDevice("t0")
	d.fail["start"] = true

	err := Run(d, func(*DeviceSource) error {
		t.Fatal("fn must not run")
		return nil
	})

	assert.ErrorIs(t, err, ErrHardware)
	assert.Equal(t, []string{"open", "start", "close"}, d.calls)
}

func TestRun_NilDevice(t *testing.T) {
	err := Run(nil, func(*DeviceSource) error { return nil })
	assert.ErrorIs(t, err, ErrPrecondition)
}
