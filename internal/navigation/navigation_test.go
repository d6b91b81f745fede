package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewDatum(t *testing.T) {
	d := NewDatum("pointer")

	assert.Equal(t, "pointer", d.Name)
	assert.False(t, d.DataValid)
	assert.Equal(t, r3.Vec{}, d.Position)
	assert.Equal(t, Identity, d.Orientation)
	assert.Zero(t, d.Timestamp)
}

func TestDatum_SetAccuracyCouplesBothFields(t *testing.T) {
	d := NewDatum("probe")
	d.SetAccuracy(0.25)

	assert.Equal(t, 0.25, d.PositionAccuracy)
	assert.Equal(t, 0.25, d.OrientationAccuracy)
}

func TestDatum_InvalidateKeepsPose(t *testing.T) {
	d := NewDatum("probe")
	d.SetPose(r3.Vec{X: 1, Y: 2, Z: 3}, quat.Number{Real: 0, Imag: 1})
	d.DataValid = true

	d.Invalidate()

	assert.False(t, d.DataValid)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, d.Position)
	assert.Equal(t, quat.Number{Imag: 1}, d.Orientation)
}

func TestDatum_NormalizedOrientation(t *testing.T) {
	d := NewDatum("x")
	d.Orientation = quat.Number{Real: 2}
	assert.InDelta(t, 1.0, d.NormalizedOrientation().Real, 1e-12)

	d.Orientation = quat.Number{}
	assert.Equal(t, Identity, d.NormalizedOrientation())
}

func TestOutputSet(t *testing.T) {
	s := NewOutputSet("a", "b", "a")
	require.Equal(t, 3, s.Len())

	assert.Equal(t, "b", s.At(1).Name)
	assert.Nil(t, s.At(3))
	assert.Nil(t, s.At(-1))

	d, ok := s.ByName("a")
	require.True(t, ok)
	assert.Same(t, s.At(0), d, "ByName returns the first match")

	_, ok = s.ByName("missing")
	assert.False(t, ok)

	s.At(2).DataValid = true
	assert.Equal(t, 1, s.ValidCount())

	snap := s.Snapshot()
	snap[0].Name = "changed"
	assert.Equal(t, "a", s.At(0).Name, "snapshot is a copy")
}

func TestOutputSet_RebuildKeepsIdentity(t *testing.T) {
	s := NewOutputSet("a")
	old := s.At(0)

	s.Rebuild("a", "b")

	assert.Equal(t, 2, s.Len())
	assert.NotSame(t, old, s.At(0))

	s.Reset()
	assert.Zero(t, s.Len())
}

func TestOutputSet_Nil(t *testing.T) {
	var s *OutputSet
	assert.Zero(t, s.Len())
	assert.Nil(t, s.At(0))
	assert.Nil(t, s.Snapshot())
	_, ok := s.ByName("x")
	assert.False(t, ok)
}
