package navigation

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Identity is the unit quaternion representing no rotation.
var Identity = quat.Number{Real: 1}

// Datum is one tool's latest pose snapshot together with its validity,
// accuracy and acquisition time.
type Datum struct {
	Name string

	Position    r3.Vec
	Orientation quat.Number

	PositionAccuracy    float64
	OrientationAccuracy float64

	DataValid bool

	// Timestamp is in monotonic milliseconds.
	Timestamp float64
}

// NewDatum returns an invalid datum at the origin with identity orientation.
func NewDatum(name string) *Datum {
	return &Datum{
		Name:        name,
		Orientation: Identity,
	}
}

// SetPose overwrites position and orientation.
func (d *Datum) SetPose(position r3.Vec, orientation quat.Number) {
	d.Position = position
	d.Orientation = orientation
}

// SetAccuracy writes the same uncertainty into both the position and the
// orientation accuracy. Devices report a single tracking error per tool.
func (d *Datum) SetAccuracy(trackingError float64) {
	d.PositionAccuracy = trackingError
	d.OrientationAccuracy = trackingError
}

// Invalidate clears DataValid and nothing else. The last pose is kept.
func (d *Datum) Invalidate() {
	d.DataValid = false
}

// NormalizedOrientation returns Orientation scaled to unit length. A zero
// quaternion yields Identity.
func (d *Datum) NormalizedOrientation() quat.Number {
	n := quat.Abs(d.Orientation)
	if n == 0 {
		return Identity
	}
	return quat.Scale(1/n, d.Orientation)
}

func (d *Datum) String() string {
	return fmt.Sprintf("%s valid=%t pos=(%.3f, %.3f, %.3f) ori=(%.4f, %.4f, %.4f, %.4f) err=%.3f t=%.1fms",
		d.Name, d.DataValid,
		d.Position.X, d.Position.Y, d.Position.Z,
		d.Orientation.Real, d.Orientation.Imag, d.Orientation.Jmag, d.Orientation.Kmag,
		d.PositionAccuracy, d.Timestamp)
}
