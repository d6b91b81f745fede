package serialtracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tracking.source/internal/tracking"
)

// PoseLine is one JSON object on the stream, for example
//
//	{"tool":"pointer","pos":[1.5,0,-20],"quat":[1,0,0,0],"error":0.12,"t":1532.25}
//
// quat is ordered w, x, y, z. A missing "valid" means valid; a missing "t"
// leaves the timestamp unset.
type PoseLine struct {
	Tool      string     `json:"tool"`
	Position  [3]float64 `json:"pos"`
	Quat      [4]float64 `json:"quat"`
	Error     float64    `json:"error"`
	Valid     *bool      `json:"valid,omitempty"`
	Timestamp float64    `json:"t"`
}

var (
	errNotPose  = errors.New("not a pose line")
	errNoTool   = errors.New("pose line has no tool")
	errZeroQuat = errors.New("pose line has a zero quaternion")
)

// ParsePoseLine decodes one line. Lines that are not JSON objects return an
// error wrapping errNotPose; device chatter of that kind is expected.
func ParsePoseLine(line string) (PoseLine, error) {
	var p PoseLine
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return p, errNotPose
	}
	if err := json.Unmarshal([]byte(line), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal pose: %w", err)
	}
	if p.Tool == "" {
		return p, errNoTool
	}
	if p.IsValid() && p.Quat == [4]float64{} {
		return p, errZeroQuat
	}
	return p, nil
}

// IsValid reports whether the device marked the reading valid.
func (p PoseLine) IsValid() bool {
	return p.Valid == nil || *p.Valid
}

// Reading converts the line into a tool reading with a unit quaternion.
func (p PoseLine) Reading() tracking.Reading {
	q := quat.Number{Real: p.Quat[0], Imag: p.Quat[1], Jmag: p.Quat[2], Kmag: p.Quat[3]}
	if n := quat.Abs(q); n > 0 {
		q = quat.Scale(1/n, q)
	} else {
		q = quat.Number{Real: 1}
	}
	return tracking.Reading{
		Position:      r3.Vec{X: p.Position[0], Y: p.Position[1], Z: p.Position[2]},
		Orientation:   q,
		TrackingError: p.Error,
		Valid:         p.IsValid(),
		Timestamp:     p.Timestamp,
	}
}
