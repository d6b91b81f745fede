package tracking

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// State is the connection lifecycle state of a Device.
//
//	Setup --OpenConnection--> Ready --StartTracking--> Tracking
//	Tracking --StopTracking--> Ready --CloseConnection--> Setup
type State int

const (
	Setup State = iota
	Ready
	Tracking
)

func (s State) String() string {
	switch s {
	case Setup:
		return "setup"
	case Ready:
		return "ready"
	case Tracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Connected reports whether the state has an open connection.
func (s State) Connected() bool {
	return s == Ready || s == Tracking
}

// Device is a tracking system producing live poses for one or more tools.
//
// The transition methods report success as a bool; on failure the device
// must leave its state untouched and describe the problem in ErrorMessage.
type Device interface {
	OpenConnection() bool
	CloseConnection() bool
	StartTracking() bool
	StopTracking() bool

	State() State
	ToolCount() int
	// Tool returns tool i, or nil when i is out of range.
	Tool(i int) Tool
	Model() string

	// ErrorMessage is the diagnostic text of the last failed operation.
	ErrorMessage() string
}

// Tool is one tracked sensor. Every accessor is an instantaneous read of
// the latest value written by the device's acquisition loop.
type Tool interface {
	Name() string
	IsEnabled() bool
	IsDataValid() bool
	Position() r3.Vec
	Orientation() quat.Number
	TrackingError() float64
	// Timestamp is in monotonic milliseconds; zero means unset.
	Timestamp() float64
}

// ToolByName returns the first tool of d with the given name.
func ToolByName(d Device, name string) (Tool, bool) {
	if d == nil {
		return nil, false
	}
	for i := 0; i < d.ToolCount(); i++ {
		t := d.Tool(i)
		if t != nil && t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
