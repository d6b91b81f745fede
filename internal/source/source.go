package source

import (
	"errors"
	"fmt"

	"github.com/banshee-data/tracking.source/internal/navigation"
	"github.com/banshee-data/tracking.source/internal/tracking"
)

// Clock returns monotonic milliseconds.
type Clock func() float64

// Option configures a DeviceSource.
type Option func(*DeviceSource)

// WithClock replaces the clock used when a tool reports no timestamp.
func WithClock(c Clock) Option {
	return func(s *DeviceSource) {
		if c != nil {
			s.clock = c
		}
	}
}

// DeviceSource is the single point of contact between a tracking device and
// a pull-based pipeline. It holds one output slot per device tool.
type DeviceSource struct {
	device  tracking.Device
	outputs *navigation.OutputSet
	name    string
	frozen  bool
	dirty   bool
	clock   Clock
}

// New returns a source with no device and no outputs.
func New(opts ...Option) *DeviceSource {
	s := &DeviceSource{
		outputs: navigation.NewOutputSet(),
		clock:   tracking.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Device returns the assigned device, or nil.
func (s *DeviceSource) Device() tracking.Device { return s.device }

// Name is the display name, "<model> Tracking Source" once a device is set.
func (s *DeviceSource) Name() string { return s.name }

// Outputs returns the output set. Its identity is stable for the lifetime
// of the source; consumers must treat it as read-only.
func (s *DeviceSource) Outputs() *navigation.OutputSet { return s.outputs }

// NumberOfOutputs returns the number of output slots.
func (s *DeviceSource) NumberOfOutputs() int { return s.outputs.Len() }

// Output returns the live slot for tool i.
func (s *DeviceSource) Output(i int) (*navigation.Datum, error) {
	d := s.outputs.At(i)
	if d == nil {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutputIndex, i, s.outputs.Len())
	}
	return d, nil
}

// OutputByName returns the live slot of the first tool with that name.
func (s *DeviceSource) OutputByName(name string) (*navigation.Datum, bool) {
	return s.outputs.ByName(name)
}

// Modified reports whether the cached outputs are stale.
func (s *DeviceSource) Modified() bool { return s.dirty }

func (s *DeviceSource) markDirty() { s.dirty = true }

// AssignDevice replaces the wrapped device; nil detaches. The outputs are
// rebuilt even when device is the one already held, because its tool names
// may have changed since the last assignment.
func (s *DeviceSource) AssignDevice(device tracking.Device) {
	s.device = device
	s.CreateOutputs()
	if device != nil {
		s.name = device.Model() + " Tracking Source"
	} else {
		s.name = ""
	}
}

// CreateOutputs drops every slot and allocates one per device tool, named
// after the tool. It always marks the source dirty.
func (s *DeviceSource) CreateOutputs() {
	defer s.markDirty()
	if s.device == nil {
		s.outputs.Reset()
		return
	}
	n := s.device.ToolCount()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		if tool := s.device.Tool(i); tool != nil {
			names[i] = tool.Name()
		}
	}
	s.outputs.Rebuild(names...)
}

// Connect opens the device connection. It is a no-op when already
// connected.
func (s *DeviceSource) Connect() error {
	if s.device == nil {
		return fmt.Errorf("connect: %w", ErrPrecondition)
	}
	if s.IsConnected() {
		return nil
	}
	if !s.device.OpenConnection() {
		return &HardwareError{Op: "connect", Diagnostic: s.device.ErrorMessage()}
	}
	return nil
}

// Disconnect closes the device connection.
func (s *DeviceSource) Disconnect() error {
	if s.device == nil {
		return fmt.Errorf("disconnect: %w", ErrPrecondition)
	}
	if !s.device.CloseConnection() {
		return &HardwareError{Op: "disconnect", Diagnostic: s.device.ErrorMessage()}
	}
	return nil
}

// StartTracking starts acquisition. It is a no-op when already tracking.
func (s *DeviceSource) StartTracking() error {
	if s.device == nil {
		return fmt.Errorf("start tracking: %w", ErrPrecondition)
	}
	if s.IsTracking() {
		return nil
	}
	if !s.device.StartTracking() {
		return &HardwareError{Op: "start tracking", Diagnostic: s.device.ErrorMessage()}
	}
	return nil
}

// StopTracking stops acquisition.
func (s *DeviceSource) StopTracking() error {
	if s.device == nil {
		return fmt.Errorf("stop tracking: %w", ErrPrecondition)
	}
	if !s.device.StopTracking() {
		return &HardwareError{Op: "stop tracking", Diagnostic: s.device.ErrorMessage()}
	}
	return nil
}

// IsConnected reports whether the device is Ready or Tracking.
func (s *DeviceSource) IsConnected() bool {
	return s.device != nil && s.device.State().Connected()
}

// IsTracking reports whether the device is Tracking.
func (s *DeviceSource) IsTracking() bool {
	return s.device != nil && s.device.State() == tracking.Tracking
}

// Freeze pauses or resumes output updates.
func (s *DeviceSource) Freeze(frozen bool) { s.frozen = frozen }

// IsFrozen reports whether updates are paused.
func (s *DeviceSource) IsFrozen() bool { return s.frozen }

// UpdateOutputInformation rebuilds the outputs if the device's tool count
// changed and marks the source dirty so the next Pull recomputes.
func (s *DeviceSource) UpdateOutputInformation() {
	if s.device != nil && s.device.ToolCount() != s.outputs.Len() {
		s.CreateOutputs()
	}
	s.markDirty()
}

// GenerateData copies each tool's latest reading into its output slot.
func (s *DeviceSource) GenerateData() error {
	if s.frozen || s.device == nil {
		return nil
	}
	n := s.device.ToolCount()
	if n < 1 {
		return nil
	}
	if n != s.outputs.Len() {
		return &StructuralMismatchError{Tools: n, Outputs: s.outputs.Len()}
	}

	for i := 0; i < n; i++ {
		out := s.outputs.At(i)
		tool := s.device.Tool(i)
		if tool == nil || !tool.IsEnabled() || !tool.IsDataValid() {
			out.Invalidate()
			continue
		}

		out.SetPose(tool.Position(), tool.Orientation())
		out.DataValid = true
		out.SetAccuracy(tool.TrackingError())

		ts := tool.Timestamp()
		if ts == 0 {
			ts = s.clock()
		}
		out.Timestamp = ts
	}
	return nil
}

// Pull returns the outputs, recomputing them first when dirty. Every pull
// between two invalidations observes the same snapshot. A failed recompute
// leaves the source dirty.
func (s *DeviceSource) Pull() (*navigation.OutputSet, error) {
	if s.dirty {
		if err := s.GenerateData(); err != nil {
			return s.outputs, err
		}
		s.dirty = false
	}
	return s.outputs, nil
}

// Close stops tracking and disconnects if needed so no hardware session is
// left open. It is safe to call more than once.
func (s *DeviceSource) Close() error {
	if s.device == nil {
		return nil
	}
	var errs []error
	if s.IsTracking() {
		if err := s.StopTracking(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.IsConnected() {
		if err := s.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
