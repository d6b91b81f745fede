package tracking

import (
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Reading is a complete pose sample written by an acquisition loop.
type Reading struct {
	Position      r3.Vec
	Orientation   quat.Number
	TrackingError float64
	Valid         bool
	Timestamp     float64
}

// InternalTool is a concurrency-safe Tool backed by the latest Reading. The
// writer side (Update, Invalidate, SetEnabled) is used by device backends.
type InternalTool struct {
	mu      sync.RWMutex
	name    string
	enabled bool
	reading Reading
}

var _ Tool = (*InternalTool)(nil)

// NewInternalTool returns an enabled tool with no valid data.
func NewInternalTool(name string) *InternalTool {
	return &InternalTool{
		name:    name,
		enabled: true,
		reading: Reading{Orientation: quat.Number{Real: 1}},
	}
}

func (t *InternalTool) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// SetName renames the tool.
func (t *InternalTool) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

func (t *InternalTool) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// SetEnabled toggles whether the tool takes part in tracking.
func (t *InternalTool) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *InternalTool) IsDataValid() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reading.Valid
}

func (t *InternalTool) Position() r3.Vec {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reading.Position
}

func (t *InternalTool) Orientation() quat.Number {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reading.Orientation
}

func (t *InternalTool) TrackingError() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reading.TrackingError
}

func (t *InternalTool) Timestamp() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reading.Timestamp
}

// Reading returns a consistent copy of every value at once.
func (t *InternalTool) Reading() Reading {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reading
}

// Update replaces the latest reading.
func (t *InternalTool) Update(r Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reading = r
}

// Invalidate marks the current reading invalid and keeps the last pose.
func (t *InternalTool) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reading.Valid = false
}
