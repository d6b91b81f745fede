package pipeline

import (
	"sync"
	"time"

	"github.com/banshee-data/tracking.source/internal/monitoring"
	"github.com/banshee-data/tracking.source/internal/navigation"
)

// Latest keeps a copy of the most recent outputs for readers on other
// goroutines.
type Latest struct {
	mu      sync.RWMutex
	data    []navigation.Datum
	updated time.Time
	count   uint64
	now     func() time.Time
}

// NewLatest returns an empty cache.
func NewLatest() *Latest {
	return &Latest{now: time.Now}
}

func (l *Latest) Consume(outputs *navigation.OutputSet) {
	snap := outputs.Snapshot()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.data = snap
	l.updated = l.now()
	l.count++
}

// Snapshot returns a copy of the cached outputs and when they were taken.
// The time is zero before the first update.
func (l *Latest) Snapshot() ([]navigation.Datum, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]navigation.Datum(nil), l.data...), l.updated
}

// ByName returns the cached datum with the given name.
func (l *Latest) ByName(name string) (navigation.Datum, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, d := range l.data {
		if d.Name == name {
			return d, true
		}
	}
	return navigation.Datum{}, false
}

// Updates returns how many cycles have been consumed.
func (l *Latest) Updates() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// VisibilityLogger logs each time an output gains or loses valid data.
type VisibilityLogger struct {
	visible []bool
	names   []string
}

func (v *VisibilityLogger) Consume(outputs *navigation.OutputSet) {
	n := outputs.Len()
	if n != len(v.visible) {
		v.visible = make([]bool, n)
		v.names = make([]string, n)
	}
	for i := 0; i < n; i++ {
		d := outputs.At(i)
		if v.names[i] != d.Name {
			// Slot was rebuilt for another tool.
			v.names[i] = d.Name
			v.visible[i] = false
		}
		if d.DataValid == v.visible[i] {
			continue
		}
		v.visible[i] = d.DataValid
		if d.DataValid {
			monitoring.Logf("pipeline: %s visible at %v", d.Name, d.Position)
		} else {
			monitoring.Logf("pipeline: %s lost", d.Name)
		}
	}
}
