package source

import (
	"errors"
	"fmt"

	"github.com/banshee-data/tracking.source/internal/tracking"
)

// Run assigns device to a new source, connects, starts tracking and calls
// fn. The source is closed on every return path, including a panic in fn.
func Run(device tracking.Device, fn func(*DeviceSource) error, opts ...Option) (err error) {
	s := New(opts...)
	s.AssignDevice(device)
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()

	if err := s.Connect(); err != nil {
		return err
	}
	if err := s.StartTracking(); err != nil {
		return err
	}
	return fn(s)
}
