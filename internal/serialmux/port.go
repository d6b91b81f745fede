package serialmux

import (
	"io"
	"time"
)

// SerialPorter is the minimal interface needed for a serial port. Tests use
// an in-memory port instead of real hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter is implemented by ports that support read deadlines.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}

// SerialPortFactory opens serial ports. Device backends take a factory so
// the port can be swapped without touching the backend.
type SerialPortFactory interface {
	Open(path string, opts PortOptions) (SerialPorter, error)
}

// SerialPortOpener adapts a plain function to SerialPortFactory.
type SerialPortOpener func(path string, opts PortOptions) (SerialPorter, error)

func (f SerialPortOpener) Open(path string, opts PortOptions) (SerialPorter, error) {
	return f(path, opts)
}
