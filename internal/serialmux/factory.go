package serialmux

import (
	"fmt"

	"go.bug.st/serial"
)

// RealPortFactory opens hardware ports with go.bug.st/serial.
type RealPortFactory struct{}

func (RealPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	n, _ := opts.Normalize()
	if n.ReadTimeout > 0 {
		if err := port.SetReadTimeout(n.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
		}
	}
	return port, nil
}

// NewRealSerialMux creates a SerialMux backed by the hardware port at path.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	port, err := RealPortFactory{}.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port), nil
}

// ListPorts returns the serial ports visible on this host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
