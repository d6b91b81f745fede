package serialmux

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate suits the pose streamers we talk to, which push several
// hundred short JSON lines per second.
const DefaultBaudRate = 115200

// PortOptions describes the serial connection parameters used when opening
// a real port. Zero values select defaults.
type PortOptions struct {
	BaudRate    int           `json:"baud_rate" yaml:"baud_rate" validate:"gte=0"`
	DataBits    int           `json:"data_bits" yaml:"data_bits" validate:"gte=0,lte=8"`
	StopBits    int           `json:"stop_bits" yaml:"stop_bits" validate:"gte=0,lte=2"`
	Parity      string        `json:"parity" yaml:"parity"`
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`
}

// Normalize validates the options and fills in defaults for unset fields.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	if opts.ReadTimeout < 0 {
		return opts, fmt.Errorf("invalid read timeout %s", opts.ReadTimeout)
	}
	return opts, nil
}

func (o PortOptions) String() string {
	n, err := o.Normalize()
	if err != nil {
		return "invalid(" + err.Error() + ")"
	}
	return fmt.Sprintf("%d %d%s%d", n.BaudRate, n.DataBits, n.Parity, n.StopBits)
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}
