package serialmux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			name: "defaults",
			in:   PortOptions{},
			want: PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"},
		},
		{
			name: "long parity names",
			in:   PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: " even "},
			want: PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"},
		},
		{
			name: "odd",
			in:   PortOptions{Parity: "o"},
			want: PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "O"},
		},
		{name: "bad data bits", in: PortOptions{DataBits: 9}, wantErr: true},
		{name: "bad stop bits", in: PortOptions{StopBits: 3}, wantErr: true},
		{name: "bad parity", in: PortOptions{Parity: "mark"}, wantErr: true},
		{name: "negative timeout", in: PortOptions{ReadTimeout: -time.Second}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 57600, StopBits: 2, Parity: "E"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 57600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)

	_, err = PortOptions{Parity: "X"}.SerialMode()
	assert.Error(t, err)
}

func TestPortOptions_String(t *testing.T) {
	assert.Equal(t, "115200 8N1", PortOptions{}.String())
	assert.Contains(t, PortOptions{DataBits: 12}.String(), "invalid")
}

func TestSerialPortOpener(t *testing.T) {
	port := NewTestableSerialPort()
	var gotPath string
	f := SerialPortOpener(func(path string, _ PortOptions) (SerialPorter, error) {
		gotPath = path
		return port, nil
	})

	p, err := f.Open("/dev/ttyUSB0", PortOptions{})
	require.NoError(t, err)
	assert.Same(t, port, p)
	assert.Equal(t, "/dev/ttyUSB0", gotPath)
}
