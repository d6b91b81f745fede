package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// TestableSerialPort is an in-memory SerialPorter. Reads block until data is
// added or the port is closed, like a real port with no read timeout.
type TestableSerialPort struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error
	// CloseError is returned by Close if set.
	CloseError error

	readErr     error
	closed      bool
	readTimeout time.Duration
	readCond    *sync.Cond
	writeCalls  int
}

var _ TimeoutSerialPorter = (*TestableSerialPort)(nil)

// NewTestableSerialPort creates an empty port.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.readErr == nil && p.readBuf.Len() == 0 {
		p.readCond.Wait()
	}
	if p.readBuf.Len() == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, io.EOF
	}
	return p.readBuf.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeCalls++
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.writeBuf.Write(b)
}

// Close marks the port closed and wakes blocked readers. Buffered data is
// still returned before io.EOF.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

func (p *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = timeout
	return nil
}

// AddLine queues line, newline-terminated, for subsequent reads.
func (p *TestableSerialPort) AddLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.WriteString(line)
	p.readBuf.WriteByte('\n')
	p.readCond.Broadcast()
}

// FailReads makes Read return err once buffered data is drained, as a
// port does when the device is unplugged.
func (p *TestableSerialPort) FailReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
	p.readCond.Broadcast()
}

// Written returns everything written to the port so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.String()
}

// WriteCalls returns the number of Write calls.
func (p *TestableSerialPort) WriteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeCalls
}

// Closed reports whether Close was called.
func (p *TestableSerialPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// MockSerialPortFactory hands out a fixed port and records Open calls.
type MockSerialPortFactory struct {
	mu sync.Mutex

	// Port is returned from Open. NewPort, when set, takes precedence and
	// is called on every Open.
	Port    SerialPorter
	NewPort func() SerialPorter
	// Error is returned by Open if set.
	Error error

	OpenCalls []MockOpenCall
}

// MockOpenCall records one Open call.
type MockOpenCall struct {
	Path string
	Opts PortOptions
}

// NewMockSerialPortFactory creates a factory that always returns port.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

func (f *MockSerialPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Opts: opts})
	if f.Error != nil {
		return nil, f.Error
	}
	if f.NewPort != nil {
		return f.NewPort(), nil
	}
	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockSerialPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
