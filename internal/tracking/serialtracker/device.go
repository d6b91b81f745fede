// Package serialtracker implements tracking.Device on top of a serial port
// that streams one JSON pose object per line.
//
// The port is opened by OpenConnection and read continuously by a monitor
// goroutine until CloseConnection. Lines are applied to tools only while
// the device is Tracking. A tool that goes unmentioned for longer than
// Config.StaleAfter is invalidated, and if the port stream ends outside
// CloseConnection every tool is invalidated and the device drops back to
// Ready until it is reconnected.
package serialtracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/tracking.source/internal/monitoring"
	"github.com/banshee-data/tracking.source/internal/serialmux"
	"github.com/banshee-data/tracking.source/internal/timeutil"
	"github.com/banshee-data/tracking.source/internal/tracking"
)

// DefaultStaleAfter is how long a tool stays valid without a fresh line.
const DefaultStaleAfter = 250 * time.Millisecond

// Config describes the port and the tools expected on it.
type Config struct {
	Model   string
	Path    string
	Options serialmux.PortOptions
	// Tools lists tool names in output order. Lines for other names are
	// ignored.
	Tools []string
	// StartCommands and StopCommands are written when tracking starts and
	// stops.
	StartCommands []string
	StopCommands  []string
	// Factory opens the port; nil uses serialmux.RealPortFactory.
	Factory serialmux.SerialPortFactory
	// StaleAfter bounds the age of a valid reading. Zero selects
	// DefaultStaleAfter; negative disables the check.
	StaleAfter time.Duration
	// Clock paces the staleness check; nil uses the real clock.
	Clock timeutil.Clock
}

// Device is a serial pose stream tracker.
type Device struct {
	cfg Config

	mu     sync.Mutex
	state  tracking.State
	errMsg string
	tools  []*tracking.InternalTool
	seen   map[*tracking.InternalTool]time.Time
	// lost is set when the port stream ended while connected.
	lost bool

	mux    *serialmux.SerialMux[serialmux.SerialPorter]
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ tracking.Device = (*Device)(nil)

// New creates a device in the Setup state.
func New(cfg Config) *Device {
	if cfg.Model == "" {
		cfg.Model = "Serial"
	}
	if cfg.Factory == nil {
		cfg.Factory = serialmux.RealPortFactory{}
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	d := &Device{cfg: cfg, seen: make(map[*tracking.InternalTool]time.Time)}
	for _, name := range cfg.Tools {
		d.tools = append(d.tools, tracking.NewInternalTool(name))
	}
	return d
}

func (d *Device) Model() string { return d.cfg.Model }

func (d *Device) State() tracking.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) ErrorMessage() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.errMsg
}

func (d *Device) ToolCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tools)
}

func (d *Device) Tool(i int) tracking.Tool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.tools) {
		return nil
	}
	return d.tools[i]
}

// Mux returns the line multiplexer of the open connection, or nil.
func (d *Device) Mux() serialmux.SerialMuxInterface {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mux == nil {
		return nil
	}
	return d.mux
}

func (d *Device) fail(format string, args ...any) bool {
	d.errMsg = fmt.Sprintf(format, args...)
	return false
}

func (d *Device) OpenConnection() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != tracking.Setup {
		return d.fail("cannot open connection in state %s", d.state)
	}
	if len(d.tools) == 0 {
		return d.fail("no tools configured")
	}
	port, err := d.cfg.Factory.Open(d.cfg.Path, d.cfg.Options)
	if err != nil {
		return d.fail("could not open serial port %s: %v", d.cfg.Path, err)
	}

	d.mux = serialmux.NewSerialMux(port)
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	id, lines := d.mux.Subscribe()

	mux := d.mux
	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		err := mux.Monitor(ctx)
		if ctx.Err() == nil {
			d.portLost(ctx, err)
		}
	}()
	go func() {
		defer d.wg.Done()
		defer mux.Unsubscribe(id)
		d.consume(ctx, lines)
	}()

	d.state = tracking.Ready
	d.lost = false
	d.errMsg = ""
	monitoring.Logf("serialtracker: connected to %s (%s)", d.cfg.Path, d.cfg.Options)
	return true
}

// portLost runs when the monitor stops without CloseConnection asking it
// to. Readings can no longer be refreshed, so none may stay valid.
func (d *Device) portLost(ctx context.Context, err error) {
	if err == nil {
		err = errors.New("stream ended")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	for _, t := range d.tools {
		t.Invalidate()
	}
	d.lost = true
	if d.state == tracking.Tracking {
		d.state = tracking.Ready
	}
	d.errMsg = fmt.Sprintf("serial port %s failed: %v", d.cfg.Path, err)
	monitoring.Logf("serialtracker: %s", d.errMsg)
}

func (d *Device) consume(ctx context.Context, lines <-chan string) {
	var tick <-chan time.Time
	if d.cfg.StaleAfter > 0 {
		ticker := d.cfg.Clock.NewTicker(d.cfg.StaleAfter / 2)
		defer ticker.Stop()
		tick = ticker.C()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			d.expire(d.cfg.Clock.Now())
		case line, ok := <-lines:
			if !ok {
				return
			}
			d.apply(line)
		}
	}
}

// expire invalidates tools whose last line is older than StaleAfter.
func (d *Device) expire(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != tracking.Tracking {
		return
	}
	for _, t := range d.tools {
		if now.Sub(d.seen[t]) >= d.cfg.StaleAfter && t.IsDataValid() {
			t.Invalidate()
			monitoring.Logf("serialtracker: %s stale after %s", t.Name(), d.cfg.StaleAfter)
		}
	}
}

func (d *Device) apply(line string) {
	p, err := ParsePoseLine(line)
	if errors.Is(err, errNotPose) {
		return
	}
	if err != nil {
		monitoring.Logf("serialtracker: dropping line %q: %v", line, err)
		return
	}

	found, ok := tracking.ToolByName(d, p.Tool)
	if !ok {
		return
	}
	tool := found.(*tracking.InternalTool)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != tracking.Tracking || d.lost {
		return
	}
	d.seen[tool] = d.cfg.Clock.Now()
	tool.Update(p.Reading())
}

func (d *Device) StartTracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != tracking.Ready {
		return d.fail("cannot start tracking in state %s", d.state)
	}
	if d.lost {
		return d.fail("serial port %s lost; reconnect before tracking", d.cfg.Path)
	}
	if err := d.mux.Initialise(d.cfg.StartCommands...); err != nil {
		return d.fail("%v", err)
	}
	now := d.cfg.Clock.Now()
	for _, t := range d.tools {
		d.seen[t] = now
	}
	d.state = tracking.Tracking
	d.errMsg = ""
	return true
}

func (d *Device) StopTracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *Device) stopLocked() bool {
	switch d.state {
	case tracking.Setup:
		return d.fail("cannot stop tracking in state %s", d.state)
	case tracking.Ready:
		return true
	}
	if err := d.mux.Initialise(d.cfg.StopCommands...); err != nil {
		return d.fail("%v", err)
	}
	d.state = tracking.Ready
	d.errMsg = ""
	return true
}

func (d *Device) CloseConnection() bool {
	d.mu.Lock()
	if d.state == tracking.Setup {
		d.mu.Unlock()
		return true
	}
	if d.state == tracking.Tracking && !d.stopLocked() {
		monitoring.Logf("serialtracker: stop before close failed: %s", d.errMsg)
	}
	mux, cancel := d.mux, d.cancel
	d.mu.Unlock()

	cancel()
	err := mux.Close()
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tools {
		t.Invalidate()
	}
	d.mux = nil
	d.cancel = nil
	d.lost = false
	d.state = tracking.Setup
	d.errMsg = ""
	if err != nil {
		monitoring.Logf("serialtracker: error closing %s: %v", d.cfg.Path, err)
	}
	monitoring.Logf("serialtracker: disconnected from %s", d.cfg.Path)
	return true
}
