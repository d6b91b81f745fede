// Package virtual is a simulated tracking system. Each tool orbits a fixed
// centre on its own circle; readings may be perturbed with Gaussian noise
// and randomly dropped to exercise consumers against flaky visibility.
package virtual

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/tracking.source/internal/monitoring"
	"github.com/banshee-data/tracking.source/internal/tracking"
)

const (
	DefaultModel           = "Virtual"
	DefaultRefreshInterval = 20 * time.Millisecond
	DefaultRadius          = 100.0
	// DefaultAngularSpeed is in radians per second.
	DefaultAngularSpeed = math.Pi / 4
)

// Config controls the simulated motion.
type Config struct {
	Model           string
	RefreshInterval time.Duration
	Radius          float64
	AngularSpeed    float64
	// Noise is the standard deviation of position jitter in millimetres.
	Noise float64
	// DropoutRate is the probability in [0,1] that a sample is reported
	// invalid.
	DropoutRate float64
	Seed        uint64
	// Clock supplies sample timestamps; nil uses tracking.Now.
	Clock func() float64
}

type tool struct {
	*tracking.InternalTool
	id     uuid.UUID
	centre r3.Vec
	phase  float64
}

// Device is a tracking.Device whose tools move on circular paths.
type Device struct {
	cfg Config

	mu     sync.Mutex
	state  tracking.State
	errMsg string
	tools  []*tool
	start  float64

	noise   distuv.Normal
	dropout distuv.Bernoulli

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ tracking.Device = (*Device)(nil)

// New returns a virtual device in the Setup state with no tools.
func New(cfg Config) *Device {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Radius == 0 {
		cfg.Radius = DefaultRadius
	}
	if cfg.AngularSpeed == 0 {
		cfg.AngularSpeed = DefaultAngularSpeed
	}
	if cfg.Clock == nil {
		cfg.Clock = tracking.Now
	}
	cfg.DropoutRate = math.Min(math.Max(cfg.DropoutRate, 0), 1)

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	return &Device{
		cfg:     cfg,
		noise:   distuv.Normal{Mu: 0, Sigma: math.Max(cfg.Noise, 0), Src: src},
		dropout: distuv.Bernoulli{P: cfg.DropoutRate, Src: src},
	}
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

func (d *Device) fail(format string, args ...any) bool {
	d.errMsg = fmt.Sprintf(format, args...)
	return false
}

// AddTool appends a tool. Tools can only be added before the connection
// is opened.
func (d *Device) AddTool(name string) (*tracking.InternalTool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != tracking.Setup {
		return nil, fmt.Errorf("virtual: cannot add tool %q in state %s", name, d.state)
	}
	n := len(d.tools)
	t := &tool{
		InternalTool: tracking.NewInternalTool(name),
		id:           uuid.New(),
		// Stack the circles 50mm apart so paths never cross.
		centre: r3.Vec{Z: 50 * float64(n)},
		phase:  float64(n) * math.Pi / 3,
	}
	d.tools = append(d.tools, t)
	return t.InternalTool, nil
}

// ToolIdentifier returns the unique identifier assigned to tool i.
func (d *Device) ToolIdentifier(i int) (uuid.UUID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.tools) {
		return uuid.Nil, false
	}
	return d.tools[i].id, true
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
	return d.tools[i].InternalTool
}

func (d *Device) OpenConnection() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != tracking.Setup {
		return d.fail("cannot open connection in state %s", d.state)
	}
	if len(d.tools) == 0 {
		return d.fail("no tools added")
	}
	d.state = tracking.Ready
	d.errMsg = ""
	monitoring.Logf("virtual: %s connected with %d tools", d.cfg.Model, len(d.tools))
	return true
}

func (d *Device) StartTracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != tracking.Ready {
		return d.fail("cannot start tracking in state %s", d.state)
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.start = d.cfg.Clock()
	d.sampleLocked(d.start)
	d.wg.Add(1)
	go d.loop(ctx)
	d.state = tracking.Tracking
	d.errMsg = ""
	return true
}

func (d *Device) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			if ctx.Err() == nil {
				d.sampleLocked(d.cfg.Clock())
			}
			d.mu.Unlock()
		}
	}
}

// sampleLocked writes one reading for every tool at time now.
func (d *Device) sampleLocked(now float64) {
	elapsed := (now - d.start) / 1000
	for _, t := range d.tools {
		if !t.IsEnabled() {
			continue
		}
		if d.cfg.DropoutRate > 0 && d.dropout.Rand() == 1 {
			t.Invalidate()
			continue
		}
		angle := t.phase + d.cfg.AngularSpeed*elapsed
		spin := r3.NewRotation(angle, r3.Vec{Z: 1})
		pos := r3.Add(t.centre, spin.Rotate(r3.Vec{X: d.cfg.Radius}))
		if d.cfg.Noise > 0 {
			pos = r3.Add(pos, r3.Vec{X: d.noise.Rand(), Y: d.noise.Rand(), Z: d.noise.Rand()})
		}
		t.Update(tracking.Reading{
			Position:      pos,
			Orientation:   quat.Number(spin),
			TrackingError: d.cfg.Noise,
			Valid:         true,
			Timestamp:     now,
		})
	}
}

// StopTracking returns once the sampling loop has exited, including when
// another caller is the one stopping it.
func (d *Device) StopTracking() bool {
	d.mu.Lock()
	switch d.state {
	case tracking.Setup:
		defer d.mu.Unlock()
		return d.fail("cannot stop tracking in state %s", d.state)
	case tracking.Tracking:
		d.cancel()
		d.cancel = nil
		d.state = tracking.Ready
		d.errMsg = ""
	}
	d.mu.Unlock()
	d.wg.Wait()
	return true
}

func (d *Device) CloseConnection() bool {
	if d.State() == tracking.Tracking {
		d.StopTracking()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == tracking.Setup {
		return true
	}
	d.invalidateAllLocked()
	d.state = tracking.Setup
	d.errMsg = ""
	monitoring.Logf("virtual: %s disconnected", d.cfg.Model)
	return true
}

// InvalidateAll marks every tool's current reading invalid.
func (d *Device) InvalidateAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidateAllLocked()
}

func (d *Device) invalidateAllLocked() {
	for _, t := range d.tools {
		t.Invalidate()
	}
}
