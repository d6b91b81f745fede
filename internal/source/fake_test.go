package source

import (
	"github.com/banshee-data/tracking.source/internal/tracking"
)

// fakeDevice is a scriptable tracking.Device. Transitions follow the real
// state machine unless the op is listed in fail.
type fakeDevice struct {
	model string
	state tracking.State
	tools []*tracking.InternalTool
	fail  map[string]bool
	diag  string
	calls []string
}

func newFakeDevice(names ...string) *fakeDevice {
	d := &fakeDevice{model: "Fake", fail: map[string]bool{}}
	for _, n := range names {
		d.tools = append(d.tools, tracking.NewInternalTool(n))
	}
	return d
}

func (d *fakeDevice) transition(op string, from []tracking.State, to tracking.State) bool {
	d.calls = append(d.calls, op)
	if d.fail[op] {
		d.diag = op + " refused by fake"
		return false
	}
	for _, s := range from {
		if d.state == s {
			d.state = to
			return true
		}
	}
	d.diag = op + " invalid in state " + d.state.String()
	return false
}

func (d *fakeDevice) OpenConnection() bool {
	return d.transition("open", []tracking.State{tracking.Setup}, tracking.Ready)
}

func (d *fakeDevice) CloseConnection() bool {
	return d.transition("close", []tracking.State{tracking.Ready, tracking.Setup}, tracking.Setup)
}

func (d *fakeDevice) StartTracking() bool {
	return d.transition("start", []tracking.State{tracking.Ready}, tracking.Tracking)
}

func (d *fakeDevice) StopTracking() bool {
	return d.transition("stop", []tracking.State{tracking.Tracking, tracking.Ready}, tracking.Ready)
}

func (d *fakeDevice) State() tracking.State { return d.state }
func (d *fakeDevice) ToolCount() int        { return len(d.tools) }
func (d *fakeDevice) Model() string         { return d.model }
func (d *fakeDevice) ErrorMessage() string  { return d.diag }

func (d *fakeDevice) Tool(i int) tracking.Tool {
	if i < 0 || i >= len(d.tools) {
		return nil
	}
	return d.tools[i]
}

func (d *fakeDevice) addTool(name string) *tracking.InternalTool {
	t := tracking.NewInternalTool(name)
	d.tools = append(d.tools, t)
	return t
}
