package tracking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestState(t *testing.T) {
	tests := []struct {
		state     State
		name      string
		connected bool
	}{
		{Setup, "setup", false},
		{Ready, "ready", true},
		{Tracking, "tracking", true},
		{State(42), "unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.state.String())
			assert.Equal(t, tt.connected, tt.state.Connected())
		})
	}
}

func TestInternalTool_Defaults(t *testing.T) {
	tool := NewInternalTool("probe")

	assert.Equal(t, "probe", tool.Name())
	assert.True(t, tool.IsEnabled())
	assert.False(t, tool.IsDataValid())
	assert.Equal(t, quat.Number{Real: 1}, tool.Orientation())
	assert.Zero(t, tool.Timestamp())
}

func TestInternalTool_UpdateAndInvalidate(t *testing.T) {
	tool := NewInternalTool("probe")
	tool.Update(Reading{
		Position:      r3.Vec{X: 1, Y: 2, Z: 3},
		Orientation:   quat.Number{Real: 1},
		TrackingError: 0.3,
		Valid:         true,
		Timestamp:     55,
	})

	assert.True(t, tool.IsDataValid())
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, tool.Position())
	assert.Equal(t, 0.3, tool.TrackingError())
	assert.Equal(t, 55.0, tool.Timestamp())

	tool.Invalidate()
	assert.False(t, tool.IsDataValid())
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, tool.Position(), "invalidate keeps pose")

	tool.SetEnabled(false)
	assert.False(t, tool.IsEnabled())

	tool.SetName("renamed")
	assert.Equal(t, "renamed", tool.Name())
}

func TestInternalTool_ConcurrentReadWrite(t *testing.T) {
	tool := NewInternalTool("probe")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tool.Update(Reading{Position: r3.Vec{X: float64(i)}, Valid: true})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = tool.Reading()
			_ = tool.Position()
		}
	}()
	wg.Wait()
	assert.Equal(t, 999.0, tool.Position().X)
}

type toolList struct {
	tools []Tool
}

func (l *toolList) OpenConnection() bool  { return true }
func (l *toolList) CloseConnection() bool { return true }
func (l *toolList) StartTracking() bool   { return true }
func (l *toolList) StopTracking() bool    { return true }
func (l *toolList) State() State          { return Setup }
func (l *toolList) ToolCount() int        { return len(l.tools) }
func (l *toolList) Model() string         { return "list" }
func (l *toolList) ErrorMessage() string  { return "" }
func (l *toolList) Tool(i int) Tool {
	if i < 0 || i >= len(l.tools) {
		return nil
	}
	return l.tools[i]
}

func TestToolByName(t *testing.T) {
	d := &toolList{tools: []Tool{NewInternalTool("a"), NewInternalTool("b")}}

	tool, ok := ToolByName(d, "b")
	require.True(t, ok)
	assert.Equal(t, "b", tool.Name())

	_, ok = ToolByName(d, "c")
	assert.False(t, ok)

	_, ok = ToolByName(nil, "a")
	assert.False(t, ok)
}

func TestNow_Monotonic(t *testing.T) {
	a := Now()
	b := Now()
	assert.GreaterOrEqual(t, b, a)
}
