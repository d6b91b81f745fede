package monitoring

import (
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

func TestRecorder(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var r Recorder
	SetLogger(r.Logf)
	Logf("tool %s lost", "pointer")
	Logf("tool %s visible", "pointer")

	lines := r.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "tool pointer lost" {
		t.Errorf("lines[0] = %q", lines[0])
	}

	lines[0] = "mutated"
	if r.Lines()[0] != "tool pointer lost" {
		t.Error("Lines must return a copy")
	}
}
