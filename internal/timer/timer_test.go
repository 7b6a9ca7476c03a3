package timer

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	var ran bool
	f := func() {
		ran = true
	}
	ts := New(100*time.Millisecond, f)
	if !ts.Running() {
		t.Errorf("Expected timer to be running but it's not")
	}
	time.Sleep(200 * time.Millisecond)
	if !ran {
		t.Errorf("Timer did not call our function")
	}
}

func TestNewZeroNeverFires(t *testing.T) {
	var ran bool
	ts := New(0, func() { ran = true })
	if ts.Running() {
		t.Errorf("Expected zero-duration timer to start stopped")
	}
	time.Sleep(100 * time.Millisecond)
	if ran {
		t.Errorf("Zero-duration timer fired but should never fire")
	}
}

func TestReset(t *testing.T) {
	var ran bool
	f := func() {
		ran = true
	}
	ts := New(200*time.Millisecond, f)
	time.Sleep(100 * time.Millisecond)
	ts.Reset(200 * time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	if ran {
		t.Errorf("Timer called our function but it shouldn't have")
	}
	time.Sleep(150 * time.Millisecond)
	if !ran {
		t.Errorf("Timer did not call our function but should have")
	}
}

func TestResetZeroStops(t *testing.T) {
	var ran bool
	ts := New(100*time.Millisecond, func() { ran = true })
	ts.Reset(0)
	if ts.Running() {
		t.Errorf("Expected timer reset to zero to stop running")
	}
	time.Sleep(150 * time.Millisecond)
	if ran {
		t.Errorf("Timer fired after being reset to zero")
	}
}

func TestStop(t *testing.T) {
	var ran bool
	f := func() {
		ran = true
	}
	ts := New(100*time.Millisecond, f)
	ts.Stop()
	if ts.Running() {
		t.Errorf("Expected timer to be stopped but it's not")
	}
	time.Sleep(200 * time.Millisecond)
	if ran {
		t.Errorf("Timer called our function but it shouldn't have")
	}
}

func TestRunning(t *testing.T) {
	f := func() {}
	ts := New(1*time.Second, f)
	if !ts.Running() {
		t.Errorf("Expected timer to be running but it's not")
	}
	ts.Stop()
	if ts.Running() {
		t.Errorf("Expected timer to be stopped but it's not")
	}
}
