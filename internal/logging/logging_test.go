package logging

import "testing"

func TestNewBuildsAtRequestedLevel(t *testing.T) {
	log, err := New("debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !log.Core().Enabled(-1) { // zapcore.DebugLevel
		t.Fatal("expected debug level to be enabled")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	log, err := New("nonsense")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Core().Enabled(-1) { // zapcore.DebugLevel should be disabled
		t.Fatal("expected debug level disabled at default info level")
	}
}
