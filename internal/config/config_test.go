package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func validPeer() PeerConfig {
	return PeerConfig{
		LocalAddress:    "10.0.0.1",
		LocalAS:         65001,
		PeerAddress:     "10.0.0.2",
		PeerAS:          65002,
		HoldTimeSeconds: 90,
	}
}

func TestPeerValidate_Valid(t *testing.T) {
	if err := validPeer().validate(); err != nil {
		t.Fatalf("expected valid peer, got error: %v", err)
	}
}

func TestPeerValidate_BadAddress(t *testing.T) {
	p := validPeer()
	p.PeerAddress = "not-an-ip"
	if err := p.validate(); err == nil {
		t.Fatal("expected error for invalid peer_address")
	}
}

func TestPeerValidate_HoldTimeBelowMinimum(t *testing.T) {
	p := validPeer()
	p.HoldTimeSeconds = 2
	if err := p.validate(); err == nil {
		t.Fatal("expected error for hold_time below 3")
	}
}

func TestPeerValidate_HoldTimeZeroAllowed(t *testing.T) {
	p := validPeer()
	p.HoldTimeSeconds = 0
	if err := p.validate(); err != nil {
		t.Fatalf("expected hold_time 0 to be valid, got %v", err)
	}
}

func TestPeerValidate_TTLOutOfRange(t *testing.T) {
	p := validPeer()
	p.TTLSecurity = 300
	if err := p.validate(); err == nil {
		t.Fatal("expected error for ttl_security out of range")
	}
}

func TestPeerValidate_PassiveWithoutLocalAddressFailsClosed(t *testing.T) {
	p := validPeer()
	p.Passive = true
	p.LocalAddress = ""
	err := p.validate()
	if !errors.Is(err, ErrAmbiguousLocalAddress) {
		t.Fatalf("expected ErrAmbiguousLocalAddress, got %v", err)
	}
}

func TestPeerValidate_PassiveWithLocalAddressOK(t *testing.T) {
	p := validPeer()
	p.Passive = true
	if err := p.validate(); err != nil {
		t.Fatalf("expected passive peer with local_address to validate, got %v", err)
	}
}

func TestProcessValidate_ExecRequiresRun(t *testing.T) {
	p := ProcessConfig{}
	if err := p.validate(); err == nil {
		t.Fatal("expected error for exec transport with no run")
	}
}

func TestProcessValidate_KafkaRequiresBrokersAndTopic(t *testing.T) {
	p := ProcessConfig{Transport: "kafka"}
	if err := p.validate(); err == nil {
		t.Fatal("expected error for kafka transport missing brokers/topic")
	}
	p.KafkaBrokers = []string{"localhost:9092"}
	if err := p.validate(); err == nil {
		t.Fatal("expected error for kafka transport missing topic")
	}
	p.KafkaTopic = "bgp-events"
	if err := p.validate(); err != nil {
		t.Fatalf("expected valid kafka process config, got %v", err)
	}
}

func TestProcessValidate_UnknownTransport(t *testing.T) {
	p := ProcessConfig{Transport: "carrier-pigeon", Run: []string{"x"}}
	if err := p.validate(); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func writeMinimalYAML(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
global:
  router_id: "10.0.0.1"
neighbor:
  r1:
    local_address: "10.0.0.1"
    local_as: 65001
    peer_address: "10.0.0.2"
    peer_as: 65002
    hold_time: 90
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_EnvOverrideRouterID(t *testing.T) {
	p := writeMinimalYAML(t)
	t.Setenv("EXABGPD_GLOBAL__ROUTER_ID", "10.0.0.9")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Global.RouterID != "10.0.0.9" {
		t.Errorf("expected router_id from env, got %q", cfg.Global.RouterID)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	p := writeMinimalYAML(t)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Global.OpenWaitSeconds != 60 {
		t.Errorf("expected default openwait 60, got %d", cfg.Global.OpenWaitSeconds)
	}
	if cfg.Global.APIEncoder != "text" {
		t.Errorf("expected default api encoder text, got %q", cfg.Global.APIEncoder)
	}
}

func TestLoad_InvalidPeerFailsValidation(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	data := `
neighbor:
  r1:
    peer_address: "not-an-ip"
`
	if err := os.WriteFile(p, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil {
		t.Fatal("expected validation error for bad peer_address")
	}
}
