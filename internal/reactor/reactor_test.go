package reactor

import (
	"testing"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Global: config.GlobalConfig{
			RouterID:   "192.0.2.1",
			HTTPListen: "127.0.0.1:0",
		},
		Peers: map[string]config.PeerConfig{
			"r1": {
				LocalAddress: "192.0.2.1",
				LocalAS:      65001,
				PeerAddress:  "192.0.2.2",
				PeerAS:       65002,
			},
		},
	}
}

func TestNewBuildsOneSessionPerPeer(t *testing.T) {
	r, err := New(testConfig(), zap.NewNop(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(r.sessions))
	}
	if _, ok := r.sessions["r1"]; !ok {
		t.Fatal("expected session keyed by neighbor name r1")
	}
}

func TestAllEstablishedFalseBeforeSessionsConnect(t *testing.T) {
	r, err := New(testConfig(), zap.NewNop(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.AllEstablished() {
		t.Fatal("expected AllEstablished to be false before any session runs")
	}
}

func TestAllEstablishedTrueWithNoPeers(t *testing.T) {
	cfg := testConfig()
	cfg.Peers = nil
	r, err := New(cfg, zap.NewNop(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.AllEstablished() {
		t.Fatal("expected AllEstablished to be vacuously true with no peers")
	}
}

func TestNewRejectsBadPeerAddress(t *testing.T) {
	cfg := testConfig()
	cfg.Peers["r1"] = config.PeerConfig{PeerAddress: "not-an-ip"}
	if _, err := New(cfg, zap.NewNop(), ""); err == nil {
		t.Fatal("expected error for invalid peer address")
	}
}

func TestParseFamiliesAlwaysIncludesIPv4Unicast(t *testing.T) {
	families := parseFamilies(nil)
	if len(families) != 1 || families[0] != bgp.IPv4Unicast {
		t.Fatalf("expected only ipv4 unicast by default, got %v", families)
	}
}

func TestParseFamiliesAddsConfiguredOnes(t *testing.T) {
	families := parseFamilies([]string{"ipv6 unicast", "bogus"})
	if len(families) != 2 {
		t.Fatalf("expected 2 families, got %v", families)
	}
}

func TestAsn4OfferOmittedForTwoOctetAS(t *testing.T) {
	if asn4Offer(65001) != 0 {
		t.Fatal("expected no ASN4 offer for a two-octet AS")
	}
	if asn4Offer(400000) != bgp.ASN(400000) {
		t.Fatal("expected ASN4 offer for a four-octet AS")
	}
}
