package api

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func sampleEvent() Event {
	return Event{
		Time:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		LocalAddr: "192.0.2.1",
		PeerAddr:  "192.0.2.2",
		LocalAS:   65001,
		PeerAS:    65002,
		RouterID:  "192.0.2.1",
		Direction: DirectionReceive,
		Kind:      KindUpdate,
		Fields:    map[string]any{"prefix": "10.0.0.0/24"},
	}
}

func TestTextEncoderIncludesCoreFields(t *testing.T) {
	line := string(TextEncoder{}.Encode(sampleEvent()))
	for _, want := range []string{"neighbor 192.0.2.2", "local-ip 192.0.2.1", "peer-as 65002", "receive update", "prefix 10.0.0.0/24"} {
		if !strings.Contains(line, want) {
			t.Errorf("text encoding missing %q in %q", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("expected trailing newline")
	}
}

func TestTextEncoderIncludesRawWhenPresent(t *testing.T) {
	e := sampleEvent()
	e.Raw = []byte{0xff, 0x00}
	line := string(TextEncoder{}.Encode(e))
	if !strings.Contains(line, "raw ff00") {
		t.Errorf("expected hex raw in %q", line)
	}
}

func TestJSONEncoderRoundTrips(t *testing.T) {
	line := JSONEncoder{}.Encode(sampleEvent())
	var doc map[string]any
	if err := json.Unmarshal(line, &doc); err != nil {
		t.Fatalf("invalid json: %v, line=%s", err, line)
	}
	if doc["peer_addr"] != "192.0.2.2" {
		t.Errorf("peer_addr = %v", doc["peer_addr"])
	}
	if doc["direction"] != string(DirectionReceive) {
		t.Errorf("direction = %v", doc["direction"])
	}
}

func TestEncoderForDefaultsToText(t *testing.T) {
	if _, ok := EncoderFor("").(TextEncoder); !ok {
		t.Fatal("expected TextEncoder default")
	}
	if _, ok := EncoderFor("json").(JSONEncoder); !ok {
		t.Fatal("expected JSONEncoder for \"json\"")
	}
}

func TestSubscriptionWants(t *testing.T) {
	s := NewSubscription([]string{"update", "notification"}, []string{"update"})
	if !s.Wants(DirectionReceive, KindUpdate) {
		t.Error("expected receive update to be wanted")
	}
	if s.Wants(DirectionReceive, KindKeepalive) {
		t.Error("did not expect receive keepalive to be wanted")
	}
	if s.Wants(DirectionSend, KindNotification) {
		t.Error("did not expect send notification to be wanted")
	}
}
