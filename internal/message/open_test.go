package message

import (
	"bytes"
	"testing"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

func TestOpenEncodeDecodeRoundTrip(t *testing.T) {
	offer := Offer{
		Families:     []bgp.Family{bgp.IPv4Unicast, {AFI: bgp.AFIIPv6, SAFI: bgp.SAFIUnicast}},
		RouteRefresh: true,
	}
	open := NewOpen(65001, bgp.Identifier(0xC0000201), 180, offer)

	decoded, err := DecodeOpen(open.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.EffectiveAS() != 65001 || decoded.HoldTime != 180 || decoded.Identifier != 0xC0000201 {
		t.Fatalf("got %+v, want AS=65001 hold=180 id=0xC0000201", decoded)
	}
	if !decoded.Offer.RouteRefresh || len(decoded.Offer.Families) != 2 {
		t.Fatalf("got offer %+v, want route-refresh and 2 families", decoded.Offer)
	}
}

func TestOpenUsesASTransAndASN4CapabilityForWideAS(t *testing.T) {
	open := NewOpen(400000, bgp.Identifier(1), 90, Offer{})
	if open.MyAS != uint16(bgp.AS4Trans) {
		t.Fatalf("got MyAS=%d, want AS_TRANS (%d)", open.MyAS, bgp.AS4Trans)
	}
	decoded, err := DecodeOpen(open.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.EffectiveAS() != 400000 {
		t.Fatalf("got EffectiveAS=%d, want 400000 (from the ASN4 capability)", decoded.EffectiveAS())
	}
}

func TestOpenBytesRoundTripsExactly(t *testing.T) {
	open := NewOpen(65001, bgp.Identifier(1), 90, Offer{RouteRefresh: true})
	encoded := open.Bytes()
	decoded, err := DecodeOpen(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), encoded) {
		t.Fatalf("re-encoding a decoded OPEN changed the bytes:\ngot  %x\nwant %x", decoded.Bytes(), encoded)
	}
}

func TestDecodeOpenRejectsShortBody(t *testing.T) {
	_, err := DecodeOpen(make([]byte, 5))
	assertNotify(t, err, NotifyMessageHeader, SubHeaderBadMessageLength)
}

func TestOpenValidateRejectsWrongVersion(t *testing.T) {
	o := Open{Version: 3, Identifier: 1, HoldTime: 90}
	err := o.Validate(0, 0, false)
	assertNotify(t, err, NotifyOpen, SubOpenUnsupportedVersion)
}

func TestOpenValidateRejectsUnexpectedPeerAS(t *testing.T) {
	o := Open{Version: 4, Identifier: 1, HoldTime: 90, MyAS: 100}
	err := o.Validate(200, 0, false)
	assertNotify(t, err, NotifyOpen, SubOpenBadPeerAS)
}

func TestOpenValidateRejectsTinyHoldTime(t *testing.T) {
	o := Open{Version: 4, Identifier: 1, HoldTime: 2}
	err := o.Validate(0, 0, false)
	assertNotify(t, err, NotifyOpen, SubOpenUnacceptableHold)
}

func TestOpenValidateRejectsZeroIdentifier(t *testing.T) {
	o := Open{Version: 4, Identifier: 0, HoldTime: 90}
	err := o.Validate(0, 0, false)
	assertNotify(t, err, NotifyOpen, SubOpenBadBGPIdentifier)
}

func TestOpenValidateRejectsIBGPIdentifierCollision(t *testing.T) {
	o := Open{Version: 4, Identifier: 42, HoldTime: 90}
	err := o.Validate(0, 42, true)
	assertNotify(t, err, NotifyOpen, SubOpenBadBGPIdentifier)
}

func TestOpenValidateAcceptsWellFormedOpen(t *testing.T) {
	o := Open{Version: 4, Identifier: 42, HoldTime: 90, MyAS: 100}
	if err := o.Validate(100, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
