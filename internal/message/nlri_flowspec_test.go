package message

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// flowspecRedirectFixture is a complete UPDATE message (header included)
// announcing a Flow-Spec rule over MP_REACH_NLRI (AFI=IPv4, SAFI=133):
// match destination prefix 203.0.113.0/24, redirect via an extended
// community (AS 65000, value 100). No base NLRI/NEXT_HOP is carried —
// Flow-Spec routes travel entirely inside MP_REACH_NLRI (RFC 8955 §4,
// RFC 4760 §3).
const flowspecRedirectFixture = "ffffffffffffffffffffffffffffffff" +
	"003402" + // header: length=52, type=UPDATE
	"0000" + // withdrawn routes length
	"001d" + // total path attribute length = 29
	"40010100" + // ORIGIN: flags=0x40 len=1 IGP
	"800e0b0001850000050118cb0071" + // MP_REACH_NLRI: AFI=1 SAFI=133(FlowSpec), NLRI=(dest-prefix 203.0.113.0/24)
	"c010080008fde800000064" // EXTENDED_COMMUNITIES: type=0x00 subtype=0x08(redirect) AS=65000 value=100

func TestDecodeFlowspecRedirectFixture(t *testing.T) {
	frame := decodeFixture(t, flowspecRedirectFixture)

	typ, body, err := DecodeMessage(frame, Negotiated{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != TypeUpdate {
		t.Fatalf("got type %v, want UPDATE", typ)
	}
	u := body.(Update)

	mpAttr, ok := u.Attributes.Get(AttrMPReachNLRI)
	if !ok {
		t.Fatal("expected an MP_REACH_NLRI attribute")
	}
	mp := mpAttr.(MPReachNLRI)
	wantFam := bgp.Family{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIFlowSpec}
	if mp.Family != wantFam {
		t.Fatalf("got family %v, want %v", mp.Family, wantFam)
	}
	if len(mp.NLRI) != 1 {
		t.Fatalf("got %d NLRI entries, want 1", len(mp.NLRI))
	}
	fs, ok := mp.NLRI[0].(FlowSpec)
	if !ok {
		t.Fatalf("got NLRI type %T, want FlowSpec", mp.NLRI[0])
	}
	if len(fs.Components) != 1 || fs.Components[0].Type != FlowComponentDestPrefix {
		t.Fatalf("got components %+v, want one dest-prefix component", fs.Components)
	}
	wantPrefixBytes := []byte{0x18, 0xcb, 0x00, 0x71} // len=24, 203.0.113
	if !bytes.Equal(fs.Components[0].Value, wantPrefixBytes) {
		t.Fatalf("got dest-prefix component bytes %x, want %x", fs.Components[0].Value, wantPrefixBytes)
	}

	extAttr, ok := u.Attributes.Get(AttrExtendedCommunities)
	if !ok {
		t.Fatal("expected an EXTENDED_COMMUNITIES attribute")
	}
	ext := extAttr.(ExtendedCommunities)
	if len(ext.Values) != 1 {
		t.Fatalf("got %d extended communities, want 1", len(ext.Values))
	}
	redirect := ext.Values[0]
	if redirect.Type != ExtCommTransitiveTwoOctetAS || redirect.Subtype != ExtCommSubFlowspecRedirect {
		t.Fatalf("got type=%d subtype=%d, want type=%d subtype=%d",
			redirect.Type, redirect.Subtype, ExtCommTransitiveTwoOctetAS, ExtCommSubFlowspecRedirect)
	}
	wantValue := [6]byte{0xfd, 0xe8, 0x00, 0x00, 0x00, 0x64} // AS 65000, value 100
	if redirect.Value != wantValue {
		t.Fatalf("got redirect value %x, want %x", redirect.Value, wantValue)
	}
}

func TestFlowspecRedirectFixtureRoundTrips(t *testing.T) {
	frame := decodeFixture(t, flowspecRedirectFixture)
	_, body, err := DecodeMessage(frame, Negotiated{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reencoded := EncodeMessage(TypeUpdate, body.(Update))
	if !bytes.Equal(reencoded, frame) {
		t.Fatalf("re-encoding the decoded Flow-Spec UPDATE changed the bytes:\ngot  %x\nwant %x", reencoded, frame)
	}
}

func TestFlowSpecEncodeUsesTwoOctetLengthPastThreshold(t *testing.T) {
	// A component value long enough to push the NLRI body to or past
	// 0xF0 octets must switch to the two-octet length form (RFC 8955 §4.1).
	big := make([]byte, 0xF0-1) // +1 type octet = exactly 0xF0 octets of body
	fs := FlowSpec{AFI: bgp.AFIIPv4, SAFI: bgp.SAFIFlowSpec, Components: []FlowComponent{{Type: FlowComponentIPProtocol, Value: big}}}
	encoded := fs.Encode()
	if encoded[0]>>4 != 0xF {
		t.Fatalf("got first length octet %x, want the two-octet form's high nibble 0xF", encoded[0])
	}
}
