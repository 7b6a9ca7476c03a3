package message

import (
	"bytes"
	"testing"
)

func TestAttributesEncodeDecodeRoundTrip(t *testing.T) {
	attrs := Attributes{
		LocalPref{Value: 200},
		Origin{Code: OriginIGP},
		NextHop{IP: []byte{192, 0, 2, 1}},
	}
	encoded := attrs.Encode()
	decoded, err := DecodeAttributes(encoded, Negotiated{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("got %d attributes, want 3", len(decoded))
	}
	// Encode always emits ascending code order regardless of input order.
	if decoded[0].Code() != AttrOrigin || decoded[1].Code() != AttrNextHop || decoded[2].Code() != AttrLocalPref {
		t.Fatalf("got codes %d,%d,%d, want ascending 1,3,5", decoded[0].Code(), decoded[1].Code(), decoded[2].Code())
	}
	if !bytes.Equal(decoded.Encode(), encoded) {
		t.Fatalf("re-encoding a decoded Attributes list changed the bytes")
	}
}

func TestDecodeAttributesRejectsFlagMismatch(t *testing.T) {
	// ORIGIN is well-known transitive (flags 0x40); 0xC0 wrongly marks it optional too.
	b := []byte{0xC0, byte(AttrOrigin), 0x01, 0x00}
	_, err := DecodeAttributes(b, Negotiated{})
	assertNotify(t, err, NotifyUpdate, SubUpdateAttributeFlags)
}

func TestDecodeAttributesRejectsTruncatedLength(t *testing.T) {
	b := []byte{0x40, byte(AttrOrigin), 0x05, 0x00} // claims 5 value octets, provides 1
	_, err := DecodeAttributes(b, Negotiated{})
	assertNotify(t, err, NotifyUpdate, SubUpdateAttributeLength)
}

func TestDecodeAttributesPreservesUnknownAttributeVerbatim(t *testing.T) {
	b := []byte{0xC0, 99, 0x03, 1, 2, 3}
	decoded, err := DecodeAttributes(b, Negotiated{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d attributes, want 1", len(decoded))
	}
	g, ok := decoded[0].(Generic)
	if !ok {
		t.Fatalf("got %T, want Generic", decoded[0])
	}
	if g.Code() != 99 || !bytes.Equal(g.Value(), []byte{1, 2, 3}) {
		t.Fatalf("got %+v, want code=99 value=[1 2 3]", g)
	}
	if !bytes.Equal(decoded.Encode(), b) {
		t.Fatalf("re-encoding an unknown attribute changed the bytes: got %x, want %x", decoded.Encode(), b)
	}
}

func TestOriginRejectsOutOfRangeCode(t *testing.T) {
	_, err := decodeOrigin([]byte{3})
	assertNotify(t, err, NotifyUpdate, SubUpdateInvalidOrigin)
}

func TestNextHopRejectsWrongLength(t *testing.T) {
	_, err := decodeNextHop([]byte{1, 2, 3})
	assertNotify(t, err, NotifyUpdate, SubUpdateInvalidNextHop)
}

func TestAttributesFingerprintIgnoresOrder(t *testing.T) {
	a := Attributes{Origin{Code: OriginIGP}, LocalPref{Value: 100}}
	b := Attributes{LocalPref{Value: 100}, Origin{Code: OriginIGP}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("expected Fingerprint to be independent of input attribute order")
	}
}
