package message

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// OperationalType is the 2-octet operational message type (RFC 7854
// §4). This core implements the Advisory family (human-readable text
// exchanged out of band of routing state); other defined types decode
// into Operational with their raw Value preserved.
type OperationalType uint16

const (
	OperationalASM OperationalType = 0x0006 // Advisory diSplay Message
	OperationalADM OperationalType = 0x0007 // Advisory Demand Message
)

// MaxAdvisory bounds an Advisory message's UTF-8 text, per RFC 7854
// §4.2.
const MaxAdvisory = 2048

// Operational is a decoded OPERATIONAL message.
type Operational struct {
	Type   OperationalType
	Family bgp.Family
	Value  []byte
}

// Bytes encodes the OPERATIONAL message body.
func (o Operational) Bytes() []byte {
	out := make([]byte, 7)
	binary.BigEndian.PutUint16(out[0:2], uint16(o.Type))
	binary.BigEndian.PutUint16(out[2:4], uint16(o.Family.AFI))
	out[4] = byte(o.Family.SAFI)
	binary.BigEndian.PutUint16(out[5:7], uint16(len(o.Value)))
	return append(out, o.Value...)
}

// DecodeOperational parses an OPERATIONAL message body.
func DecodeOperational(b []byte) (Operational, error) {
	r := newReader(b)
	typ, err := r.uint16()
	if err != nil {
		return Operational{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	afi, err := r.uint16()
	if err != nil {
		return Operational{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	safi, err := r.byte()
	if err != nil {
		return Operational{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	vlen, err := r.uint16()
	if err != nil {
		return Operational{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	val, err := r.bytes(int(vlen))
	if err != nil {
		return Operational{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	return Operational{
		Type:   OperationalType(typ),
		Family: bgp.Family{AFI: bgp.AFI(afi), SAFI: bgp.SAFI(safi)},
		Value:  append([]byte{}, val...),
	}, nil
}

// NewAdvisory builds an ASM Advisory operational message carrying text,
// truncating to MaxAdvisory octets and ensuring the cut lands on a
// valid UTF-8 boundary.
func NewAdvisory(fam bgp.Family, text string) Operational {
	b := []byte(text)
	if len(b) > MaxAdvisory {
		b = b[:MaxAdvisory]
		for len(b) > 0 && !utf8.Valid(b) {
			b = b[:len(b)-1]
		}
	}
	return Operational{Type: OperationalASM, Family: fam, Value: b}
}

// Text returns an Advisory message's payload as a string; callers
// should check Type == OperationalASM/OperationalADM before relying on
// it being valid UTF-8 advisory text rather than an opaque TLV value.
func (o Operational) Text() string { return string(o.Value) }
