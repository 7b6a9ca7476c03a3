package message

import (
	"encoding/binary"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// After a TCP connection is established, the first message sent by each
// side is an OPEN message. If the OPEN message is acceptable, a
// KEEPALIVE message confirming the OPEN is sent back.
type Open struct {
	Version    bgp.Version
	MyAS       uint16 // as it appears on the wire; AS_TRANS when ASN4 widened it
	HoldTime   uint16
	Identifier bgp.Identifier
	Offer      Offer
}

//       Optional Parameters Length:
//          This 1-octet unsigned integer indicates the total length of the
//          Optional Parameters field in octets.  If the value of this
//          field is zero, no Optional Parameters are present.
const maxOptParametersLength = 255

// NewOpen builds the local OPEN for a session given our real AS, our
// advertised offer, hold time, and identifier. It sets MyAS to AS_TRANS
// when our AS does not fit in 2 octets; the offer's ASN4 field must
// already carry our real AS whenever ASN4 is being advertised.
func NewOpen(localAS bgp.ASN, id bgp.Identifier, holdTime uint16, offer Offer) Open {
	myAS := uint16(localAS)
	if localAS > 0xffff {
		myAS = uint16(bgp.AS4Trans)
		offer.ASN4 = localAS
	}
	return Open{
		Version:    4,
		MyAS:       myAS,
		HoldTime:   holdTime,
		Identifier: id,
		Offer:      offer,
	}
}

// Bytes encodes the OPEN message body (without the 19-octet header).
func (o Open) Bytes() []byte {
	caps := o.Offer.Encode()
	var params []byte
	if len(caps) > 0 {
		params = encodeCapabilitiesParameter(caps)
	}

	body := make([]byte, 10, 10+len(params))
	body[0] = byte(o.Version)
	binary.BigEndian.PutUint16(body[1:3], o.MyAS)
	binary.BigEndian.PutUint16(body[3:5], o.HoldTime)
	binary.BigEndian.PutUint32(body[5:9], uint32(o.Identifier))
	body[9] = byte(len(params))
	body = append(body, params...)
	return body
}

// DecodeOpen parses an OPEN message body and extracts its capabilities.
func DecodeOpen(b []byte) (Open, error) {
	if len(b) < MinOpenMessageLength-HeaderLength {
		return Open{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	r := newReader(b)
	version, _ := r.byte()
	myAS, _ := r.uint16()
	hold, _ := r.uint16()
	id, _ := r.uint32()
	optLen, err := r.byte()
	if err != nil {
		return Open{}, err
	}
	optBytes, err := r.bytes(int(optLen))
	if err != nil {
		return Open{}, notify(NotifyOpen, SubOpenUnsupportedOptional)
	}
	caps, err := decodeOptionalParameters(optBytes)
	if err != nil {
		return Open{}, notify(NotifyOpen, SubOpenUnsupportedOptional)
	}
	return Open{
		Version:    bgp.Version(version),
		MyAS:       myAS,
		HoldTime:   hold,
		Identifier: bgp.Identifier(id),
		Offer:      ParseOffer(caps),
	}, nil
}

// EffectiveAS returns the peer's real AS, preferring the ASN4
// capability's 4-octet value over the wire-level 2-octet MyAS/AS_TRANS.
func (o Open) EffectiveAS() bgp.ASN {
	if o.Offer.ASN4 != 0 {
		return o.Offer.ASN4
	}
	return bgp.ASN(o.MyAS)
}

// 6.2.  OPEN Message Error Handling
//
// Validate checks a received OPEN against our expectations. localID/iBGP are
// only meaningful for the identifier-collision check on iBGP sessions.
func (o Open) Validate(expectedPeerAS bgp.ASN, localID bgp.Identifier, iBGP bool) error {
	if o.Version != 4 {
		return notify(NotifyOpen, SubOpenUnsupportedVersion, 0, 4)
	}
	if expectedPeerAS != 0 && o.EffectiveAS() != expectedPeerAS {
		return notify(NotifyOpen, SubOpenBadPeerAS)
	}
	if o.HoldTime != 0 && o.HoldTime < 3 {
		return notify(NotifyOpen, SubOpenUnacceptableHold)
	}
	if o.Identifier == 0 {
		return notify(NotifyOpen, SubOpenBadBGPIdentifier)
	}
	if iBGP && o.Identifier == localID {
		return notify(NotifyOpen, SubOpenBadBGPIdentifier)
	}
	return nil
}
