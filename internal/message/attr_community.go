package message

import "encoding/binary"

// Community is a single 32-bit value of the optional transitive
// COMMUNITY attribute (RFC 1997). The high 16 bits are conventionally
// an AS number and the low 16 a locally-significant tag, but this codec
// treats the whole thing as an opaque uint32.
type Community uint32

// Well-known communities (RFC 1997 §4).
const (
	CommunityNoExport        Community = 0xFFFFFF01
	CommunityNoAdvertise     Community = 0xFFFFFF02
	CommunityNoExportSubconf Community = 0xFFFFFF03
)

// Communities is the COMMUNITY path attribute: an unordered set of
// 32-bit community values.
type Communities struct{ Values []Community }

func (c Communities) Code() AttrCode   { return AttrCommunity }
func (c Communities) AttrFlags() Flags { return wellKnownFlags[AttrCommunity] }
func (c Communities) Value() []byte {
	v := make([]byte, 4*len(c.Values))
	for i, val := range c.Values {
		binary.BigEndian.PutUint32(v[i*4:i*4+4], uint32(val))
	}
	return v
}

func decodeCommunity(b []byte) (Attribute, error) {
	if len(b)%4 != 0 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	var vals []Community
	for i := 0; i < len(b); i += 4 {
		vals = append(vals, Community(binary.BigEndian.Uint32(b[i:i+4])))
	}
	return Communities{Values: vals}, nil
}

// ExtCommunityType is the one-octet type field of an extended community
// (RFC 4360). The high bit (0x80) is the IANA-authority bit and bit
// 0x40 marks a non-transitive type (the 0x4x constants below), but
// callers rarely need more than the raw
// type/subtype pair to dispatch on, so this codec keeps both as opaque
// octets rather than expanding every subtype into its own Go type.
type ExtCommunityType byte

const (
	ExtCommTransitiveTwoOctetAS   ExtCommunityType = 0x00
	ExtCommTransitiveIPv4         ExtCommunityType = 0x01
	ExtCommTransitiveFourOctetAS  ExtCommunityType = 0x02
	ExtCommTransitiveOpaque       ExtCommunityType = 0x03
	ExtCommNonTransitiveTwoOctetAS ExtCommunityType = 0x40
	ExtCommNonTransitiveOpaque     ExtCommunityType = 0x43
)

// Well-known extended community subtypes in wide use (RFC 4360 §4,
// draft-ietf-idr-flowspec-redirect, and common traffic-engineering
// deployments); not exhaustive, everything else decodes as the
// subtype byte with its raw 6-octet value preserved.
const (
	ExtCommSubRouteTarget       byte = 0x02
	ExtCommSubRouteOrigin       byte = 0x03
	ExtCommSubFlowspecRate      byte = 0x06
	ExtCommSubFlowspecAction    byte = 0x07
	ExtCommSubFlowspecRedirect  byte = 0x08
	ExtCommSubFlowspecMark      byte = 0x09
	ExtCommSubL2Info            byte = 0x0C
	ExtCommSubRedirectToIPNextHop byte = 0x0F
)

// ExtendedCommunity is one 8-octet entry of the EXTENDED_COMMUNITIES
// attribute. Type/Subtype select interpretation of Value (6 octets);
// this codec preserves Value verbatim rather than decoding every
// documented layout, since the RIB and wire protocol only need to
// compare and forward the 8 octets as a unit.
type ExtendedCommunity struct {
	Type    ExtCommunityType
	Subtype byte
	Value   [6]byte
}

func (e ExtendedCommunity) bytes() []byte {
	return []byte{byte(e.Type), e.Subtype, e.Value[0], e.Value[1], e.Value[2], e.Value[3], e.Value[4], e.Value[5]}
}

// ExtendedCommunities is the EXTENDED_COMMUNITIES path attribute
// (RFC 4360).
type ExtendedCommunities struct{ Values []ExtendedCommunity }

func (e ExtendedCommunities) Code() AttrCode   { return AttrExtendedCommunities }
func (e ExtendedCommunities) AttrFlags() Flags { return wellKnownFlags[AttrExtendedCommunities] }
func (e ExtendedCommunities) Value() []byte {
	var out []byte
	for _, val := range e.Values {
		out = append(out, val.bytes()...)
	}
	return out
}

func decodeExtendedCommunities(b []byte) (Attribute, error) {
	if len(b)%8 != 0 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	var vals []ExtendedCommunity
	for i := 0; i < len(b); i += 8 {
		ec := ExtendedCommunity{Type: ExtCommunityType(b[i]), Subtype: b[i+1]}
		copy(ec.Value[:], b[i+2:i+8])
		vals = append(vals, ec)
	}
	return ExtendedCommunities{Values: vals}, nil
}

// RouteTarget returns the 6-octet value of a route-target extended
// community interpreted as an IPv4-address:2-octet-number layout, the
// most common VPN route-target encoding; callers needing the 2-octet-AS
// or 4-octet-AS layouts read Value directly.
func (e ExtendedCommunity) RouteTarget() (uint32, uint16) {
	return binary.BigEndian.Uint32(e.Value[0:4]), binary.BigEndian.Uint16(e.Value[4:6])
}
