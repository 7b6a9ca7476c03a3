package message

import (
	"sort"
)

// Flags is the one-octet attribute flags field: optional, transitive,
// partial, extended-length (RFC 4271 §4.3).
type Flags byte

const (
	FlagOptional       Flags = 1 << 7
	FlagTransitive     Flags = 1 << 6
	FlagPartial        Flags = 1 << 5
	FlagExtendedLength Flags = 1 << 4
)

func (f Flags) Optional() bool       { return f&FlagOptional != 0 }
func (f Flags) Transitive() bool     { return f&FlagTransitive != 0 }
func (f Flags) Partial() bool        { return f&FlagPartial != 0 }
func (f Flags) ExtendedLength() bool { return f&FlagExtendedLength != 0 }

// AttrCode is the one-octet path attribute type code.
type AttrCode byte

const (
	AttrOrigin              AttrCode = 1
	AttrASPath              AttrCode = 2
	AttrNextHop             AttrCode = 3
	AttrMED                 AttrCode = 4
	AttrLocalPref           AttrCode = 5
	AttrAtomicAggregate     AttrCode = 6
	AttrAggregator          AttrCode = 7
	AttrCommunity           AttrCode = 8
	AttrOriginatorID        AttrCode = 9
	AttrClusterList         AttrCode = 10
	AttrMPReachNLRI         AttrCode = 14
	AttrMPUnreachNLRI       AttrCode = 15
	AttrExtendedCommunities AttrCode = 16
	AttrAS4Path             AttrCode = 17
	AttrAS4Aggregator       AttrCode = 18
	AttrAIGP                AttrCode = 26
	AttrLinkState           AttrCode = 29
)

// wellKnownFlags are the mandatory flag bits for attributes whose
// transitivity/optionality RFC 4271 fixes rather than leaving to the
// encoder; attributes not listed here carry whatever flags their
// constructor sets (generally optional+transitive for the BGP-LS and
// extended-community families).
var wellKnownFlags = map[AttrCode]Flags{
	AttrOrigin:          FlagTransitive,
	AttrASPath:           FlagTransitive,
	AttrNextHop:          FlagTransitive,
	AttrMED:              FlagOptional,
	AttrLocalPref:        FlagTransitive,
	AttrAtomicAggregate:  FlagTransitive,
	AttrAggregator:       FlagOptional | FlagTransitive,
	AttrCommunity:        FlagOptional | FlagTransitive,
	AttrOriginatorID:     FlagOptional,
	AttrClusterList:      FlagOptional,
	AttrMPReachNLRI:      FlagOptional,
	AttrMPUnreachNLRI:    FlagOptional,
	AttrExtendedCommunities: FlagOptional | FlagTransitive,
	AttrAS4Path:          FlagOptional | FlagTransitive,
	AttrAS4Aggregator:    FlagOptional | FlagTransitive,
	AttrAIGP:             FlagOptional,
	AttrLinkState:        FlagOptional,
}

// Attribute is a single decoded path attribute. Value encodes just the
// attribute's value field; the container adds flags/code/length when
// serializing a full Attributes list.
type Attribute interface {
	Code() AttrCode
	AttrFlags() Flags
	Value() []byte
}

// Generic preserves an attribute this codec does not have a concrete
// variant for, bit-for-bit including its original flag octet, so an
// unknown attribute round-trips unchanged.
type Generic struct {
	code  AttrCode
	flags Flags
	value []byte
}

func (g Generic) Code() AttrCode   { return g.code }
func (g Generic) AttrFlags() Flags { return g.flags }
func (g Generic) Value() []byte    { return g.value }

// Attributes is an ordered set of path attributes, keyed by code: at
// most one attribute of a given code may appear (RFC 4271 §5).
type Attributes []Attribute

// Get returns the first attribute with the given code, if present.
func (a Attributes) Get(code AttrCode) (Attribute, bool) {
	for _, attr := range a {
		if attr.Code() == code {
			return attr, true
		}
	}
	return nil, false
}

// Encode serializes the attribute list in ascending code order (the
// canonical order this codec always emits on the wire.
func (a Attributes) Encode() []byte {
	sorted := make(Attributes, len(a))
	copy(sorted, a)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code() < sorted[j].Code() })

	var out []byte
	for _, attr := range sorted {
		out = append(out, encodeAttribute(attr)...)
	}
	return out
}

func encodeAttribute(attr Attribute) []byte {
	flags := attr.AttrFlags()
	value := attr.Value()
	if len(value) > 255 {
		flags |= FlagExtendedLength
	}
	var lenBytes []byte
	if flags.ExtendedLength() {
		lenBytes = []byte{byte(len(value) >> 8), byte(len(value))}
	} else {
		lenBytes = []byte{byte(len(value))}
	}
	out := make([]byte, 0, 2+len(lenBytes)+len(value))
	out = append(out, byte(flags), byte(attr.Code()))
	out = append(out, lenBytes...)
	out = append(out, value...)
	return out
}

// DecodeAttributes parses the UPDATE attribute block into an Attributes
// list. n supplies the per-session decode parameters: ASN4 controls how
// AttrASPath/AttrAggregator decode their AS fields (2 vs 4 octets), and
// AddPathReceive resolves whether a given family's MP_REACH/UNREACH
// NLRI carries a leading path-id.
func DecodeAttributes(b []byte, n Negotiated) (Attributes, error) {
	var attrs Attributes
	r := newReader(b)
	for r.remaining() > 0 {
		flagByte, err := r.byte()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateMalformedAttributeList)
		}
		flags := Flags(flagByte)
		codeByte, err := r.byte()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateMalformedAttributeList)
		}
		code := AttrCode(codeByte)

		var length int
		if flags.ExtendedLength() {
			l, err := r.uint16()
			if err != nil {
				return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
			}
			length = int(l)
		} else {
			l, err := r.byte()
			if err != nil {
				return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
			}
			length = int(l)
		}
		value, err := r.bytes(length)
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
		}

		if want, ok := wellKnownFlags[code]; ok {
			// Only the transitive/optional bits are RFC-fixed; partial
			// and extended-length are legitimately under the sender's
			// control, so mask them out of the comparison.
			const mask = FlagOptional | FlagTransitive
			if flags&mask != want&mask {
				return nil, notify(NotifyUpdate, SubUpdateAttributeFlags, byte(flags), byte(code))
			}
		}

		attr, err := decodeAttributeValue(code, flags, value, n)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func decodeAttributeValue(code AttrCode, flags Flags, value []byte, n Negotiated) (Attribute, error) {
	switch code {
	case AttrOrigin:
		return decodeOrigin(value)
	case AttrASPath:
		return decodeASPath(value, n.ASN4)
	case AttrNextHop:
		return decodeNextHop(value)
	case AttrMED:
		return decodeMED(value)
	case AttrLocalPref:
		return decodeLocalPref(value)
	case AttrAtomicAggregate:
		return decodeAtomicAggregate(value)
	case AttrAggregator:
		return decodeAggregator(value, n.ASN4)
	case AttrAS4Aggregator:
		return decodeAS4Aggregator(value)
	case AttrCommunity:
		return decodeCommunity(value)
	case AttrExtendedCommunities:
		return decodeExtendedCommunities(value)
	case AttrOriginatorID:
		return decodeOriginatorID(value)
	case AttrClusterList:
		return decodeClusterList(value)
	case AttrAS4Path:
		return decodeAS4Path(value)
	case AttrAIGP:
		return decodeAIGP(value)
	case AttrMPReachNLRI:
		return decodeMPReach(value, n)
	case AttrMPUnreachNLRI:
		return decodeMPUnreach(value, n)
	case AttrLinkState:
		return decodeLinkState(value)
	default:
		return Generic{code: code, flags: flags, value: append([]byte{}, value...)}, nil
	}
}

func fingerprintOf(a Attributes) string {
	// identity fingerprint for RIB dedup: the encoded, sorted attribute
	// block is byte-identical iff the attribute sets are identical.
	return string(a.Encode())
}

// Fingerprint returns an identity key suitable for RIB last-sent
// comparison and for grouping changes into one UPDATE.
func (a Attributes) Fingerprint() string { return fingerprintOf(a) }
