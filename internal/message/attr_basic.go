package message

import (
	"encoding/binary"
	"net"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// OriginCode is the well-known ORIGIN attribute's value.
type OriginCode byte

const (
	OriginIGP        OriginCode = 0
	OriginEGP        OriginCode = 1
	OriginIncomplete OriginCode = 2
)

// Origin is the mandatory well-known ORIGIN attribute.
type Origin struct{ Code OriginCode }

func (o Origin) Code() AttrCode   { return AttrOrigin }
func (o Origin) AttrFlags() Flags { return wellKnownFlags[AttrOrigin] }
func (o Origin) Value() []byte    { return []byte{byte(o.Code)} }

func decodeOrigin(b []byte) (Attribute, error) {
	if len(b) != 1 {
		return nil, notify(NotifyUpdate, SubUpdateInvalidOrigin)
	}
	if b[0] > byte(OriginIncomplete) {
		return nil, notify(NotifyUpdate, SubUpdateInvalidOrigin)
	}
	return Origin{Code: OriginCode(b[0])}, nil
}

// NextHop is the mandatory well-known NEXT_HOP attribute for IPv4
// unicast; other families carry their next hop inside MP_REACH_NLRI.
type NextHop struct{ IP net.IP }

func (n NextHop) Code() AttrCode   { return AttrNextHop }
func (n NextHop) AttrFlags() Flags { return wellKnownFlags[AttrNextHop] }
func (n NextHop) Value() []byte    { return n.IP.To4() }

func decodeNextHop(b []byte) (Attribute, error) {
	if len(b) != 4 {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNextHop)
	}
	return NextHop{IP: net.IP(append([]byte{}, b...))}, nil
}

// MED is the optional non-transitive MULTI_EXIT_DISC attribute.
type MED struct{ Value uint32 }

func (m MED) Code() AttrCode   { return AttrMED }
func (m MED) AttrFlags() Flags { return wellKnownFlags[AttrMED] | FlagOptional }
func (m MED) Value() []byte {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, m.Value)
	return v
}

func decodeMED(b []byte) (Attribute, error) {
	if len(b) != 4 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	return MED{Value: binary.BigEndian.Uint32(b)}, nil
}

// LocalPref is the well-known LOCAL_PREF attribute, sent only to iBGP
// peers (the fsm/rib layer, not the codec, enforces that restriction).
type LocalPref struct{ Value uint32 }

func (l LocalPref) Code() AttrCode   { return AttrLocalPref }
func (l LocalPref) AttrFlags() Flags { return wellKnownFlags[AttrLocalPref] }
func (l LocalPref) Value() []byte {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, l.Value)
	return v
}

func decodeLocalPref(b []byte) (Attribute, error) {
	if len(b) != 4 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	return LocalPref{Value: binary.BigEndian.Uint32(b)}, nil
}

// AtomicAggregate is the well-known, zero-length ATOMIC_AGGREGATE flag
// attribute.
type AtomicAggregate struct{}

func (AtomicAggregate) Code() AttrCode   { return AttrAtomicAggregate }
func (AtomicAggregate) AttrFlags() Flags { return wellKnownFlags[AttrAtomicAggregate] }
func (AtomicAggregate) Value() []byte    { return nil }

func decodeAtomicAggregate(b []byte) (Attribute, error) {
	if len(b) != 0 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	return AtomicAggregate{}, nil
}

// Aggregator carries the AS and router-id of the speaker that formed an
// aggregate route. ASN4 controls whether the AS field encodes as 2 or 4
// octets; a non-ASN4 session additionally carries the real AS in
// AS4Aggregator when it overflows 2 octets.
type Aggregator struct {
	AS bgp.ASN
	ID bgp.Identifier
}

func (a Aggregator) Code() AttrCode   { return AttrAggregator }
func (a Aggregator) AttrFlags() Flags { return wellKnownFlags[AttrAggregator] }
func (a Aggregator) Value() []byte {
	return aggregatorBytes(a.AS, a.ID, false)
}

func aggregatorBytes(as bgp.ASN, id bgp.Identifier, asn4 bool) []byte {
	if asn4 {
		v := make([]byte, 8)
		binary.BigEndian.PutUint32(v[0:4], uint32(as))
		binary.BigEndian.PutUint32(v[4:8], uint32(id))
		return v
	}
	wireAS := as
	if wireAS > 0xffff {
		wireAS = bgp.AS4Trans
	}
	v := make([]byte, 6)
	binary.BigEndian.PutUint16(v[0:2], uint16(wireAS))
	binary.BigEndian.PutUint32(v[2:6], uint32(id))
	return v
}

func decodeAggregator(b []byte, asn4 bool) (Attribute, error) {
	if asn4 {
		if len(b) != 8 {
			return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
		}
		return Aggregator{AS: bgp.ASN(binary.BigEndian.Uint32(b[0:4])), ID: bgp.Identifier(binary.BigEndian.Uint32(b[4:8]))}, nil
	}
	if len(b) != 6 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	return Aggregator{AS: bgp.ASN(binary.BigEndian.Uint16(b[0:2])), ID: bgp.Identifier(binary.BigEndian.Uint32(b[2:6]))}, nil
}

// AS4Aggregator carries the real 4-octet AS and router-id when a
// non-ASN4 AGGREGATOR had to truncate to AS_TRANS.
type AS4Aggregator struct {
	AS bgp.ASN
	ID bgp.Identifier
}

func (a AS4Aggregator) Code() AttrCode   { return AttrAS4Aggregator }
func (a AS4Aggregator) AttrFlags() Flags { return wellKnownFlags[AttrAS4Aggregator] }
func (a AS4Aggregator) Value() []byte    { return aggregatorBytes(a.AS, a.ID, true) }

func decodeAS4Aggregator(b []byte) (Attribute, error) {
	if len(b) != 8 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	return AS4Aggregator{AS: bgp.ASN(binary.BigEndian.Uint32(b[0:4])), ID: bgp.Identifier(binary.BigEndian.Uint32(b[4:8]))}, nil
}

// OriginatorID and ClusterList are route-reflection attributes
// (RFC 4456); this core does not implement reflection logic itself but
// preserves and forwards both.
type OriginatorID struct{ ID bgp.Identifier }

func (o OriginatorID) Code() AttrCode   { return AttrOriginatorID }
func (o OriginatorID) AttrFlags() Flags { return wellKnownFlags[AttrOriginatorID] }
func (o OriginatorID) Value() []byte {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(o.ID))
	return v
}

func decodeOriginatorID(b []byte) (Attribute, error) {
	if len(b) != 4 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	return OriginatorID{ID: bgp.Identifier(binary.BigEndian.Uint32(b))}, nil
}

type ClusterList struct{ IDs []bgp.Identifier }

func (c ClusterList) Code() AttrCode   { return AttrClusterList }
func (c ClusterList) AttrFlags() Flags { return wellKnownFlags[AttrClusterList] }
func (c ClusterList) Value() []byte {
	v := make([]byte, 4*len(c.IDs))
	for i, id := range c.IDs {
		binary.BigEndian.PutUint32(v[i*4:i*4+4], uint32(id))
	}
	return v
}

func decodeClusterList(b []byte) (Attribute, error) {
	if len(b)%4 != 0 {
		return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
	}
	var ids []bgp.Identifier
	for i := 0; i < len(b); i += 4 {
		ids = append(ids, bgp.Identifier(binary.BigEndian.Uint32(b[i:i+4])))
	}
	return ClusterList{IDs: ids}, nil
}

// AIGP (RFC 7311) carries a TLV sequence; this core implements only the
// accumulated-IGP-metric TLV (type 1), the only one in active use, and
// preserves the rest of the value bytes verbatim after it.
type AIGP struct {
	Metric uint64
	rest   []byte
}

func (a AIGP) Code() AttrCode   { return AttrAIGP }
func (a AIGP) AttrFlags() Flags { return wellKnownFlags[AttrAIGP] }
func (a AIGP) Value() []byte {
	v := make([]byte, 11)
	v[0] = 1
	binary.BigEndian.PutUint16(v[1:3], 11)
	binary.BigEndian.PutUint64(v[3:11], a.Metric)
	return append(v, a.rest...)
}

func decodeAIGP(b []byte) (Attribute, error) {
	if len(b) < 11 || b[0] != 1 {
		return AIGP{}, nil // unknown/short TLV: treat as a present-but-empty AIGP, never fatal
	}
	return AIGP{Metric: binary.BigEndian.Uint64(b[3:11]), rest: append([]byte{}, b[11:]...)}, nil
}
