package message

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// BGP-LS NLRI types (RFC 7752 §3.2).
type LinkStateNLRIType uint16

const (
	LinkStateNode       LinkStateNLRIType = 1
	LinkStateLink       LinkStateNLRIType = 2
	LinkStateIPv4Prefix LinkStateNLRIType = 3
	LinkStateIPv6Prefix LinkStateNLRIType = 4
	LinkStateSRv6SID    LinkStateNLRIType = 6
)

// LinkStateTLV is one descriptor inside a BGP-LS NLRI body (Local-Node,
// Remote-Node, Link-ID, IP-Reach, OSPF-Route, MT-ID, SRv6-SID-Information,
// ...). Per this core's Open Question decision, descriptors are kept as
// a generic (type, value) pair rather than expanded into one Go type
// per descriptor: the RIB and wire protocol only need to compare and
// forward a BGP-LS NLRI as a whole, never to interpret individual
// descriptor fields.
type LinkStateTLV struct {
	Type  uint16
	Value []byte
}

// LinkStateNLRI is the BGP-LS NLRI (AFI 16388, SAFI 71/72): a
// (NLRI-type, Protocol-ID, Identifier) header followed by a sequence
// of typed descriptors. The identity of a BGP-LS route is the
// (ProtocolID, sorted descriptor bytes) pair, not a field inside the
// descriptors themselves — see the Open Question decision on hashing.
type LinkStateNLRI struct {
	NLRIType   LinkStateNLRIType
	SAFI       bgp.SAFI
	ProtocolID byte
	Identifier uint64
	Descriptors []LinkStateTLV
}

func (n LinkStateNLRI) Family() bgp.Family     { return bgp.Family{AFI: bgp.AFIBGPLS, SAFI: n.SAFI} }
func (n LinkStateNLRI) PathID() (PathID, bool) { return 0, false }

func (n LinkStateNLRI) Encode() []byte {
	var body []byte
	body = append(body, n.ProtocolID)
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, n.Identifier)
	body = append(body, idBytes...)
	for _, d := range n.Descriptors {
		body = append(body, encodeLSTLV(d)...)
	}
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out[0:2], uint16(n.NLRIType))
	binary.BigEndian.PutUint16(out[2:4], uint16(len(body)))
	return append(out, body...)
}

func encodeLSTLV(t LinkStateTLV) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out[0:2], t.Type)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(t.Value)))
	return append(out, t.Value...)
}

// FingerprintKey returns the (ProtocolID, sorted descriptor bytes)
// identity used for RIB dedup, deliberately excluding Identifier/NLRIType
// so that two encodings of the same route always hash equal regardless of
// restart-instance-local Identifier churn or descriptor order.
func (n LinkStateNLRI) FingerprintKey() string {
	descs := make([]string, 0, len(n.Descriptors))
	for _, d := range n.Descriptors {
		descs = append(descs, string(encodeLSTLV(d)))
	}
	sort.Strings(descs)
	return string([]byte{n.ProtocolID}) + strings.Join(descs, "")
}

func decodeLinkStateNLRI(r *reader, safi bgp.SAFI) (NLRI, error) {
	nlriType, err := r.uint16()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	length, err := r.uint16()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	body, err := r.bytes(int(length))
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	br := newReader(body)
	protocolID, err := br.byte()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	identifier, err := br.bytes(8)
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	n := LinkStateNLRI{
		NLRIType:   LinkStateNLRIType(nlriType),
		SAFI:       safi,
		ProtocolID: protocolID,
		Identifier: binary.BigEndian.Uint64(identifier),
	}
	for br.remaining() > 0 {
		typ, err := br.uint16()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
		}
		vlen, err := br.uint16()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
		}
		val, err := br.bytes(int(vlen))
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
		}
		n.Descriptors = append(n.Descriptors, LinkStateTLV{Type: typ, Value: append([]byte{}, val...)})
	}
	return n, nil
}

// LinkState is the BGP-LS path attribute (code 29): a sequence of
// typed TLVs describing link/node/prefix metrics and SR capabilities.
// Like the descriptors above, this core keeps TLVs generic rather than
// modeling the full taxonomy.
type LinkState struct{ TLVs []LinkStateTLV }

func (l LinkState) Code() AttrCode   { return AttrLinkState }
func (l LinkState) AttrFlags() Flags { return wellKnownFlags[AttrLinkState] }
func (l LinkState) Value() []byte {
	var out []byte
	for _, t := range l.TLVs {
		out = append(out, encodeLSTLV(t)...)
	}
	return out
}

func decodeLinkState(b []byte) (Attribute, error) {
	r := newReader(b)
	var tlvs []LinkStateTLV
	for r.remaining() > 0 {
		typ, err := r.uint16()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
		}
		vlen, err := r.uint16()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
		}
		val, err := r.bytes(int(vlen))
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateAttributeLength)
		}
		tlvs = append(tlvs, LinkStateTLV{Type: typ, Value: append([]byte{}, val...)})
	}
	return LinkState{TLVs: tlvs}, nil
}
