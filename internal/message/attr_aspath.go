package message

import (
	"encoding/binary"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// SegmentType is the AS_PATH segment type octet.
type SegmentType byte

const (
	SegASSet      SegmentType = 1
	SegASSequence SegmentType = 2
	SegConfedSeq  SegmentType = 3
	SegConfedSet  SegmentType = 4
)

// Segment is one (type, AS list) run inside an AS_PATH or AS4_PATH
// attribute.
type Segment struct {
	Type SegmentType
	AS   []bgp.ASN
}

// ASPath is the mandatory well-known AS_PATH attribute. asn4 controls
// whether Encode emits 2- or 4-octet AS numbers; Decode is told asn4 by
// the caller (the negotiated session), since the wire form is
// indistinguishable without it.
type ASPath struct {
	Segments []Segment
	asn4     bool
}

func NewASPath(segments []Segment, asn4 bool) ASPath {
	return ASPath{Segments: segments, asn4: asn4}
}

func (a ASPath) Code() AttrCode   { return AttrASPath }
func (a ASPath) AttrFlags() Flags { return wellKnownFlags[AttrASPath] }
func (a ASPath) Value() []byte    { return encodeSegments(a.Segments, a.asn4) }

func encodeSegments(segs []Segment, asn4 bool) []byte {
	var out []byte
	for _, seg := range segs {
		asWidth := 2
		if asn4 {
			asWidth = 4
		}
		out = append(out, byte(seg.Type), byte(len(seg.AS)))
		for _, as := range seg.AS {
			v := make([]byte, asWidth)
			if asn4 {
				binary.BigEndian.PutUint32(v, uint32(as))
			} else {
				binary.BigEndian.PutUint16(v, uint16(as))
			}
			out = append(out, v...)
		}
	}
	return out
}

func decodeASPath(b []byte, asn4 bool) (Attribute, error) {
	segs, err := decodeSegments(b, asn4)
	if err != nil {
		return nil, err
	}
	return ASPath{Segments: segs, asn4: asn4}, nil
}

func decodeSegments(b []byte, asn4 bool) ([]Segment, error) {
	asWidth := 2
	if asn4 {
		asWidth = 4
	}
	var segs []Segment
	r := newReader(b)
	for r.remaining() > 0 {
		typ, err := r.byte()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateMalformedASPath)
		}
		switch SegmentType(typ) {
		case SegASSet, SegASSequence, SegConfedSeq, SegConfedSet:
		default:
			return nil, notify(NotifyUpdate, SubUpdateMalformedASPath)
		}
		count, err := r.byte()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateMalformedASPath)
		}
		seg := Segment{Type: SegmentType(typ)}
		for i := 0; i < int(count); i++ {
			asBytes, err := r.bytes(asWidth)
			if err != nil {
				return nil, notify(NotifyUpdate, SubUpdateMalformedASPath)
			}
			var as bgp.ASN
			if asn4 {
				as = bgp.ASN(binary.BigEndian.Uint32(asBytes))
			} else {
				as = bgp.ASN(binary.BigEndian.Uint16(asBytes))
			}
			seg.AS = append(seg.AS, as)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// AS4Path is the optional transitive AS4_PATH attribute a non-ASN4
// speaker uses to carry the real, 4-octet AS_PATH alongside a
// 2-octet, AS_TRANS-truncated AS_PATH.
type AS4Path struct{ Segments []Segment }

func (a AS4Path) Code() AttrCode   { return AttrAS4Path }
func (a AS4Path) AttrFlags() Flags { return wellKnownFlags[AttrAS4Path] }
func (a AS4Path) Value() []byte    { return encodeSegments(a.Segments, true) }

func decodeAS4Path(b []byte) (Attribute, error) {
	segs, err := decodeSegments(b, true)
	if err != nil {
		return nil, err
	}
	return AS4Path{Segments: segs}, nil
}

// MergeAS4Path folds an AS4_PATH attribute into a non-ASN4 AS_PATH per
// RFC 4893 §4.2.3: the last N AS_SEQUENCE entries of AS_PATH (N = the
// total AS count of AS4_PATH) are replaced with AS4_PATH's contents. An
// AS_SET segment is never touched; if AS_PATH is shorter than AS4_PATH,
// AS_PATH wins unchanged.
func MergeAS4Path(asPath, as4Path []Segment) []Segment {
	if len(as4Path) == 0 {
		return asPath
	}

	asLen := segmentsASCount(asPath)
	as4Len := segmentsASCount(as4Path)
	if asLen < as4Len {
		return asPath
	}

	// Walk AS_PATH from the end, consuming as4Len AS numbers from
	// AS_SEQUENCE segments only; stop (and keep the rest of AS_PATH
	// unchanged) the instant an AS_SET segment is reached.
	merged := make([]Segment, len(asPath))
	copy(merged, asPath)

	remaining := as4Len
	for i := len(merged) - 1; i >= 0 && remaining > 0; i-- {
		if merged[i].Type == SegASSet || merged[i].Type == SegConfedSet {
			break
		}
		if len(merged[i].AS) <= remaining {
			remaining -= len(merged[i].AS)
			merged = append(merged[:i], merged[i+1:]...)
		} else {
			keep := len(merged[i].AS) - remaining
			merged[i].AS = merged[i].AS[:keep]
			remaining = 0
		}
	}
	// Splice in AS4_PATH's segments where the consumed suffix was.
	result := append([]Segment{}, merged...)
	result = append(result, as4Path...)
	return result
}

func segmentsASCount(segs []Segment) int {
	n := 0
	for _, s := range segs {
		n += len(s.AS)
	}
	return n
}
