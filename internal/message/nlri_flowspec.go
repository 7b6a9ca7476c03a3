package message

import "github.com/Exa-Networks/exabgp-sub000/internal/bgp"

// Flow-Spec component types (RFC 8955 §4).
const (
	FlowComponentDestPrefix  byte = 1
	FlowComponentSourcePrefix byte = 2
	FlowComponentIPProtocol  byte = 3
	FlowComponentPort        byte = 4
	FlowComponentDestPort    byte = 5
	FlowComponentSourcePort  byte = 6
	FlowComponentICMPType    byte = 7
	FlowComponentICMPCode    byte = 8
	FlowComponentTCPFlags    byte = 9
	FlowComponentPacketLength byte = 10
	FlowComponentDSCP        byte = 11
	FlowComponentFragment    byte = 12
	FlowComponentFlowLabel   byte = 13
)

// FlowComponent is one typed filter component. For destination/source
// prefix (types 1-2) Value is the raw (length-octet, prefix-bytes)
// pair; for every numeric/bitmask component (types 3-13) Value is the
// raw sequence of (op-octet, operand) pairs as RFC 8955 §4.2/4.3
// encodes them, preserved verbatim rather than decoded into individual
// operators, since the RIB only ever compares and forwards a rule as a
// unit.
type FlowComponent struct {
	Type  byte
	Value []byte
}

// FlowSpec is a (AFI, SAFI=FlowSpec|FlowSpecVPN) NLRI: an ordered list
// of typed filter components prefixed by a variable-width NLRI length
// (RFC 8955 §4, RFC 8955 §4.1 for the length encoding).
type FlowSpec struct {
	AFI        bgp.AFI
	SAFI       bgp.SAFI
	Components []FlowComponent
}

func (n FlowSpec) Family() bgp.Family     { return bgp.Family{AFI: n.AFI, SAFI: n.SAFI} }
func (n FlowSpec) PathID() (PathID, bool) { return 0, false }

func (n FlowSpec) Encode() []byte {
	var body []byte
	for _, c := range n.Components {
		body = append(body, c.Type)
		body = append(body, c.Value...)
	}
	return append(encodeFlowLength(len(body)), body...)
}

// encodeFlowLength writes the NLRI length prefix: one octet if the
// body fits in 0..0xEF, otherwise a two-octet value with the high
// nibble of the first octet set to 0xF (RFC 8955 §4.1).
func encodeFlowLength(n int) []byte {
	if n < 0xF0 {
		return []byte{byte(n)}
	}
	return []byte{byte(0xF0 | (n >> 8)), byte(n)}
}

func decodeFlowSpec(r *reader, afi bgp.AFI, safi bgp.SAFI) (NLRI, error) {
	first, err := r.byte()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	var length int
	if first>>4 == 0xF {
		second, err := r.byte()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
		}
		length = int(first&0x0F)<<8 | int(second)
	} else {
		length = int(first)
	}
	body, err := r.bytes(length)
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}

	br := newReader(body)
	var comps []FlowComponent
	for br.remaining() > 0 {
		typ, err := br.byte()
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
		}
		val, err := decodeFlowComponentValue(br, typ, afi)
		if err != nil {
			return nil, err
		}
		comps = append(comps, FlowComponent{Type: typ, Value: val})
	}
	return FlowSpec{AFI: afi, SAFI: safi, Components: comps}, nil
}

// decodeFlowComponentValue consumes exactly one component's value
// bytes, stopping at the operator with the end-of-list (0x80) bit set.
func decodeFlowComponentValue(r *reader, typ byte, afi bgp.AFI) ([]byte, error) {
	switch typ {
	case FlowComponentDestPrefix, FlowComponentSourcePrefix:
		start := r.pos
		_, _, err := decodePrefix(r, addrBytesFor(afi))
		if err != nil {
			return nil, err
		}
		return append([]byte{}, r.buf[start:r.pos]...), nil
	default:
		start := r.pos
		for {
			op, err := r.byte()
			if err != nil {
				return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
			}
			valLen := 1 << ((op >> 4) & 0x3)
			if _, err := r.bytes(valLen); err != nil {
				return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
			}
			if op&0x80 != 0 { // end-of-list bit
				break
			}
		}
		return append([]byte{}, r.buf[start:r.pos]...), nil
	}
}
