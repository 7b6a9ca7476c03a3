package message

import (
	"net"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// PathID is the 4-octet add-path identifier prepended to an NLRI entry
// when add-path has been negotiated for that family (RFC 7911).
type PathID uint32

// NLRI is a tagged union over the (AFI, SAFI) family matrix: one
// concrete type per family, sharing only the ability to report its
// family and serialize itself. The codec never needs a common field
// layout across families, only a common wire boundary.
type NLRI interface {
	Family() bgp.Family
	PathID() (PathID, bool)
	Encode() []byte
}

// bitsToBytes returns how many octets a prefix length of n bits occupies.
func bitsToBytes(bits int) int { return (bits + 7) / 8 }

// encodePrefix writes a (length-octet, prefix-bytes) pair the way plain
// unicast/multicast NLRI, and the prefix tail of labeled/VPN NLRI, both
// use: a one-octet bit length followed by the minimum number of octets
// needed to hold it, zero-padded.
func encodePrefix(ip net.IP, bits int) []byte {
	n := bitsToBytes(bits)
	out := make([]byte, 1+n)
	out[0] = byte(bits)
	copy(out[1:], ip[:n])
	return out
}

// decodePrefix reads one (length-octet, prefix-bytes) pair from r,
// zero-extending to addrBytes octets (4 for IPv4, 16 for IPv6).
func decodePrefix(r *reader, addrBytes int) (net.IP, int, error) {
	lenByte, err := r.byte()
	if err != nil {
		return nil, 0, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	bits := int(lenByte)
	if bits > addrBytes*8 {
		return nil, 0, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	n := bitsToBytes(bits)
	raw, err := r.bytes(n)
	if err != nil {
		return nil, 0, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	full := make([]byte, addrBytes)
	copy(full, raw)
	return net.IP(full), bits, nil
}

// encodeLabel packs a 20-bit MPLS label plus the S (bottom-of-stack) bit
// into the standard 3-octet shim used inside labeled-unicast and VPN
// NLRI.
func encodeLabel(label uint32, bottom bool) []byte {
	v := label << 4
	if bottom {
		v |= 1
	}
	return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
}

func decodeLabel(b []byte) (label uint32, bottom bool) {
	v := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	return v >> 4, v&1 != 0
}

// RouteDistinguisher is the 8-octet VPN route distinguisher (RFC 4364
// §4); this codec treats it as an opaque wire value since the RIB and
// transport never need to interpret its type field.
type RouteDistinguisher [8]byte
