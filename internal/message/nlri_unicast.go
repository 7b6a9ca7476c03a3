package message

import (
	"net"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// IPAddrFamily is IPv4 or IPv6 unicast/multicast NLRI: a bare
// (length, prefix) pair, optionally prefixed by an add-path path-id.
type IPAddrFamily struct {
	AFI    bgp.AFI
	SAFI   bgp.SAFI
	Prefix net.IP
	Length int // bits
	ID     PathID
	hasID  bool
}

func NewIPAddrFamily(fam bgp.Family, prefix net.IP, length int) IPAddrFamily {
	return IPAddrFamily{AFI: fam.AFI, SAFI: fam.SAFI, Prefix: prefix, Length: length}
}

func (n IPAddrFamily) Family() bgp.Family { return bgp.Family{AFI: n.AFI, SAFI: n.SAFI} }
func (n IPAddrFamily) PathID() (PathID, bool) { return n.ID, n.hasID }

func (n IPAddrFamily) Encode() []byte {
	var out []byte
	if n.hasID {
		out = append(out, encodePathID(n.ID)...)
	}
	return append(out, encodePrefix(n.Prefix, n.Length)...)
}

func addrBytesFor(afi bgp.AFI) int {
	if afi == bgp.AFIIPv6 {
		return 16
	}
	return 4
}

func encodePathID(id PathID) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

func decodePathID(r *reader) (PathID, error) {
	v, err := r.uint32()
	return PathID(v), err
}

// decodeIPAddrFamily parses a single NLRI entry for a (AFI, unicast or
// multicast SAFI) family, consuming exactly one entry from r.
func decodeIPAddrFamily(r *reader, afi bgp.AFI, safi bgp.SAFI, addPath bool) (NLRI, error) {
	n := IPAddrFamily{AFI: afi, SAFI: safi}
	if addPath {
		id, err := decodePathID(r)
		if err != nil {
			return nil, err
		}
		n.ID, n.hasID = id, true
	}
	prefix, bits, err := decodePrefix(r, addrBytesFor(afi))
	if err != nil {
		return nil, err
	}
	n.Prefix, n.Length = prefix, bits
	return n, nil
}

// LabeledUnicast is an (AFI, SAFI=LabeledUnicast) NLRI: one or more
// 3-octet MPLS label shims prepended to the prefix (RFC 8277).
type LabeledUnicast struct {
	AFI    bgp.AFI
	SAFI   bgp.SAFI
	Labels []uint32
	Prefix net.IP
	Length int // prefix bits, excluding the label octets
	ID     PathID
	hasID  bool
}

func (n LabeledUnicast) Family() bgp.Family     { return bgp.Family{AFI: n.AFI, SAFI: n.SAFI} }
func (n LabeledUnicast) PathID() (PathID, bool) { return n.ID, n.hasID }

func (n LabeledUnicast) Encode() []byte {
	var out []byte
	if n.hasID {
		out = append(out, encodePathID(n.ID)...)
	}
	totalBits := len(n.Labels)*24 + n.Length
	out = append(out, byte(totalBits))
	for i, label := range n.Labels {
		out = append(out, encodeLabel(label, i == len(n.Labels)-1)...)
	}
	out = append(out, n.Prefix[:bitsToBytes(n.Length)]...)
	return out
}

// withdrawnCompatibleLabel is the reserved label value (0x800000, i.e.
// label 0x80000 shifted, bottom-of-stack bit clear) RFC 8277 §2.4
// uses in place of a real label stack on a withdrawal, since the
// receiver only needs the prefix to remove a route.
const withdrawnCompatibleLabel = 0x800000

func decodeLabeledUnicast(r *reader, afi bgp.AFI, safi bgp.SAFI, addPath bool) (NLRI, error) {
	n := LabeledUnicast{AFI: afi, SAFI: safi}
	if addPath {
		id, err := decodePathID(r)
		if err != nil {
			return nil, err
		}
		n.ID, n.hasID = id, true
	}
	totalBitsByte, err := r.byte()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	totalBits := int(totalBitsByte)
	remainingBits := totalBits
	for {
		labelBytes, err := r.bytes(3)
		if err != nil {
			return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
		}
		remainingBits -= 24
		raw := uint32(labelBytes[0])<<16 | uint32(labelBytes[1])<<8 | uint32(labelBytes[2])
		if raw == withdrawnCompatibleLabel {
			break
		}
		label, bottom := decodeLabel(labelBytes)
		n.Labels = append(n.Labels, label)
		if bottom {
			break
		}
		if remainingBits <= 0 {
			return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
		}
	}
	if remainingBits < 0 {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	n.Length = remainingBits
	addrBytes := addrBytesFor(afi)
	nbytes := bitsToBytes(n.Length)
	if nbytes > addrBytes {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	raw, err := r.bytes(nbytes)
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	full := make([]byte, addrBytes)
	copy(full, raw)
	n.Prefix = net.IP(full)
	return n, nil
}
