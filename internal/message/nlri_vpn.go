package message

import (
	"net"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// VPNPrefix is a (AFI, SAFI=VPNUnicast|VPNMulticast) NLRI: a label
// stack, a route distinguisher, then the customer prefix (RFC 4364
// §4.3.4, RFC 8277 for the label encoding).
type VPNPrefix struct {
	AFI    bgp.AFI
	SAFI   bgp.SAFI
	Labels []uint32
	RD     RouteDistinguisher
	Prefix net.IP
	Length int // customer prefix bits
	ID     PathID
	hasID  bool
}

func (n VPNPrefix) Family() bgp.Family     { return bgp.Family{AFI: n.AFI, SAFI: n.SAFI} }
func (n VPNPrefix) PathID() (PathID, bool) { return n.ID, n.hasID }

func (n VPNPrefix) Encode() []byte {
	var out []byte
	if n.hasID {
		out = append(out, encodePathID(n.ID)...)
	}
	totalBits := len(n.Labels)*24 + 8*len(n.RD) + n.Length
	out = append(out, byte(totalBits))
	for i, label := range n.Labels {
		out = append(out, encodeLabel(label, i == len(n.Labels)-1)...)
	}
	out = append(out, n.RD[:]...)
	out = append(out, n.Prefix[:bitsToBytes(n.Length)]...)
	return out
}

func decodeVPNPrefix(r *reader, afi bgp.AFI, safi bgp.SAFI, addPath bool) (NLRI, error) {
	n := VPNPrefix{AFI: afi, SAFI: safi}
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
	remainingBits := int(totalBitsByte)
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
	rdBytes, err := r.bytes(8)
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	copy(n.RD[:], rdBytes)
	remainingBits -= 64
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
