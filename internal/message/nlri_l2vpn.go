package message

import "github.com/Exa-Networks/exabgp-sub000/internal/bgp"

// VPLS is the L2VPN-VPLS NLRI (RFC 4761 §3.2): a route distinguisher
// plus the VE block parameters needed to derive a per-VE label range.
type VPLS struct {
	RD            RouteDistinguisher
	VEID          uint16
	VEBlockOffset uint16
	VEBlockSize   uint16
	LabelBase     uint32 // 20-bit label, low 4 bits of the wire field unused
}

func (VPLS) Family() bgp.Family     { return bgp.Family{AFI: bgp.AFIL2VPN, SAFI: bgp.SAFIVPLS} }
func (VPLS) PathID() (PathID, bool) { return 0, false }

func (n VPLS) Encode() []byte {
	out := make([]byte, 2+8+2+2+2+3)
	out[0], out[1] = 0, 17 // length octet(2) covers the fixed 17-octet body
	copy(out[2:10], n.RD[:])
	out[10], out[11] = byte(n.VEID>>8), byte(n.VEID)
	out[12], out[13] = byte(n.VEBlockOffset>>8), byte(n.VEBlockOffset)
	out[14], out[15] = byte(n.VEBlockSize>>8), byte(n.VEBlockSize)
	label := encodeLabel(n.LabelBase, true)
	copy(out[16:19], label)
	return out
}

func decodeVPLS(r *reader) (NLRI, error) {
	if _, err := r.uint16(); err != nil { // length, not needed: fixed body
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	rdBytes, err := r.bytes(8)
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	var n VPLS
	copy(n.RD[:], rdBytes)
	veid, err := r.uint16()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	off, err := r.uint16()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	size, err := r.uint16()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	labelBytes, err := r.bytes(3)
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	label, _ := decodeLabel(labelBytes)
	n.VEID, n.VEBlockOffset, n.VEBlockSize, n.LabelBase = veid, off, size, label
	return n, nil
}
