package message

import (
	"net"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// MPReachNLRI is the MP_REACH_NLRI attribute (RFC 4760 §3): announces
// reachability for any family other than IPv4 unicast. Whether its NLRI
// entries carry a leading path-id is not part of the wire encoding; it
// comes from the negotiated session's per-family add-path agreement.
type MPReachNLRI struct {
	Family  bgp.Family
	NextHop net.IP
	// LinkLocalNextHop is the second, IPv6 link-local next hop RFC 2545
	// allows alongside the global address; nil when absent.
	LinkLocalNextHop net.IP
	NLRI             []NLRI
}

func (m MPReachNLRI) Code() AttrCode   { return AttrMPReachNLRI }
func (m MPReachNLRI) AttrFlags() Flags { return wellKnownFlags[AttrMPReachNLRI] }

func (m MPReachNLRI) Value() []byte {
	nh := m.NextHop
	nhLen := len(nh)
	if m.LinkLocalNextHop != nil {
		nhLen = len(nh) + len(m.LinkLocalNextHop)
	}
	out := make([]byte, 0, 5+nhLen)
	out = append(out, byte(m.Family.AFI>>8), byte(m.Family.AFI), byte(m.Family.SAFI))
	out = append(out, byte(nhLen))
	out = append(out, nh...)
	if m.LinkLocalNextHop != nil {
		out = append(out, m.LinkLocalNextHop...)
	}
	out = append(out, 0) // reserved
	out = append(out, EncodeNLRIList(m.NLRI)...)
	return out
}

func decodeMPReachValue(b []byte, addPath bool) (MPReachNLRI, error) {
	r := newReader(b)
	afiRaw, err := r.uint16()
	if err != nil {
		return MPReachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	safiRaw, err := r.byte()
	if err != nil {
		return MPReachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	fam := bgp.Family{AFI: bgp.AFI(afiRaw), SAFI: bgp.SAFI(safiRaw)}

	nhLen, err := r.byte()
	if err != nil {
		return MPReachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	nhBytes, err := r.bytes(int(nhLen))
	if err != nil {
		return MPReachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	m := MPReachNLRI{Family: fam}
	addrLen := addrBytesFor(fam.AFI)
	switch {
	case int(nhLen) == addrLen:
		m.NextHop = net.IP(append([]byte{}, nhBytes...))
	case int(nhLen) == addrLen*2:
		m.NextHop = net.IP(append([]byte{}, nhBytes[:addrLen]...))
		m.LinkLocalNextHop = net.IP(append([]byte{}, nhBytes[addrLen:]...))
	default:
		m.NextHop = net.IP(append([]byte{}, nhBytes...))
	}

	if _, err := r.byte(); err != nil { // reserved
		return MPReachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	rest, err := r.bytes(r.remaining())
	if err != nil {
		return MPReachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	nlri, err := DecodeNLRIList(rest, fam.AFI, fam.SAFI, addPath)
	if err != nil {
		return MPReachNLRI{}, err
	}
	m.NLRI = nlri
	return m, nil
}

// decodeMPReach peeks the family out of the value and resolves
// add-path from the negotiated session's per-family receive map, since
// the generic attribute dispatch only carries the flat byte value.
func decodeMPReach(b []byte, n Negotiated) (Attribute, error) {
	if len(b) < 3 {
		return nil, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	fam := bgp.Family{AFI: bgp.AFI(uint16(b[0])<<8 | uint16(b[1])), SAFI: bgp.SAFI(b[2])}
	return decodeMPReachValue(b, n.AddPathReceive[fam])
}

// MPUnreachNLRI is the MP_UNREACH_NLRI attribute (RFC 4760 §4):
// withdraws reachability for any family other than IPv4 unicast.
type MPUnreachNLRI struct {
	Family bgp.Family
	NLRI   []NLRI
}

func (m MPUnreachNLRI) Code() AttrCode   { return AttrMPUnreachNLRI }
func (m MPUnreachNLRI) AttrFlags() Flags { return wellKnownFlags[AttrMPUnreachNLRI] }

func (m MPUnreachNLRI) Value() []byte {
	out := []byte{byte(m.Family.AFI >> 8), byte(m.Family.AFI), byte(m.Family.SAFI)}
	return append(out, EncodeNLRIList(m.NLRI)...)
}

func decodeMPUnreachValue(b []byte, addPath bool) (MPUnreachNLRI, error) {
	r := newReader(b)
	afiRaw, err := r.uint16()
	if err != nil {
		return MPUnreachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	safiRaw, err := r.byte()
	if err != nil {
		return MPUnreachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	fam := bgp.Family{AFI: bgp.AFI(afiRaw), SAFI: bgp.SAFI(safiRaw)}
	rest, err := r.bytes(r.remaining())
	if err != nil {
		return MPUnreachNLRI{}, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	nlri, err := DecodeNLRIList(rest, fam.AFI, fam.SAFI, addPath)
	if err != nil {
		return MPUnreachNLRI{}, err
	}
	return MPUnreachNLRI{Family: fam, NLRI: nlri}, nil
}

// decodeMPUnreach mirrors decodeMPReach's add-path resolution for
// withdrawals.
func decodeMPUnreach(b []byte, n Negotiated) (Attribute, error) {
	if len(b) < 3 {
		return nil, notify(NotifyUpdate, SubUpdateOptionalAttribute)
	}
	fam := bgp.Family{AFI: bgp.AFI(uint16(b[0])<<8 | uint16(b[1])), SAFI: bgp.SAFI(b[2])}
	return decodeMPUnreachValue(b, n.AddPathReceive[fam])
}
