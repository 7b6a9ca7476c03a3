package message

import "github.com/Exa-Networks/exabgp-sub000/internal/bgp"

// RefreshSubtype distinguishes a plain ROUTE-REFRESH (RFC 2918) from
// the begin/end-of-RIB markers the enhanced variant adds (RFC 7313).
type RefreshSubtype byte

const (
	RefreshNormal RefreshSubtype = 0
	RefreshBegin  RefreshSubtype = 1
	RefreshEnd    RefreshSubtype = 2
)

// RouteRefresh is the ROUTE-REFRESH message body: (AFI, subtype, SAFI).
type RouteRefresh struct {
	Family  bgp.Family
	Subtype RefreshSubtype
}

// Bytes encodes the ROUTE-REFRESH message body.
func (r RouteRefresh) Bytes() []byte {
	return []byte{byte(r.Family.AFI >> 8), byte(r.Family.AFI), byte(r.Subtype), byte(r.Family.SAFI)}
}

// DecodeRouteRefresh parses a ROUTE-REFRESH message body.
func DecodeRouteRefresh(b []byte) (RouteRefresh, error) {
	if len(b) != 4 {
		return RouteRefresh{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	afi := bgp.AFI(uint16(b[0])<<8 | uint16(b[1]))
	subtype := RefreshSubtype(b[2])
	safi := bgp.SAFI(b[3])
	return RouteRefresh{Family: bgp.Family{AFI: afi, SAFI: safi}, Subtype: subtype}, nil
}
