package message

import "github.com/Exa-Networks/exabgp-sub000/internal/bgp"

// EVPN route types (RFC 7432 §7, RFC 9136 for type 5).
type EVPNRouteType byte

const (
	EVPNEthernetAutoDiscovery EVPNRouteType = 1
	EVPNMACIPAdvertisement    EVPNRouteType = 2
	EVPNInclusiveMulticast    EVPNRouteType = 3
	EVPNEthernetSegment       EVPNRouteType = 4
	EVPNIPPrefix              EVPNRouteType = 5
)

// EVPN is the EVPN NLRI (AFI 25, SAFI 70): a route-type octet, a
// length octet, then a route-type-specific payload. This core keeps
// the payload as an opaque byte string per route type rather than
// modeling each of the ten route types' field layouts individually,
// since the RIB never interprets EVPN route content, only forwards it.
type EVPN struct {
	RouteType EVPNRouteType
	Value     []byte
}

func (EVPN) Family() bgp.Family     { return bgp.Family{AFI: bgp.AFIL2VPN, SAFI: bgp.SAFIEVPN} }
func (e EVPN) PathID() (PathID, bool) { return 0, false }

func (e EVPN) Encode() []byte {
	out := []byte{byte(e.RouteType), byte(len(e.Value))}
	return append(out, e.Value...)
}

func decodeEVPN(r *reader) (NLRI, error) {
	typ, err := r.byte()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	length, err := r.byte()
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	val, err := r.bytes(int(length))
	if err != nil {
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
	return EVPN{RouteType: EVPNRouteType(typ), Value: append([]byte{}, val...)}, nil
}
