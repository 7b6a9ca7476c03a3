package message

import "github.com/Exa-Networks/exabgp-sub000/internal/bgp"

// decodeNLRIEntry consumes exactly one NLRI entry for the given family
// from r, dispatching on (AFI, SAFI). addPath tells unicast-shaped
// families (everything but Flow-Spec, VPLS, EVPN, BGP-LS, which carry
// no path-id) whether to expect a leading 4-octet path identifier.
func decodeNLRIEntry(r *reader, afi bgp.AFI, safi bgp.SAFI, addPath bool) (NLRI, error) {
	switch {
	case safi == bgp.SAFILabeledUnicast:
		return decodeLabeledUnicast(r, afi, safi, addPath)
	case safi == bgp.SAFIVPNUnicast || safi == bgp.SAFIVPNMulticast:
		return decodeVPNPrefix(r, afi, safi, addPath)
	case safi == bgp.SAFIFlowSpec || safi == bgp.SAFIFlowSpecVPN:
		return decodeFlowSpec(r, afi, safi)
	case afi == bgp.AFIL2VPN && safi == bgp.SAFIVPLS:
		return decodeVPLS(r)
	case afi == bgp.AFIL2VPN && safi == bgp.SAFIEVPN:
		return decodeEVPN(r)
	case afi == bgp.AFIBGPLS && (safi == bgp.SAFIBGPLS || safi == bgp.SAFIBGPLSVPN):
		return decodeLinkStateNLRI(r, safi)
	case safi == bgp.SAFIUnicast || safi == bgp.SAFIMulticast:
		return decodeIPAddrFamily(r, afi, safi, addPath)
	default:
		return nil, notify(NotifyUpdate, SubUpdateInvalidNetworkField)
	}
}

// DecodeNLRIList decodes NLRI entries from b until it is exhausted,
// for families that pack multiple entries back to back (the base
// UPDATE NLRI/withdrawn fields, and MP_REACH/MP_UNREACH NLRI).
func DecodeNLRIList(b []byte, afi bgp.AFI, safi bgp.SAFI, addPath bool) ([]NLRI, error) {
	r := newReader(b)
	var out []NLRI
	for r.remaining() > 0 {
		n, err := decodeNLRIEntry(r, afi, safi, addPath)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// EncodeNLRIList serializes a list of same-family NLRI entries back to
// back, the inverse of DecodeNLRIList.
func EncodeNLRIList(entries []NLRI) []byte {
	var out []byte
	for _, n := range entries {
		out = append(out, n.Encode()...)
	}
	return out
}
