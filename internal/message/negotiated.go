package message

import "github.com/Exa-Networks/exabgp-sub000/internal/bgp"

// RouteRefreshVariant records which flavor of ROUTE-REFRESH, if any, a
// session negotiated.
type RouteRefreshVariant int

const (
	RouteRefreshNone RouteRefreshVariant = iota
	RouteRefreshLegacy
	RouteRefreshEnhanced
)

// Negotiated is the frozen intersection of both sides' OPEN capabilities,
// fixed for the life of one ESTABLISHED session. The codec takes it as
// an explicit argument to every Encode/Decode call rather than holding
// any of it itself, keeping the codec stateless.
type Negotiated struct {
	LocalAS, PeerAS   bgp.ASN
	LocalID, PeerID   bgp.Identifier
	Families          []bgp.Family
	ASN4              bool
	AddPathSend       map[bgp.Family]bool
	AddPathReceive    map[bgp.Family]bool
	ExtendedMessage   bool
	RouteRefresh      RouteRefreshVariant
	MultiSession      bool
	HoldTime          int // seconds; 0 means no keepalive
	GracefulRestart   bool
	GRRestartState    bool
	GRFamilies        map[bgp.Family]bool
}

// MaxMessageLength is the negotiated wire ceiling: 65535 when both sides
// advertised extended-message, 4096 otherwise.
func (n Negotiated) MaxMessageLength() int {
	if n.ExtendedMessage {
		return ExtendedMaxMessageLength
	}
	return DefaultMaxMessageLength
}

// HasFamily reports whether a family was negotiated via MP capability,
// or is IPv4 unicast (always implicitly available).
func (n Negotiated) HasFamily(f bgp.Family) bool {
	if f == bgp.IPv4Unicast {
		return true
	}
	for _, x := range n.Families {
		if x == f {
			return true
		}
	}
	return false
}

// Negotiate computes the session intersection from both sides' offers
// and OPEN fields.
func Negotiate(localAS, peerAS bgp.ASN, localID, peerID bgp.Identifier, localHold, peerHold int, local, peer Offer) Negotiated {
	n := Negotiated{
		LocalAS:        localAS,
		PeerAS:         peerAS,
		LocalID:        localID,
		PeerID:         peerID,
		AddPathSend:    map[bgp.Family]bool{},
		AddPathReceive: map[bgp.Family]bool{},
		GRFamilies:     map[bgp.Family]bool{},
	}

	localSet := map[bgp.Family]bool{}
	for _, f := range local.Families {
		localSet[f] = true
	}
	for _, f := range peer.Families {
		if localSet[f] {
			n.Families = append(n.Families, f)
		}
	}

	n.ASN4 = local.ASN4 != 0 && peer.ASN4 != 0

	// Add-Path: our send is meaningful only if we offered to send and the
	// peer offered to receive; symmetric for receive.
	for f, dir := range local.AddPath {
		peerDir := peer.AddPath[f]
		if dir&AddPathSend != 0 && peerDir&AddPathReceive != 0 {
			n.AddPathSend[f] = true
		}
		if dir&AddPathReceive != 0 && peerDir&AddPathSend != 0 {
			n.AddPathReceive[f] = true
		}
	}

	n.ExtendedMessage = local.ExtendedMessage && peer.ExtendedMessage

	switch {
	case local.EnhancedRefresh && peer.EnhancedRefresh:
		n.RouteRefresh = RouteRefreshEnhanced
	case local.RouteRefresh && peer.RouteRefresh:
		n.RouteRefresh = RouteRefreshLegacy
	default:
		n.RouteRefresh = RouteRefreshNone
	}

	n.GracefulRestart = local.GracefulRestart && peer.GracefulRestart
	if n.GracefulRestart {
		n.GRRestartState = peer.GRRestartState
		for f := range peer.GRFamilies {
			if localSet[f] || f == bgp.IPv4Unicast {
				n.GRFamilies[f] = peer.GRFamilies[f]
			}
		}
	}

	hold := localHold
	if peerHold < hold {
		hold = peerHold
	}
	n.HoldTime = hold

	return n
}
