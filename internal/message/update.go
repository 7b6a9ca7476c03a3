package message

import "github.com/Exa-Networks/exabgp-sub000/internal/bgp"

// Update is a decoded UPDATE message (RFC 4271 §4.3). Withdrawn and
// NLRI hold plain IPv4 unicast entries in the base, pre-multiprotocol
// fields; every other family, and IPv4 unicast itself when add-path is
// negotiated, travels inside MP_REACH_NLRI/MP_UNREACH_NLRI attributes
// instead and is reachable through Attributes.Get.
type Update struct {
	Withdrawn  []NLRI
	Attributes Attributes
	NLRI       []NLRI
}

// Bytes encodes the UPDATE message body.
func (u Update) Bytes() []byte {
	withdrawn := EncodeNLRIList(u.Withdrawn)
	attrs := u.Attributes.Encode()
	nlri := EncodeNLRIList(u.NLRI)

	out := make([]byte, 0, 4+len(withdrawn)+len(attrs)+len(nlri))
	out = append(out, byte(len(withdrawn)>>8), byte(len(withdrawn)))
	out = append(out, withdrawn...)
	out = append(out, byte(len(attrs)>>8), byte(len(attrs)))
	out = append(out, attrs...)
	out = append(out, nlri...)
	return out
}

// DecodeUpdate parses an UPDATE message body against the session's
// negotiated parameters: n.ASN4 controls how AS_PATH and AGGREGATOR
// decode, and n.AddPathReceive[IPv4Unicast] controls whether the base
// Withdrawn/NLRI fields carry a leading path-id (RFC 7911 extends
// add-path to the base fields precisely because they predate MP_BGP).
func DecodeUpdate(b []byte, n Negotiated) (Update, error) {
	addPath := n.AddPathReceive[bgp.IPv4Unicast]
	r := newReader(b)
	withdrawnLen, err := r.uint16()
	if err != nil {
		return Update{}, notify(NotifyUpdate, SubUpdateMalformedAttributeList)
	}
	withdrawnBytes, err := r.bytes(int(withdrawnLen))
	if err != nil {
		return Update{}, notify(NotifyUpdate, SubUpdateMalformedAttributeList)
	}
	withdrawn, err := DecodeNLRIList(withdrawnBytes, bgp.AFIIPv4, bgp.SAFIUnicast, addPath)
	if err != nil {
		return Update{}, err
	}

	attrsLen, err := r.uint16()
	if err != nil {
		return Update{}, notify(NotifyUpdate, SubUpdateMalformedAttributeList)
	}
	attrsBytes, err := r.bytes(int(attrsLen))
	if err != nil {
		return Update{}, notify(NotifyUpdate, SubUpdateMalformedAttributeList)
	}
	attrs, err := DecodeAttributes(attrsBytes, n)
	if err != nil {
		return Update{}, err
	}

	nlriBytes, err := r.bytes(r.remaining())
	if err != nil {
		return Update{}, notify(NotifyUpdate, SubUpdateMalformedAttributeList)
	}
	nlri, err := DecodeNLRIList(nlriBytes, bgp.AFIIPv4, bgp.SAFIUnicast, addPath)
	if err != nil {
		return Update{}, err
	}

	return Update{Withdrawn: withdrawn, Attributes: attrs, NLRI: nlri}, nil
}

// IsEOR reports whether this UPDATE is an End-of-RIB marker: either the
// classic empty IPv4 unicast UPDATE (RFC 4724 §2) or an MP_UNREACH_NLRI
// attribute with zero NLRI entries (RFC 4724 §2, multiprotocol form).
func (u Update) IsEOR() bool {
	if len(u.Withdrawn) == 0 && len(u.NLRI) == 0 && len(u.Attributes) == 0 {
		return true
	}
	if len(u.Withdrawn) == 0 && len(u.NLRI) == 0 && len(u.Attributes) == 1 {
		if mp, ok := u.Attributes[0].(MPUnreachNLRI); ok {
			return len(mp.NLRI) == 0
		}
	}
	return false
}

// NewIPv4EOR builds the classic empty-UPDATE End-of-RIB marker.
func NewIPv4EOR() Update { return Update{} }

// NewMPEOR builds a multiprotocol End-of-RIB marker for fam.
func NewMPEOR(fam bgp.Family) Update {
	return Update{Attributes: Attributes{MPUnreachNLRI{Family: fam}}}
}
