package message

import (
	"encoding/binary"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
)

// Capability codes (IANA "BGP Capability Codes" registry).
const (
	CapMultiprotocol        = 1
	CapRouteRefresh         = 2
	CapExtendedNextHop      = 5
	CapExtendedMessage      = 6
	CapGracefulRestart      = 64
	CapASN4                = 65
	CapAddPath              = 69
	CapEnhancedRouteRefresh = 70
	CapLongLivedGR          = 71
	CapRouteRefreshCisco    = 128
	CapOperational          = 9
)

// AddPathDirection is the per-family send/receive bitmask a peer
// advertises inside capability 69.
type AddPathDirection byte

const (
	AddPathReceive AddPathDirection = 1
	AddPathSend    AddPathDirection = 2
	AddPathBoth    AddPathDirection = AddPathReceive | AddPathSend
)

// Capability is a single decoded (code, value) TLV from an OPEN
// message's CAPABILITIES optional parameter.
type Capability struct {
	Code  byte
	Value []byte
}

func encodeCapability(code byte, value []byte) []byte {
	buf := make([]byte, 2+len(value))
	buf[0] = code
	buf[1] = byte(len(value))
	copy(buf[2:], value)
	return buf
}

// encodeCapabilitiesParameter wraps capability TLVs in the single optional
// parameter type actually used in practice: type 2, CAPABILITIES.
func encodeCapabilitiesParameter(caps []Capability) []byte {
	var body []byte
	for _, c := range caps {
		body = append(body, encodeCapability(c.Code, c.Value)...)
	}
	param := make([]byte, 2+len(body))
	param[0] = 2 // CAPABILITIES
	param[1] = byte(len(body))
	copy(param[2:], body)
	return param
}

func decodeOptionalParameters(b []byte) ([]Capability, error) {
	var caps []Capability
	r := newReader(b)
	for r.remaining() > 0 {
		ptype, err := r.byte()
		if err != nil {
			return nil, err
		}
		plen, err := r.byte()
		if err != nil {
			return nil, err
		}
		pval, err := r.bytes(int(plen))
		if err != nil {
			return nil, err
		}
		if ptype != 2 {
			continue // only CAPABILITIES parameters are meaningful here
		}
		cr := newReader(pval)
		for cr.remaining() > 0 {
			code, err := cr.byte()
			if err != nil {
				return nil, err
			}
			clen, err := cr.byte()
			if err != nil {
				return nil, err
			}
			cval, err := cr.bytes(int(clen))
			if err != nil {
				return nil, err
			}
			caps = append(caps, Capability{Code: code, Value: append([]byte{}, cval...)})
		}
	}
	return caps, nil
}

// Offer is what one side of a session advertises in its OPEN message,
// extracted from the raw capability list into a structured form the
// negotiation step in negotiated.go can intersect directly.
type Offer struct {
	Families        []bgp.Family
	ASN4            bgp.ASN // 0 if not advertised
	RouteRefresh    bool
	EnhancedRefresh bool
	ExtendedMessage bool
	AddPath         map[bgp.Family]AddPathDirection
	GracefulRestart bool
	GRRestartState  bool
	GRTime          uint16
	GRFamilies      map[bgp.Family]bool // forwarding state preserved, per family
	Operational     bool
}

// ParseOffer turns a decoded capability list into an Offer.
func ParseOffer(caps []Capability) Offer {
	o := Offer{
		AddPath:    map[bgp.Family]AddPathDirection{},
		GRFamilies: map[bgp.Family]bool{},
	}
	for _, c := range caps {
		switch c.Code {
		case CapMultiprotocol:
			if len(c.Value) >= 4 {
				afi := bgp.AFI(binary.BigEndian.Uint16(c.Value[0:2]))
				safi := bgp.SAFI(c.Value[3])
				o.Families = append(o.Families, bgp.Family{AFI: afi, SAFI: safi})
			}
		case CapRouteRefresh, CapRouteRefreshCisco:
			o.RouteRefresh = true
		case CapEnhancedRouteRefresh:
			o.EnhancedRefresh = true
		case CapExtendedMessage:
			o.ExtendedMessage = true
		case CapASN4:
			if len(c.Value) >= 4 {
				o.ASN4 = bgp.ASN(binary.BigEndian.Uint32(c.Value[0:4]))
			}
		case CapAddPath:
			// Value layout is AFI(2) SAFI(1) SendReceive(1).
			for i := 0; i+4 <= len(c.Value); i += 4 {
				afi := bgp.AFI(binary.BigEndian.Uint16(c.Value[i : i+2]))
				safi := bgp.SAFI(c.Value[i+2])
				dir := AddPathDirection(c.Value[i+3])
				o.AddPath[bgp.Family{AFI: afi, SAFI: safi}] = dir
			}
		case CapGracefulRestart:
			o.GracefulRestart = true
			if len(c.Value) >= 2 {
				flagsTime := binary.BigEndian.Uint16(c.Value[0:2])
				o.GRRestartState = flagsTime&0x8000 != 0
				o.GRTime = flagsTime & 0x0fff
			}
			for i := 2; i+4 <= len(c.Value); i += 4 {
				afi := bgp.AFI(binary.BigEndian.Uint16(c.Value[i : i+2]))
				safi := bgp.SAFI(c.Value[i+2])
				forwarding := c.Value[i+3]&0x80 != 0
				o.GRFamilies[bgp.Family{AFI: afi, SAFI: safi}] = forwarding
			}
		case CapOperational:
			o.Operational = true
		}
	}
	return o
}

// Encode produces the capability TLV list for an outgoing OPEN given a
// local offer.
func (o Offer) Encode() []Capability {
	var caps []Capability
	for _, f := range o.Families {
		v := make([]byte, 4)
		binary.BigEndian.PutUint16(v[0:2], uint16(f.AFI))
		v[3] = byte(f.SAFI)
		caps = append(caps, Capability{Code: CapMultiprotocol, Value: v})
	}
	if o.RouteRefresh {
		caps = append(caps, Capability{Code: CapRouteRefresh})
	}
	if o.EnhancedRefresh {
		caps = append(caps, Capability{Code: CapEnhancedRouteRefresh})
	}
	if o.ExtendedMessage {
		caps = append(caps, Capability{Code: CapExtendedMessage})
	}
	if o.ASN4 != 0 {
		v := make([]byte, 4)
		binary.BigEndian.PutUint32(v, uint32(o.ASN4))
		caps = append(caps, Capability{Code: CapASN4, Value: v})
	}
	if len(o.AddPath) > 0 {
		var v []byte
		for f, dir := range o.AddPath {
			fv := make([]byte, 4)
			binary.BigEndian.PutUint16(fv[0:2], uint16(f.AFI))
			fv[2] = byte(f.SAFI)
			fv[3] = byte(dir)
			v = append(v, fv...)
		}
		caps = append(caps, Capability{Code: CapAddPath, Value: v})
	}
	if o.GracefulRestart {
		v := make([]byte, 2)
		flagsTime := o.GRTime & 0x0fff
		if o.GRRestartState {
			flagsTime |= 0x8000
		}
		binary.BigEndian.PutUint16(v, flagsTime)
		for f, fwd := range o.GRFamilies {
			fv := make([]byte, 4)
			binary.BigEndian.PutUint16(fv[0:2], uint16(f.AFI))
			fv[2] = byte(f.SAFI)
			if fwd {
				fv[3] = 0x80
			}
			v = append(v, fv...)
		}
		caps = append(caps, Capability{Code: CapGracefulRestart, Value: v})
	}
	if o.Operational {
		caps = append(caps, Capability{Code: CapOperational})
	}
	return caps
}
