package rib

import (
	"fmt"
	"math/big"
	"net"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
)

// SplitOption configures INTERNAL_SPLIT fan-out for one Change:
// breaking a single announced prefix into a set of more-specific
// prefixes of Length bits, each carrying the original's attributes.
// It is never derived from a route's attributes on its own; a caller
// must gate it behind the peer's own configuration (PeerConfig in
// internal/config), since the same more-specific prefixes advertised
// to a peer that didn't ask for them is a real routing-policy surprise.
type SplitOption struct {
	Length int // the more-specific mask length to split into
}

// Split breaks c into 2^(opt.Length-originalMask) more-specific
// Changes that evenly cover the original prefix's address range, each
// opt.Length bits long and carrying c's attributes and watchdog
// unchanged. Splitting only applies to plain (prefix, mask) unicast or
// multicast NLRI; c is returned unchanged (as a single-element slice)
// when opt.Length is not strictly more specific than the prefix
// already is, matching the original implementation's no-op case for
// an aggregate or identically-sized request.
func Split(c Change, opt SplitOption) ([]Change, error) {
	n, ok := c.NLRI.(message.IPAddrFamily)
	if !ok {
		return nil, fmt.Errorf("rib: split only supports plain prefix NLRI, got %T", c.NLRI)
	}
	if opt.Length <= n.Length {
		return []Change{c}, nil
	}

	totalBits := 32
	if n.Family().AFI == bgp.AFIIPv6 {
		totalBits = 128
	}
	if opt.Length > totalBits {
		return nil, fmt.Errorf("rib: split length /%d exceeds address width", opt.Length)
	}
	addrBytes := totalBits / 8

	ip := ipToBigInt(n.Prefix, addrBytes)
	increment := new(big.Int).Lsh(big.NewInt(1), uint(totalBits-opt.Length))
	count := new(big.Int).Lsh(big.NewInt(1), uint(opt.Length-n.Length))
	if !count.IsInt64() {
		return nil, fmt.Errorf("rib: split would generate an unreasonable number of routes")
	}

	out := make([]Change, 0, count.Int64())
	cur := new(big.Int).Set(ip)
	for i := int64(0); i < count.Int64(); i++ {
		child := c
		child.NLRI = message.NewIPAddrFamily(n.Family(), bigIntToIP(cur, addrBytes), opt.Length)
		out = append(out, child)
		cur.Add(cur, increment)
	}
	return out, nil
}

func ipToBigInt(ip net.IP, addrBytes int) *big.Int {
	var raw []byte
	if addrBytes == 16 {
		raw = ip.To16()
	} else {
		raw = ip.To4()
	}
	return new(big.Int).SetBytes(raw)
}

func bigIntToIP(v *big.Int, addrBytes int) net.IP {
	raw := v.Bytes()
	out := make([]byte, addrBytes)
	copy(out[addrBytes-len(raw):], raw)
	if addrBytes == 4 {
		return net.IPv4(out[0], out[1], out[2], out[3])
	}
	return net.IP(out)
}
