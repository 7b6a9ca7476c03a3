// Package network wraps the TCP transport a BGP session runs over: the
// well-known port, connection establishment, local-identifier
// discovery, and the two security options RFC 4271's appendix calls
// out as expected of a compliant implementation (TCP-MD5 and the
// generalized TTL security mechanism).
package network

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Port is BGP's IANA-assigned well-known TCP port.
const Port = 179

// Dial opens an active TCP connection to a peer. The caller is
// responsible for setting any session security (SetMD5/SetTTLSecurity)
// on the returned connection before the FSM starts exchanging OPEN
// messages.
func Dial(ctx context.Context, addr net.IP) (net.Conn, error) {
	d := net.Dialer{Timeout: 30 * time.Second}
	return d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr.String(), Port))
}

// Listen opens the passive listening socket a reactor accepts incoming
// peer connections on.
func Listen(bindAddr string) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf("%s:%d", bindAddr, Port))
}

// DialSecure opens an active TCP connection with RFC 2385 TCP-MD5 and/or
// RFC 5082 GTSM applied before the SYN goes out. Both options must be on
// the socket before the three-way handshake completes, which is why
// this does not just call Dial followed by SetMD5/SetTTLSecurity: by
// the time Dial returns, the handshake the options were meant to
// protect has already happened.
func DialSecure(ctx context.Context, addr net.IP, md5Password string, ttlMinHops int) (net.Conn, error) {
	d := net.Dialer{
		Timeout: 30 * time.Second,
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			ctrlErr := c.Control(func(fd uintptr) {
				if md5Password != "" {
					if sockErr = setsockoptMD5(int(fd), addr, md5Password); sockErr != nil {
						return
					}
				}
				if ttlMinHops > 0 {
					sockErr = applyTTLSecurity(int(fd), ttlMinHops)
				}
			})
			if ctrlErr != nil {
				return ctrlErr
			}
			return sockErr
		},
	}
	return d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr.String(), Port))
}

// ListenerSetMD5 installs an RFC 2385 TCP-MD5 key on the shared
// listening socket for one peer address: on Linux, a listener can carry
// several per-peer keys simultaneously, and the kernel matches incoming
// SYNs against them before the accept this core ever sees.
func ListenerSetMD5(l net.Listener, peer net.IP, password string) error {
	tl, ok := l.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("network: not a TCP listener")
	}
	raw, err := tl.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = setsockoptMD5(int(fd), peer, password)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// FindBGPIdentifier picks a default router identifier from the host's
// configured interfaces when one is not explicitly configured: the
// first globally routable IPv4 address found.
func FindBGPIdentifier() (uint32, error) {
	ifs, err := net.Interfaces()
	if err != nil {
		return 0, err
	}
	for _, v := range ifs {
		addrs, err := v.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			if ip.To4() == nil {
				continue
			}
			if ip.IsGlobalUnicast() {
				return ipToUint32(ip), nil
			}
		}
	}
	return 0, fmt.Errorf("no valid BGP identifier found on any interface")
}

func ipToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	return binary.BigEndian.Uint32(ip4)
}

// Uint32ToIP converts a 4-octet identifier back to a net.IP.
func Uint32ToIP(i uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, i)
	return ip
}

// tcpConn extracts the syscall.RawConn needed to touch socket options
// directly; BGP session security lives below what net.Conn exposes.
func tcpConn(conn net.Conn) (*net.TCPConn, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("network: not a TCP connection")
	}
	return tc, nil
}

// SetMD5 installs an RFC 2385 TCP-MD5 signature option keyed by
// password on the connection's socket, authenticating every segment
// of the session against route-hijack via TCP.
func SetMD5(conn net.Conn, peer net.IP, password string) error {
	tc, err := tcpConn(conn)
	if err != nil {
		return err
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = setsockoptMD5(int(fd), peer, password)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// SetTTLSecurity implements the Generalized TTL Security Mechanism
// (RFC 5082/GTSM): outgoing packets are sent with TTL 255, and incoming
// packets are rejected below minTTL, making off-path spoofing require
// on-path positioning within minHops of the peer.
func SetTTLSecurity(conn net.Conn, minHops int) error {
	tc, err := tcpConn(conn)
	if err != nil {
		return err
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = applyTTLSecurity(int(fd), minHops)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

func applyTTLSecurity(fd int, minHops int) error {
	minTTL := 256 - minHops
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MINTTL, minTTL); err != nil {
		return err
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TTL, 255)
}
