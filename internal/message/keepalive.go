package message

import "time"

// BGP does not use any TCP-based, keep-alive mechanism to determine if
// peers are reachable. Instead, KEEPALIVE messages are exchanged between
// peers often enough not to cause the Hold Timer to expire. A reasonable
// maximum time between KEEPALIVE messages would be one third of the
// Hold Time interval.
const minKeepaliveInterval = 1 * time.Second

// If the negotiated Hold Time interval is zero, then periodic KEEPALIVE
// messages MUST NOT be sent.

// A KEEPALIVE message consists of only the message header and has a
// length of 19 octets.
type Keepalive struct{}

// Bytes returns the (empty) KEEPALIVE body.
func (Keepalive) Bytes() []byte { return nil }

// DecodeKeepalive validates that a KEEPALIVE body is exactly empty.
func DecodeKeepalive(b []byte) (Keepalive, error) {
	if len(b) != 0 {
		return Keepalive{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	return Keepalive{}, nil
}
