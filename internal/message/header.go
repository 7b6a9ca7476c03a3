package message

import (
	"bytes"
	"encoding/binary"
)

// Type is the one-octet BGP message type carried in every header.
type Type byte

const (
	TypeOpen         Type = 1
	TypeUpdate       Type = 2
	TypeNotification Type = 3
	TypeKeepalive    Type = 4
	TypeRouteRefresh Type = 5
	TypeOperational  Type = 6
)

func (t Type) String() string {
	switch t {
	case TypeOpen:
		return "OPEN"
	case TypeUpdate:
		return "UPDATE"
	case TypeNotification:
		return "NOTIFICATION"
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeRouteRefresh:
		return "ROUTE-REFRESH"
	case TypeOperational:
		return "OPERATIONAL"
	default:
		return "UNKNOWN"
	}
}

const (
	MarkerLength = 16
	lengthLength = 2
	typeLength   = 1
	// HeaderLength is the fixed 19-octet marker+length+type preamble
	// every BGP message starts with.
	HeaderLength = MarkerLength + lengthLength + typeLength

	// MinMessageLength is the smallest legal total message length
	// (a bare KEEPALIVE).
	MinMessageLength = HeaderLength
	// DefaultMaxMessageLength is the RFC 4271 ceiling used unless both
	// sides negotiate the extended-message capability.
	DefaultMaxMessageLength = 4096
	// ExtendedMaxMessageLength is the RFC 8654 ceiling available once
	// extended-message is negotiated.
	ExtendedMaxMessageLength = 65535

	MinOpenMessageLength   = 29
	MinUpdateMessageLength = 23
	MinNotificationLength  = 21
)

// marker is the mandatory all-ones 16-octet BGP header marker. BGP never
// uses the marker for authentication (that role moved to TCP-MD5/TTL
// security), so it is always this fixed pattern.
func marker() [MarkerLength]byte {
	var m [MarkerLength]byte
	for i := range m {
		m[i] = 0xff
	}
	return m
}

// Header is the decoded 19-octet message preamble.
type Header struct {
	Length uint16 // total length including the header itself
	Type   Type
}

// EncodeHeader writes the 19-octet preamble for a body of the given
// length and type.
func EncodeHeader(bodyLen int, typ Type) []byte {
	buf := make([]byte, HeaderLength)
	m := marker()
	copy(buf[:MarkerLength], m[:])
	binary.BigEndian.PutUint16(buf[MarkerLength:MarkerLength+lengthLength], uint16(HeaderLength+bodyLen))
	buf[MarkerLength+lengthLength] = byte(typ)
	return buf
}

// DecodeHeader validates the marker and extracts length/type. maxLen is
// the negotiated message size ceiling (4096, or 65535 with extended
// message).
func DecodeHeader(b []byte, maxLen int) (Header, error) {
	if len(b) < HeaderLength {
		return Header{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	m := marker()
	if !bytes.Equal(b[:MarkerLength], m[:]) {
		return Header{}, notify(NotifyMessageHeader, SubHeaderConnectionNotSynchronized)
	}
	length := binary.BigEndian.Uint16(b[MarkerLength : MarkerLength+lengthLength])
	if int(length) < MinMessageLength || int(length) > maxLen {
		return Header{}, notify(NotifyMessageHeader, SubHeaderBadMessageLength, byte(length>>8), byte(length))
	}
	typ := Type(b[MarkerLength+lengthLength])
	switch typ {
	case TypeOpen, TypeUpdate, TypeNotification, TypeKeepalive, TypeRouteRefresh, TypeOperational:
	default:
		return Header{}, notify(NotifyMessageHeader, SubHeaderBadMessageType, byte(typ))
	}
	return Header{Length: length, Type: typ}, nil
}

// reader is a small bounds-checked cursor over a message body. Every
// decoder in this package uses it instead of indexing the slice
// directly, so a truncated or adversarial body produces a NotifyError
// instead of a panic.
type reader struct {
	buf []byte
	pos int
}

func newReader(b []byte) *reader {
	return &reader{buf: b}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) byte() (byte, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
