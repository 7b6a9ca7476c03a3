package message

import "io"

// ReadFrame reads exactly one complete, length-prefixed wire message
// (header included) from r, blocking until the whole frame arrives or
// the connection errors. maxLen is the negotiated message size ceiling
// used to reject an oversized length field before ever allocating for
// it.
func ReadFrame(r io.Reader, maxLen int) ([]byte, error) {
	hdr := make([]byte, HeaderLength)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	h, err := DecodeHeader(hdr, maxLen)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, h.Length)
	copy(frame, hdr)
	if _, err := io.ReadFull(r, frame[HeaderLength:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// Message is any decoded BGP message body paired with its header type.
type Message struct {
	Type Type
	Body interface{ Bytes() []byte }
}

// EncodeMessage frames a message body with its 19-octet header.
func EncodeMessage(typ Type, body interface{ Bytes() []byte }) []byte {
	b := body.Bytes()
	return append(EncodeHeader(len(b), typ), b...)
}

// DecodeMessage decodes one complete, already-framed wire message
// (header included) according to the session state negotiated so far.
// Before OPENCONFIRM, n is the zero value (asn4=false, no add-path, no
// extended message) since nothing has been negotiated yet; the fsm
// passes the real Negotiated once ESTABLISHED.
func DecodeMessage(b []byte, n Negotiated) (Type, interface{}, error) {
	hdr, err := DecodeHeader(b, n.MaxMessageLength())
	if err != nil {
		return 0, nil, err
	}
	body := b[HeaderLength:hdr.Length]

	switch hdr.Type {
	case TypeOpen:
		open, err := DecodeOpen(body)
		return hdr.Type, open, err
	case TypeUpdate:
		upd, err := DecodeUpdate(body, n)
		return hdr.Type, upd, err
	case TypeNotification:
		notif, err := DecodeNotification(body)
		return hdr.Type, notif, err
	case TypeKeepalive:
		ka, err := DecodeKeepalive(body)
		return hdr.Type, ka, err
	case TypeRouteRefresh:
		rr, err := DecodeRouteRefresh(body)
		return hdr.Type, rr, err
	case TypeOperational:
		op, err := DecodeOperational(body)
		return hdr.Type, op, err
	default:
		return 0, nil, notify(NotifyMessageHeader, SubHeaderBadMessageType, byte(hdr.Type))
	}
}
