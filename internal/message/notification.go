package message

// 4.5.  NOTIFICATION Message Format
//    A NOTIFICATION message is sent when an error condition is detected.
//    The BGP connection is closed immediately after it is sent.
//    In addition to the fixed-size BGP header, the NOTIFICATION message
//    contains the following fields:
//       0                   1                   2                   3
//       0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//       | Error code    | Error subcode |   Data (variable)             |
//       +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// *NotifyError, defined in errors.go, doubles as the in-memory and wire
// representation of this message: every codec error the fsm converts
// into an outbound NOTIFICATION is already in this shape.

// NewNotification builds a NOTIFICATION to send, independent of any
// decode failure (administrative shutdown, hold timer expiry, collision
// resolution, ...).
func NewNotification(code, subcode byte, data []byte) *NotifyError {
	return &NotifyError{Code: code, Subcode: subcode, Data: data}
}

// Bytes encodes the NOTIFICATION message body.
func (e *NotifyError) Bytes() []byte {
	body := make([]byte, 2+len(e.Data))
	body[0] = e.Code
	body[1] = e.Subcode
	copy(body[2:], e.Data)
	return body
}

// DecodeNotification parses a NOTIFICATION message body.
func DecodeNotification(b []byte) (*NotifyError, error) {
	if len(b) < 2 {
		return nil, notify(NotifyMessageHeader, SubHeaderBadMessageLength)
	}
	return &NotifyError{Code: b[0], Subcode: b[1], Data: append([]byte{}, b[2:]...)}, nil
}

// 6.4.  NOTIFICATION Message Error Handling
//
//    If a peer sends a NOTIFICATION message, and the receiver of the
//    message detects an error in that message, the receiver cannot use a
//    NOTIFICATION message to report this error back to the peer. Any
//    such error SHOULD be logged locally; there is no further
//    in-protocol recourse.
