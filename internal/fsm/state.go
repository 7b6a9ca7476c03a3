// Package fsm implements the per-peer BGP session state machine (RFC
// 4271 §8): the six states a session moves through from first contact
// to full route exchange, the OPEN/KEEPALIVE handshake, the
// ESTABLISHED message loop, and teardown. Unlike the RFC's Appendix,
// which models a session as a single state machine driven by 28 named
// events, this implementation collapses the optional-attribute event
// groups (DelayOpen, peer-oscillation damping, TCP-state tracking) that
// exist to support features this core does not implement, and instead
// drives the six mandatory states directly off the handful of inputs
// that matter: a TCP connection outcome, a decoded message, a timer
// firing, or a reactor-issued stop/reestablish request.
package fsm

import "fmt"

// State is one of the six BGP session states (RFC 4271 §8.2.1),
// encoded as disjoint bits so a transition can be validated with a
// single table lookup rather than a chain of equality checks.
type State int

const (
	IDLE State = 1 << iota
	ACTIVE
	CONNECT
	OPENSENT
	OPENCONFIRM
	ESTABLISHED
)

func (s State) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case ACTIVE:
		return "ACTIVE"
	case CONNECT:
		return "CONNECT"
	case OPENSENT:
		return "OPENSENT"
	case OPENCONFIRM:
		return "OPENCONFIRM"
	case ESTABLISHED:
		return "ESTABLISHED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// allowedFrom maps a destination state to the bitmask of states a
// transition into it may originate from. IDLE is reachable from
// anywhere (it is the universal reset); every other state has a
// narrower, RFC-faithful set of legal predecessors.
var allowedFrom = map[State]State{
	IDLE:        IDLE | ACTIVE | CONNECT | OPENSENT | OPENCONFIRM | ESTABLISHED,
	ACTIVE:      IDLE | ACTIVE | OPENSENT,
	CONNECT:     IDLE | CONNECT | ACTIVE,
	OPENSENT:    CONNECT,
	OPENCONFIRM: OPENSENT | OPENCONFIRM,
	ESTABLISHED: OPENCONFIRM | ESTABLISHED,
}

// invariantViolation panics: an illegal transition is a bug in this
// package, never a consequence of anything a peer can send, so it must
// not be handled like an ordinary session error.
type invariantViolation struct {
	from, to State
}

func (e invariantViolation) Error() string {
	return fmt.Sprintf("fsm: illegal transition %s -> %s", e.from, e.to)
}

// transition moves the session to state, panicking if the move is not
// in the RFC 4271 transition table: reaching an invariant violation
// means this package's own control flow is broken, not that the peer
// sent something unexpected.
func (f *FSM) transition(to State) {
	if f.state&allowedFrom[to] == 0 {
		panic(invariantViolation{from: f.state, to: to})
	}
	from := f.state
	f.state = to
	f.observedState.Store(int32(to))
	if from != to {
		f.Counters.StateChanges.Increment()
		if f.cb.OnStateChange != nil {
			f.cb.OnStateChange(from, to)
		}
	}
}
