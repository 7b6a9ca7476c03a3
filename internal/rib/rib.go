// Package rib implements the outgoing side of RFC 4271 §3.2: the
// Adj-RIB-Out for one peer, plus the bookkeeping a long-lived session
// needs around it — de-duplication against what was last sent,
// watchdog-gated holdback, and packing pending changes into UPDATE
// messages that respect the negotiated message-size ceiling.
//
// This package only ever looks downstream, towards the wire. Learning
// routes from a peer (Adj-RIB-In) and the decision process that derives
// Loc-RIB from it are out of scope here; the fsm package owns dispatch
// of received UPDATEs to whatever installs them.
package rib

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
	"github.com/Exa-Networks/exabgp-sub000/internal/queue"
)

// Change is one pending or last-sent routing change: an announcement
// (Withdraw=false, Attributes populated) or a withdrawal (Withdraw=true,
// Attributes ignored). Watchdog, if non-empty, ties this change to a
// named watchdog: it is held back from the peer while that watchdog is
// in its withdraw state (see WatchdogSet).
type Change struct {
	Family     bgp.Family
	NLRI       message.NLRI
	Attributes message.Attributes
	Withdraw   bool
	Watchdog   string
}

// key identifies a Change's destination, independent of its attributes:
// two Changes with the same key replace one another in the Adj-RIB-Out.
func (c Change) key() string {
	return fmt.Sprintf("%d/%d/%x", c.Family.AFI, c.Family.SAFI, c.NLRI.Encode())
}

// RIB is one peer's Adj-RIB-Out.
type RIB struct {
	mu sync.Mutex

	lastSent map[string]Change
	pending  []Change

	// maxBacklog bounds pending: the same MAX_BACKLOG discipline
	// internal/queue applies to the operational/refresh send queues,
	// applied here to the Changes backlog that actually grows large
	// during an initial table dump. overflowed latches once pending has
	// hit that bound, for the FSM to observe and tear the session down;
	// it is cleared by Uncache on the next session reset.
	maxBacklog int
	overflowed bool

	watchdogAnnounce map[string]bool
	held             map[string][]Change

	flushCallbacks []func()
	flushArmed     bool
}

// New creates an empty Adj-RIB-Out bounded to the default MAX_BACKLOG.
func New() *RIB {
	return NewCapacity(queue.MaxBacklog)
}

// NewCapacity creates an empty Adj-RIB-Out whose pending backlog is
// bounded to maxBacklog Changes.
func NewCapacity(maxBacklog int) *RIB {
	return &RIB{
		lastSent:         map[string]Change{},
		watchdogAnnounce: map[string]bool{},
		held:             map[string][]Change{},
		maxBacklog:       maxBacklog,
	}
}

// Insert enqueues change for sending, de-duplicating it against the
// last change sent for the same destination. An announcement identical
// (by attribute fingerprint) to what was already sent is dropped
// silently; a withdrawal for a destination never announced is dropped
// too, since there is nothing for the peer to forget.
func (r *RIB) Insert(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertLocked(c)
}

// ErrSplitNotAllowed is returned by InsertSplit when a peer's
// configuration has not opted into INTERNAL_SPLIT.
var ErrSplitNotAllowed = errors.New("rib: split not allowed for this peer")

// InsertSplit is Insert for a Change carrying a split request: when
// allowed is true it fans c out into its more-specific Changes (see
// Split) and inserts each; when false it refuses outright rather than
// silently falling back to announcing the aggregate, since a peer that
// asked to be free of a surprising fan-out should get an error, not a
// quietly different route.
func (r *RIB) InsertSplit(c Change, opt SplitOption, allowed bool) error {
	if !allowed {
		return ErrSplitNotAllowed
	}
	parts, err := Split(c, opt)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range parts {
		r.insertLocked(p)
	}
	return nil
}

func (r *RIB) insertLocked(c Change) {
	if c.Watchdog != "" && !r.watchdogAnnounce[c.Watchdog] {
		r.held[c.Watchdog] = append(r.held[c.Watchdog], c)
		return
	}
	r.enqueueLocked(c)
}

func (r *RIB) enqueueLocked(c Change) {
	key := c.key()
	prev, known := r.lastSent[key]
	switch {
	case c.Withdraw && !known:
		return
	case !c.Withdraw && known && !prev.Withdraw && prev.Attributes.Fingerprint() == c.Attributes.Fingerprint():
		return
	}
	if !r.appendPendingLocked(c) {
		return
	}
	if c.Withdraw {
		delete(r.lastSent, key)
	} else {
		r.lastSent[key] = c
	}
}

// appendPendingLocked appends c to pending, honoring maxBacklog. Once
// the backlog is at capacity it latches overflowed and drops c rather
// than growing without bound; the caller is responsible for noticing
// overflowed and tearing the session down.
func (r *RIB) appendPendingLocked(c Change) bool {
	if len(r.pending) >= r.maxBacklog {
		r.overflowed = true
		return false
	}
	r.pending = append(r.pending, c)
	return true
}

// BacklogOverflowed reports whether the pending backlog has hit
// maxBacklog since the last reset. The FSM polls this on its
// ESTABLISHED-state drain cadence and tears the session down with
// NOTIFICATION (6,2) on the first true it observes.
func (r *RIB) BacklogOverflowed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overflowed
}

// ReplaceReload reconciles a configuration reload: withdrawals are
// queued for every destination in previous absent from current, and
// announcements/updates are queued for every destination in current
// that differs from previous (Insert's fingerprint check naturally
// absorbs destinations that are unchanged).
func (r *RIB) ReplaceReload(previous, current []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentKeys := make(map[string]bool, len(current))
	for _, c := range current {
		currentKeys[c.key()] = true
	}
	for _, p := range previous {
		if !currentKeys[p.key()] {
			p.Withdraw = true
			r.enqueueLocked(p)
		}
	}
	for _, c := range current {
		r.enqueueLocked(c)
	}
}

// ReplaceRestart reconciles a session (re-)establishment: previous is
// what the peer must forget (withdrawn unconditionally, since the prior
// session's Adj-RIB-Out state does not survive a reconnect without
// graceful restart) and current is announced fresh.
func (r *RIB) ReplaceRestart(previous, current []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentKeys := make(map[string]bool, len(current))
	for _, c := range current {
		currentKeys[c.key()] = true
	}
	for _, p := range previous {
		if !currentKeys[p.key()] {
			p.Withdraw = true
			if r.appendPendingLocked(p) {
				delete(r.lastSent, p.key())
			}
		}
	}
	for _, c := range current {
		if r.appendPendingLocked(c) {
			r.lastSent[c.key()] = c
		}
	}
}

// Uncache drops the last-sent map and clears the backlog-overflow
// latch, used on a hard reset where the peer connection's prior state
// can no longer be assumed live.
func (r *RIB) Uncache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSent = map[string]Change{}
	r.overflowed = false
}

// Reset reconciles a session teardown/reestablishment: the peer's
// adj-RIB-in does not survive a reconnect without graceful restart, so
// every destination this RIB had last sent is queued for a fresh,
// unconditional announcement rather than left to the ordinary
// fingerprint dedup (which would otherwise treat an unchanged route as
// already delivered and silently drop it, even though the peer has in
// fact forgotten it). Called by the FSM on every transition out of
// ESTABLISHED.
func (r *RIB) Reset() {
	r.mu.Lock()
	previous := make([]Change, 0, len(r.lastSent))
	for _, c := range r.lastSent {
		previous = append(previous, c)
	}
	r.mu.Unlock()

	r.Uncache()
	r.ReplaceRestart(previous, previous)
}

// RegisterFlushCallback subscribes f to be called the next time the
// pending queue fully drains. Callbacks fire once and are discarded;
// callers needing to observe every drain re-register after each call.
func (r *RIB) RegisterFlushCallback(f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushCallbacks = append(r.flushCallbacks, f)
}

// FireFlushCallbacks invokes and clears every registered flush
// callback. The caller is responsible for only calling this once
// Pending() has become false, typically after draining ProduceUpdates.
func (r *RIB) FireFlushCallbacks() {
	r.mu.Lock()
	callbacks := r.flushCallbacks
	r.flushCallbacks = nil
	r.mu.Unlock()
	for _, f := range callbacks {
		f()
	}
}

// Resend re-queues every last-sent entry, optionally restricted to one
// family, for retransmission in response to a ROUTE-REFRESH. The caller
// is responsible for bracketing the resulting ProduceUpdates drain with
// begin-of-rib/end-of-rib ROUTE-REFRESH markers when the enhanced
// variant is negotiated.
func (r *RIB) Resend(family *bgp.Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.lastSent {
		if family != nil && c.Family != *family {
			continue
		}
		r.appendPendingLocked(c)
	}
}

// WatchdogSet toggles the named watchdog. Transitioning to announce
// releases every Change held back while it was in its withdraw state;
// transitioning to withdraw emits a withdrawal for every currently-sent
// Change tagged with name. Untagged Changes are unaffected either way.
func (r *RIB) WatchdogSet(name string, announce bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watchdogAnnounce[name] == announce {
		return
	}
	r.watchdogAnnounce[name] = announce

	if announce {
		held := r.held[name]
		delete(r.held, name)
		for _, c := range held {
			r.enqueueLocked(c)
		}
		return
	}

	for key, c := range r.lastSent {
		if c.Watchdog != name || c.Withdraw {
			continue
		}
		withdrawal := c
		withdrawal.Withdraw = true
		if r.appendPendingLocked(withdrawal) {
			delete(r.lastSent, key)
		}
	}
}

// Pending reports whether the outbound queue is nonempty.
func (r *RIB) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending) > 0
}

// PendingCount reports how many Changes await packing into an UPDATE,
// for metrics reporting.
func (r *RIB) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// perUpdateOverhead is the UPDATE body's fixed non-NLRI framing: the
// withdrawn-routes length field, the total-path-attribute-length field,
// and (conservatively) no attributes at all — the actual attribute
// block is added on top when sizing an announcement batch.
const perUpdateOverhead = 2 + 2

// ProduceUpdates pops up to limit batches of same-destination-class
// pending Changes and packs each batch into one UPDATE message, never
// mixing announcements and withdrawals or differing attribute sets in
// a single message, and never exceeding the negotiated message length.
func (r *RIB) ProduceUpdates(n message.Negotiated, limit int) []message.Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updates []message.Update
	for len(updates) < limit && len(r.pending) > 0 {
		batch := r.takeBatchLocked(n)
		if len(batch) == 0 {
			break
		}
		updates = append(updates, buildUpdate(batch, n))
	}
	return updates
}

// takeBatchLocked removes and returns a prefix of r.pending that shares
// a family, direction, and (for announcements) attribute fingerprint,
// stopping early if packing another Change would exceed the negotiated
// message length.
func (r *RIB) takeBatchLocked(n message.Negotiated) []Change {
	if len(r.pending) == 0 {
		return nil
	}
	head := r.pending[0]
	budget := n.MaxMessageLength() - message.HeaderLength - perUpdateOverhead
	if !head.Withdraw {
		budget -= len(head.Attributes.Encode())
	}

	batch := make([]Change, 0, len(r.pending))
	used := 0
	i := 0
	for ; i < len(r.pending); i++ {
		c := r.pending[i]
		if c.Family != head.Family || c.Withdraw != head.Withdraw {
			break
		}
		if !c.Withdraw && c.Attributes.Fingerprint() != head.Attributes.Fingerprint() {
			break
		}
		entryLen := len(c.NLRI.Encode())
		if len(batch) > 0 && used+entryLen > budget {
			break
		}
		batch = append(batch, c)
		used += entryLen
	}
	r.pending = r.pending[i:]
	return batch
}

// buildUpdate serializes one batch of same-class Changes into an
// UPDATE. IPv4 unicast announcements/withdrawals without add-path use
// the classic top-level fields; every other family, and IPv4 unicast
// itself under add-path, travels inside MP_REACH_NLRI/MP_UNREACH_NLRI.
func buildUpdate(batch []Change, n message.Negotiated) message.Update {
	family := batch[0].Family
	withdraw := batch[0].Withdraw
	classic := family == bgp.IPv4Unicast && !n.AddPathSend[family]

	nlri := make([]message.NLRI, 0, len(batch))
	for _, c := range batch {
		nlri = append(nlri, c.NLRI)
	}

	if withdraw {
		if classic {
			return message.Update{Withdrawn: nlri}
		}
		return message.Update{
			Attributes: message.Attributes{message.MPUnreachNLRI{Family: family, NLRI: nlri}},
		}
	}

	attrs := append(message.Attributes{}, batch[0].Attributes...)
	if classic {
		return message.Update{Attributes: attrs, NLRI: nlri}
	}
	var nextHop net.IP
	if mp, ok := attrs.Get(message.AttrNextHop); ok {
		nextHop = net.IP(mp.Value())
	}
	attrs = append(attrs, message.MPReachNLRI{Family: family, NextHop: nextHop, NLRI: nlri})
	return message.Update{Attributes: attrs}
}
