package fsm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/counter"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
	"github.com/Exa-Networks/exabgp-sub000/internal/network"
	"github.com/Exa-Networks/exabgp-sub000/internal/queue"
	"github.com/Exa-Networks/exabgp-sub000/internal/rib"
)

var errStopped = errors.New("fsm: stopped")

// FSM drives one peer's session through RFC 4271 §8's six states. One
// FSM runs on one goroutine for its entire life: every read from the
// peer's socket, every timer firing, and every command from the
// reactor funnels through that goroutine's Run loop, so nothing inside
// an FSM ever needs a lock. The RIB it is built with is exclusively
// this peer's Adj-RIB-Out and is never shared with another session.
type FSM struct {
	cfg Config
	rib *rib.RIB
	cb  Callbacks
	log *zap.Logger

	state      State
	conn       net.Conn
	negotiated message.Negotiated

	// writeDeadline bounds how long an ESTABLISHED-state write may
	// block, so a peer whose TCP receive window has stuck at zero
	// cannot hold this goroutine (and its RIB backlog) forever. Set
	// from the negotiated hold time at the top of each establishedLoop;
	// zero (hold time negotiated to "no timer") disables the bound.
	writeDeadline time.Duration

	incoming chan net.Conn

	opQueue      *queue.Queue
	refreshQueue *queue.Queue

	connectRetryCounter int
	backoff             time.Duration

	// observedState/observedRetries mirror state/connectRetryCounter for
	// readers outside the session's own goroutine (the metrics sampler):
	// everything else on FSM is owned exclusively by Run and must never
	// be touched concurrently, but a gauge reader only needs an
	// eventually-consistent snapshot.
	observedState   atomic.Int32
	observedRetries atomic.Int64

	stopCh        chan struct{}
	reestablishCh chan struct{}

	eorSent           map[bgp.Family]bool
	pendingRefreshEnd []bgp.Family

	Counters Counters
}

// Counters tracks per-session message traffic. Every counter is safe
// to read from another goroutine (the metrics HTTP handler) while this
// session's own loop keeps incrementing it.
type Counters struct {
	Sent         *counter.Counter
	Received     *counter.Counter
	UpdateSent   *counter.Counter
	UpdateRecv   *counter.Counter
	Notification *counter.Counter
	StateChanges *counter.Counter
}

func newCounters() Counters {
	return Counters{
		Sent:         counter.New(),
		Received:     counter.New(),
		UpdateSent:   counter.New(),
		UpdateRecv:   counter.New(),
		Notification: counter.New(),
		StateChanges: counter.New(),
	}
}

// New builds a session for one peer. The RIB is expected to already be
// populated (or populated concurrently as configuration streams in);
// the FSM drains it via ProduceUpdates/Pending, and also calls Reset
// when a session leaves ESTABLISHED, Resend on a ROUTE-REFRESH, and
// BacklogOverflowed/FireFlushCallbacks from the ESTABLISHED loop.
func New(cfg Config, r *rib.RIB, cb Callbacks, log *zap.Logger) *FSM {
	f := &FSM{
		cfg:           cfg,
		rib:           r,
		cb:            cb,
		log:           log,
		state:         IDLE,
		incoming:      make(chan net.Conn, 1),
		opQueue:       queue.New(),
		refreshQueue:  queue.New(),
		stopCh:        make(chan struct{}),
		reestablishCh: make(chan struct{}, 1),
		eorSent:       map[bgp.Family]bool{},
		Counters:      newCounters(),
	}
	f.observedState.Store(int32(IDLE))
	return f
}

// State returns a best-effort snapshot of the session's current state,
// safe to call from outside the FSM's own goroutine (e.g. the metrics
// sampler).
func (f *FSM) State() State { return State(f.observedState.Load()) }

// ConnectRetryCount returns a best-effort snapshot of how many times
// this session has attempted to connect since it last reached
// ESTABLISHED.
func (f *FSM) ConnectRetryCount() int { return int(f.observedRetries.Load()) }

// OutboundBacklog returns the current depth of the queued OPERATIONAL
// and ROUTE-REFRESH backlogs, for metrics reporting.
func (f *FSM) OutboundBacklog() (operational, refresh int) {
	return f.opQueue.Length(), f.refreshQueue.Length()
}

// HandleIncoming hands the FSM a TCP connection the reactor's listener
// just accepted for this peer's address. Outside of collision
// resolution there is at most one useful inbound connection at a time;
// a second arrival while one is already queued replaces it, since the
// stale one is presumably superseded.
func (f *FSM) HandleIncoming(conn net.Conn) {
	select {
	case old := <-f.incoming:
		old.Close()
	default:
	}
	select {
	case f.incoming <- conn:
	default:
		conn.Close()
	}
}

// Stop requests an administrative shutdown: the session sends (6,2) if
// established, transitions to IDLE, and Run returns instead of
// reconnecting.
func (f *FSM) Stop() {
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
}

// Reestablish requests the session tear down with (6,3) and reconnect,
// used after a configuration reload that changes this peer materially.
func (f *FSM) Reestablish() {
	select {
	case f.reestablishCh <- struct{}{}:
	default:
	}
}

// SendOperational enqueues an OPERATIONAL message for the ESTABLISHED
// loop to send. It returns an error (never blocking) if the outbound
// backlog is full.
func (f *FSM) SendOperational(op message.Operational) error {
	return f.opQueue.Push(message.EncodeMessage(message.TypeOperational, op))
}

// SendRefresh enqueues a ROUTE-REFRESH request.
func (f *FSM) SendRefresh(rr message.RouteRefresh) error {
	return f.refreshQueue.Push(message.EncodeMessage(message.TypeRouteRefresh, rr))
}

func (f *FSM) stopRequested() bool {
	select {
	case <-f.stopCh:
		return true
	default:
		return false
	}
}

// Run is the session's entire life cycle. It returns when Stop is
// called and the session has settled back in IDLE, or when ctx is
// canceled.
func (f *FSM) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch f.state {
		case IDLE:
			if f.stopRequested() {
				return nil
			}
			if f.cfg.MaxAttempts > 0 && f.connectRetryCounter >= f.cfg.MaxAttempts {
				return fmt.Errorf("fsm: %s exhausted %d connect attempts", f.cfg.PeerAddr, f.cfg.MaxAttempts)
			}
			if err := f.sleepBackoff(ctx); err != nil {
				return err
			}
			f.connectRetryCounter++
			f.observedRetries.Store(int64(f.connectRetryCounter))
			conn, err := f.obtainConnection(ctx)
			if err != nil {
				if errors.Is(err, errStopped) {
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.debugf("connect failed", zap.Stringer("peer", logIP{f.cfg.PeerAddr}), zap.Error(err))
				f.bumpBackoff()
				f.transition(IDLE)
				continue
			}
			f.conn = conn
			f.transition(CONNECT)

		case CONNECT:
			if err := f.sendOpen(); err != nil {
				f.abort(err)
				continue
			}
			f.transition(OPENSENT)

		case OPENSENT:
			peerOpen, err := f.awaitOpen(ctx)
			if err != nil {
				f.abort(err)
				continue
			}
			if err := f.completeOpenExchange(peerOpen); err != nil {
				f.abort(err)
				continue
			}
			f.transition(OPENCONFIRM)

		case OPENCONFIRM:
			if err := f.awaitConfirm(ctx); err != nil {
				f.abort(err)
				continue
			}
			f.connectRetryCounter = 0
			f.observedRetries.Store(0)
			f.backoff = 0
			f.eorSent = map[bgp.Family]bool{}
			f.transition(ESTABLISHED)
			if f.cb.OnEstablished != nil {
				f.cb.OnEstablished(f.negotiated)
			}

		case ESTABLISHED:
			err := f.establishedLoop(ctx)
			f.closeConn()
			f.rib.Reset()
			f.transition(IDLE)
			if err != nil {
				f.debugf("session ended", zap.Stringer("peer", logIP{f.cfg.PeerAddr}), zap.Error(err))
			}
		}
	}
}

type dialResult struct {
	conn net.Conn
	err  error
}

// obtainConnection returns the connection this session will run on: an
// inbound connection the reactor already handed us, or (for
// non-passive peers) whichever of a fresh outbound dial and a
// newly-arriving inbound connection completes first.
func (f *FSM) obtainConnection(ctx context.Context) (net.Conn, error) {
	select {
	case conn := <-f.incoming:
		return f.secureIncoming(conn)
	default:
	}
	if f.cfg.Passive {
		select {
		case conn := <-f.incoming:
			return f.secureIncoming(conn)
		case <-f.stopCh:
			return nil, errStopped
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	dialCh := make(chan dialResult, 1)
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		conn, err := network.DialSecure(dialCtx, f.cfg.PeerAddr, f.cfg.MD5Password, f.cfg.TTLSecurity)
		dialCh <- dialResult{conn, err}
	}()

	select {
	case conn := <-f.incoming:
		return f.secureIncoming(conn)
	case res := <-dialCh:
		return res.conn, res.err
	case <-f.stopCh:
		return nil, errStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// secureIncoming applies GTSM to a connection the reactor's listener
// accepted for us. TCP-MD5 on the inbound side is the listener's job
// (network.ListenerSetMD5), since it must be on the socket before the
// SYN the listener itself receives; by the time a connection reaches
// here only GTSM remains to be applied.
func (f *FSM) secureIncoming(conn net.Conn) (net.Conn, error) {
	if f.cfg.TTLSecurity > 0 {
		if err := network.SetTTLSecurity(conn, f.cfg.TTLSecurity); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func (f *FSM) sleepBackoff(ctx context.Context) error {
	if f.backoff <= 0 {
		return nil
	}
	select {
	case <-time.After(f.backoff):
		return nil
	case <-f.stopCh:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	minBackoff = 1 * time.Second
	maxBackoff = 2 * time.Minute
)

func (f *FSM) bumpBackoff() {
	if f.backoff <= 0 {
		f.backoff = minBackoff
		return
	}
	f.backoff *= 2
	if f.backoff > maxBackoff {
		f.backoff = maxBackoff
	}
}

func (f *FSM) closeConn() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

// abort handles any error surfaced while establishing a session: wire
// errors (*message.NotifyError) are sent back to the peer before the
// socket closes; transport errors just close it. Either way the
// session returns to IDLE through the normal transition path.
func (f *FSM) abort(err error) {
	var notifyErr *message.NotifyError
	if errors.As(err, &notifyErr) {
		f.sendNotification(notifyErr)
	}
	f.closeConn()
	f.transition(IDLE)
	f.bumpBackoff()
}

// writeEstablished writes one ESTABLISHED-state message, applying
// writeDeadline (see the FSM field doc) so a stalled socket surfaces
// as a write-timeout transport error instead of blocking forever.
func (f *FSM) writeEstablished(b []byte) error {
	if f.writeDeadline > 0 {
		f.conn.SetWriteDeadline(time.Now().Add(f.writeDeadline))
		defer f.conn.SetWriteDeadline(time.Time{})
	}
	_, err := f.conn.Write(b)
	return err
}

func (f *FSM) sendNotification(n *message.NotifyError) {
	if f.conn == nil {
		return
	}
	f.conn.Write(message.EncodeMessage(message.TypeNotification, n))
	f.Counters.Sent.Increment()
	f.Counters.Notification.Increment()
	if f.cb.OnNotification != nil {
		f.cb.OnNotification(n, true)
	}
}

func (f *FSM) sendOpen() error {
	offer := f.cfg.Offer
	hold := uint16(f.cfg.HoldTime / time.Second)
	open := message.NewOpen(f.cfg.LocalAS, f.cfg.LocalID, hold, offer)
	_, err := f.conn.Write(message.EncodeMessage(message.TypeOpen, open))
	if err == nil {
		f.Counters.Sent.Increment()
	}
	return err
}

// awaitOpen blocks for the peer's OPEN within the configured openwait,
// raising (5,1) (a Finite State Machine Error NOTIFICATION) when the
// read deadline expires first.
func (f *FSM) awaitOpen(ctx context.Context) (message.Open, error) {
	frame, err := f.readFrameWithin(ctx, f.cfg.OpenWait, message.Negotiated{})
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return message.Open{}, &message.NotifyError{Code: message.NotifyFSM, Subcode: 1}
		}
		return message.Open{}, err
	}
	typ, body, err := message.DecodeMessage(frame, message.Negotiated{})
	if err != nil {
		return message.Open{}, err
	}
	f.Counters.Received.Increment()
	if typ != message.TypeOpen {
		return message.Open{}, &message.NotifyError{Code: message.NotifyFSM}
	}
	open := body.(message.Open)
	return open, nil
}

func (f *FSM) completeOpenExchange(peerOpen message.Open) error {
	if err := peerOpen.Validate(f.cfg.PeerAS, f.cfg.LocalID, f.cfg.iBGP()); err != nil {
		return err
	}
	localOffer := f.cfg.Offer
	if f.cfg.LocalAS > 0xffff {
		localOffer.ASN4 = f.cfg.LocalAS
	}
	hold := uint16(f.cfg.HoldTime / time.Second)
	f.negotiated = message.Negotiate(f.cfg.LocalAS, peerOpen.EffectiveAS(), f.cfg.LocalID, peerOpen.Identifier, int(hold), int(peerOpen.HoldTime), localOffer, peerOpen.Offer)
	if _, err := f.conn.Write(message.EncodeMessage(message.TypeKeepalive, message.Keepalive{})); err != nil {
		return err
	}
	f.Counters.Sent.Increment()
	return nil
}

// awaitConfirm waits for the peer's KEEPALIVE (or an early NOTIFICATION)
// within the negotiated hold time, falling back to openwait when
// HoldTime negotiated to zero.
func (f *FSM) awaitConfirm(ctx context.Context) error {
	wait := time.Duration(f.negotiated.HoldTime) * time.Second
	if wait <= 0 {
		wait = f.cfg.OpenWait
	}
	for {
		frame, err := f.readFrameWithin(ctx, wait, f.negotiated)
		if err != nil {
			return err
		}
		typ, body, err := message.DecodeMessage(frame, f.negotiated)
		if err != nil {
			return err
		}
		f.Counters.Received.Increment()
		switch typ {
		case message.TypeKeepalive:
			return nil
		case message.TypeNotification:
			n := body.(*message.NotifyError)
			if f.cb.OnNotification != nil {
				f.cb.OnNotification(n, false)
			}
			return n
		default:
			// Anything else this early is tolerated only if it is a
			// KEEPALIVE/NOTIFICATION per RFC 4271 §8; everything else
			// is a protocol error.
			return &message.NotifyError{Code: message.NotifyFSM}
		}
	}
}

// readFrameWithin reads one frame, enforcing a deadline via the
// connection's own SetReadDeadline rather than a second goroutine.
func (f *FSM) readFrameWithin(ctx context.Context, d time.Duration, n message.Negotiated) ([]byte, error) {
	if d > 0 {
		f.conn.SetReadDeadline(time.Now().Add(d))
		defer f.conn.SetReadDeadline(time.Time{})
	}
	type result struct {
		frame []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		frame, err := message.ReadFrame(f.conn, n.MaxMessageLength())
		done <- result{frame, err}
	}()
	select {
	case r := <-done:
		return r.frame, r.err
	case <-ctx.Done():
		f.conn.SetReadDeadline(time.Now())
		<-done
		return nil, ctx.Err()
	}
}

func (f *FSM) debugf(msg string, fields ...zap.Field) {
	if f.log == nil {
		return
	}
	f.log.Debug(msg, fields...)
}

// logIP adapts net.IP to zap.Stringer without importing zap's own
// field helpers for something this small.
type logIP struct{ ip net.IP }

func (l logIP) String() string {
	if l.ip == nil {
		return "<nil>"
	}
	return l.ip.String()
}
