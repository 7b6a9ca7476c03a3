package fsm

import (
	"context"
	"errors"
	"time"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
	"github.com/Exa-Networks/exabgp-sub000/internal/timer"
)

// drainTick is how often the ESTABLISHED loop checks the outbound
// queues and the RIB for pending work between socket reads. It is the
// idiomatic-Go stand-in for "yield to the reactor": rather than a
// single cooperative thread polling every peer in turn, each session's
// own goroutine polls its own queues on this cadence.
const drainTick = 50 * time.Millisecond

type frameResult struct {
	typ  message.Type
	body interface{}
	err  error
}

// establishedLoop runs the ESTABLISHED state's message exchange until
// the session ends, by error, by NOTIFICATION either direction, or by
// a Stop/Reestablish request.
func (f *FSM) establishedLoop(ctx context.Context) error {
	keepaliveInterval := time.Duration(0)
	if f.negotiated.HoldTime > 0 {
		keepaliveInterval = time.Duration(f.negotiated.HoldTime) * time.Second / 3
	}
	holdDuration := time.Duration(f.negotiated.HoldTime) * time.Second
	f.writeDeadline = holdDuration

	keepaliveFire := make(chan struct{}, 1)
	holdFire := make(chan struct{}, 1)
	keepaliveTimer := timer.New(keepaliveInterval, func() { nonBlockingSignal(keepaliveFire) })
	holdTimer := timer.New(holdDuration, func() { nonBlockingSignal(holdFire) })
	defer keepaliveTimer.Stop()
	defer holdTimer.Stop()

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	msgCh := make(chan frameResult, 8)
	go f.establishedReader(readerCtx, msgCh)

	ticker := time.NewTicker(drainTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-f.stopCh:
			f.sendNotification(message.NewNotification(message.NotifyCease, message.SubCeaseAdministrativeShutdown, nil))
			return nil

		case <-f.reestablishCh:
			f.sendNotification(message.NewNotification(message.NotifyCease, message.SubCeaseOtherConfigurationChange, nil))
			return nil

		case <-holdFire:
			err := &message.NotifyError{Code: message.NotifyHoldTimerExpired}
			f.sendNotification(err)
			return err

		case <-keepaliveFire:
			if err := f.writeEstablished(message.EncodeMessage(message.TypeKeepalive, message.Keepalive{})); err != nil {
				return err
			}
			f.Counters.Sent.Increment()
			keepaliveTimer.Reset(keepaliveInterval)

		case res := <-msgCh:
			if res.err != nil {
				var notifyErr *message.NotifyError
				if errors.As(res.err, &notifyErr) {
					f.sendNotification(notifyErr)
				}
				return res.err
			}
			f.Counters.Received.Increment()
			holdTimer.Reset(holdDuration)
			if res.typ == message.TypeUpdate {
				f.Counters.UpdateRecv.Increment()
			}
			if res.typ == message.TypeNotification {
				n := res.body.(*message.NotifyError)
				if f.cb.OnNotification != nil {
					f.cb.OnNotification(n, false)
				}
				return n
			}
			if err := f.dispatch(res.typ, res.body); err != nil {
				return err
			}

		case <-ticker.C:
		}

		if err := f.drainOutbound(); err != nil {
			return err
		}
	}
}

func nonBlockingSignal(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// establishedReader continuously reads and decodes frames off the
// session's socket, handing each one to the main loop over ch. It
// exits on the first read or decode error, and on ctx cancellation.
func (f *FSM) establishedReader(ctx context.Context, ch chan<- frameResult) {
	for {
		frame, err := message.ReadFrame(f.conn, f.negotiated.MaxMessageLength())
		if err != nil {
			select {
			case ch <- frameResult{err: err}:
			case <-ctx.Done():
			}
			return
		}
		typ, body, err := message.DecodeMessage(frame, f.negotiated)
		select {
		case ch <- frameResult{typ: typ, body: body, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (f *FSM) dispatch(typ message.Type, body interface{}) error {
	switch typ {
	case message.TypeUpdate:
		if f.cb.OnUpdate != nil {
			f.cb.OnUpdate(body.(message.Update))
		}
	case message.TypeRouteRefresh:
		rr := body.(message.RouteRefresh)
		if f.cb.OnRefresh != nil {
			f.cb.OnRefresh(rr)
		}
		f.handleRefresh(rr)
	case message.TypeOperational:
		if f.cb.OnOperational != nil {
			f.cb.OnOperational(body.(message.Operational))
		}
	case message.TypeKeepalive:
		// hold timer already reset by the caller; nothing else to do.
	case message.TypeOpen:
		// RFC 4271 §9: an OPEN is illegal once ESTABLISHED.
		return &message.NotifyError{Code: message.NotifyFSM}
	}
	return nil
}

// handleRefresh re-queues this peer's last-sent routes in response to
// a ROUTE-REFRESH, bracketing the replay with begin/end-of-RIB markers
// when the enhanced variant (RFC 7313) was negotiated.
func (f *FSM) handleRefresh(rr message.RouteRefresh) {
	enhanced := f.negotiated.RouteRefresh == message.RouteRefreshEnhanced
	if enhanced {
		begin := message.RouteRefresh{Family: rr.Family, Subtype: message.RefreshBegin}
		f.writeEstablished(message.EncodeMessage(message.TypeRouteRefresh, begin))
		f.pendingRefreshEnd = append(f.pendingRefreshEnd, rr.Family)
	}
	fam := rr.Family
	f.rib.Resend(&fam)
}

// drainOutbound runs the ESTABLISHED loop's per-pass send work: one
// queued OPERATIONAL, one queued ROUTE-REFRESH, and up to K UPDATEs
// from the RIB, followed by End-of-RIB/refresh-end markers once the
// RIB has nothing left pending. A RIB backlog that has hit MAX_BACKLOG
// tears the session down with NOTIFICATION (6,2) rather than draining
// further, since the bound exists precisely to stop growing it.
func (f *FSM) drainOutbound() error {
	if f.rib.BacklogOverflowed() {
		notif := message.NewNotification(message.NotifyCease, message.SubCeaseAdministrativeShutdown, nil)
		f.sendNotification(notif)
		return notif
	}

	if raw, ok := f.opQueue.Pop(); ok {
		if err := f.writeEstablished(raw); err != nil {
			return err
		}
		f.Counters.Sent.Increment()
	}
	if raw, ok := f.refreshQueue.Pop(); ok {
		if err := f.writeEstablished(raw); err != nil {
			return err
		}
		f.Counters.Sent.Increment()
	}

	updates := f.rib.ProduceUpdates(f.negotiated, f.cfg.updatesPerIteration())
	for _, u := range updates {
		if err := f.writeEstablished(message.EncodeMessage(message.TypeUpdate, u)); err != nil {
			return err
		}
		f.Counters.Sent.Increment()
		f.Counters.UpdateSent.Increment()
	}

	if !f.rib.Pending() {
		f.rib.FireFlushCallbacks()
		if err := f.sendEORIfNeeded(); err != nil {
			return err
		}
		if err := f.flushRefreshEnds(); err != nil {
			return err
		}
	}
	return nil
}

func (f *FSM) sendEORIfNeeded() error {
	families := append([]bgp.Family{bgp.IPv4Unicast}, f.negotiated.Families...)
	for _, fam := range families {
		if f.eorSent[fam] {
			continue
		}
		var upd message.Update
		if fam == bgp.IPv4Unicast {
			upd = message.NewIPv4EOR()
		} else {
			upd = message.NewMPEOR(fam)
		}
		if err := f.writeEstablished(message.EncodeMessage(message.TypeUpdate, upd)); err != nil {
			return err
		}
		f.eorSent[fam] = true
	}
	return nil
}

func (f *FSM) flushRefreshEnds() error {
	for _, fam := range f.pendingRefreshEnd {
		end := message.RouteRefresh{Family: fam, Subtype: message.RefreshEnd}
		if err := f.writeEstablished(message.EncodeMessage(message.TypeRouteRefresh, end)); err != nil {
			return err
		}
	}
	f.pendingRefreshEnd = nil
	return nil
}
