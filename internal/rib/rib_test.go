package rib

import (
	"net"
	"testing"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
)

func announce(prefix string, bits int, pref uint32) Change {
	ip := net.ParseIP(prefix).To4()
	return Change{
		Family: bgp.IPv4Unicast,
		NLRI:   message.NewIPAddrFamily(bgp.IPv4Unicast, ip, bits),
		Attributes: message.Attributes{
			message.Origin{Code: 0},
			message.LocalPref{Value: pref},
		},
	}
}

func withdraw(prefix string, bits int) Change {
	c := announce(prefix, bits, 0)
	c.Withdraw = true
	c.Attributes = nil
	return c
}

func testNegotiated() message.Negotiated {
	return message.Negotiated{}
}

func TestInsertDedupsIdenticalAnnouncement(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0", 24, 100))
	r.Insert(announce("10.0.0.0", 24, 100))
	if got := len(r.pending); got != 1 {
		t.Fatalf("pending length = %d, want 1", got)
	}
}

func TestInsertDropsWithdrawOfUnknown(t *testing.T) {
	r := New()
	r.Insert(withdraw("10.0.0.0", 24))
	if r.Pending() {
		t.Fatal("withdraw of never-announced prefix should not enqueue")
	}
}

func TestInsertReplacesDifferingAttributes(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0", 24, 100))
	r.Insert(announce("10.0.0.0", 24, 200))
	if got := len(r.pending); got != 2 {
		t.Fatalf("pending length = %d, want 2", got)
	}
}

func TestReplaceReload(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0", 24, 100))
	updates := r.ProduceUpdates(testNegotiated(), 10)
	if len(updates) != 1 {
		t.Fatalf("initial drain produced %d updates, want 1", len(updates))
	}

	previous := []Change{announce("10.0.0.0", 24, 100)}
	current := []Change{announce("10.0.1.0", 24, 100)}
	r.ReplaceReload(previous, current)

	if !r.Pending() {
		t.Fatal("expected pending work after reload")
	}
	updates = r.ProduceUpdates(testNegotiated(), 10)
	if len(updates) != 2 {
		t.Fatalf("reload produced %d updates, want 2 (one withdraw, one announce)", len(updates))
	}
}

func TestWatchdogHoldsAndReleases(t *testing.T) {
	r := New()
	r.WatchdogSet("site-a", false)

	c := announce("10.0.0.0", 24, 100)
	c.Watchdog = "site-a"
	r.Insert(c)
	if r.Pending() {
		t.Fatal("change tagged with a withdrawn watchdog should be held, not queued")
	}

	r.WatchdogSet("site-a", true)
	if !r.Pending() {
		t.Fatal("releasing the watchdog should queue the held change")
	}
}

func TestWatchdogWithdrawsOnTransition(t *testing.T) {
	r := New()
	r.WatchdogSet("site-a", true)
	c := announce("10.0.0.0", 24, 100)
	c.Watchdog = "site-a"
	r.Insert(c)
	r.ProduceUpdates(testNegotiated(), 10)

	r.WatchdogSet("site-a", false)
	if !r.Pending() {
		t.Fatal("withdrawing the watchdog should queue a withdrawal for the sent change")
	}
	updates := r.ProduceUpdates(testNegotiated(), 10)
	if len(updates) != 1 || len(updates[0].Withdrawn) != 1 {
		t.Fatalf("expected one withdraw update, got %+v", updates)
	}
}

func TestUncacheClearsLastSent(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0", 24, 100))
	r.ProduceUpdates(testNegotiated(), 10)
	r.Uncache()
	if len(r.lastSent) != 0 {
		t.Fatalf("lastSent after Uncache has %d entries, want 0", len(r.lastSent))
	}
}

func TestFlushCallbackFiresOnce(t *testing.T) {
	r := New()
	fired := 0
	r.RegisterFlushCallback(func() { fired++ })
	r.FireFlushCallbacks()
	r.FireFlushCallbacks()
	if fired != 1 {
		t.Fatalf("flush callback fired %d times, want 1", fired)
	}
}

func TestEnqueueLatchesOverflowAtCapacity(t *testing.T) {
	r := NewCapacity(2)
	r.Insert(announce("10.0.0.0", 24, 100))
	r.Insert(announce("10.0.1.0", 24, 100))
	if r.BacklogOverflowed() {
		t.Fatal("backlog should not be overflowed while at, not over, capacity")
	}
	r.Insert(announce("10.0.2.0", 24, 100))
	if !r.BacklogOverflowed() {
		t.Fatal("expected BacklogOverflowed once pending exceeds maxBacklog")
	}
	if got := len(r.pending); got != 2 {
		t.Fatalf("pending length = %d, want 2 (the overflowing Change must be dropped)", got)
	}
}

func TestUncacheClearsOverflowLatch(t *testing.T) {
	r := NewCapacity(1)
	r.Insert(announce("10.0.0.0", 24, 100))
	r.Insert(announce("10.0.1.0", 24, 100))
	if !r.BacklogOverflowed() {
		t.Fatal("expected backlog to be overflowed")
	}
	r.Uncache()
	if r.BacklogOverflowed() {
		t.Fatal("expected Uncache to clear the overflow latch")
	}
}

func TestResetRequeuesLastSentAndRefreshesLastSentMap(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0", 24, 100))
	r.ProduceUpdates(testNegotiated(), 10)
	if r.Pending() {
		t.Fatal("sanity: expected pending to drain to empty after ProduceUpdates")
	}

	r.Reset()
	if !r.Pending() {
		t.Fatal("expected Reset to requeue every last-sent Change for a fresh send")
	}
	if len(r.lastSent) != 1 {
		t.Fatalf("lastSent after Reset has %d entries, want 1", len(r.lastSent))
	}

	// Re-announcing the exact same route right after Reset must not be
	// dropped by the fingerprint dedup: the reconnecting peer has
	// forgotten it, even though this RIB's cache says it was already sent.
	updates := r.ProduceUpdates(testNegotiated(), 10)
	if len(updates) != 1 || len(updates[0].NLRI) != 1 {
		t.Fatalf("expected Reset's requeued Change to produce one announce update, got %+v", updates)
	}
}

func TestProduceUpdatesRespectsLimit(t *testing.T) {
	r := New()
	r.Insert(announce("10.0.0.0", 24, 100))
	r.Insert(announce("10.0.1.0", 24, 200))
	r.Insert(announce("10.0.2.0", 24, 300))
	updates := r.ProduceUpdates(testNegotiated(), 2)
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2 (limit)", len(updates))
	}
	if !r.Pending() {
		t.Fatal("expected one Change still pending after hitting the limit")
	}
}
