package fsm

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Exa-Networks/exabgp-sub000/internal/message"
	"github.com/Exa-Networks/exabgp-sub000/internal/rib"
)

func TestBumpBackoffDoublesAndCaps(t *testing.T) {
	f := New(Config{}, rib.New(), Callbacks{}, nil)
	if f.backoff != 0 {
		t.Fatalf("expected zero initial backoff, got %v", f.backoff)
	}
	f.bumpBackoff()
	if f.backoff != minBackoff {
		t.Fatalf("expected first bump to %v, got %v", minBackoff, f.backoff)
	}
	for i := 0; i < 20; i++ {
		f.bumpBackoff()
	}
	if f.backoff != maxBackoff {
		t.Fatalf("expected backoff capped at %v, got %v", maxBackoff, f.backoff)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := New(Config{}, rib.New(), Callbacks{}, nil)
	f.Stop()
	f.Stop()
	if !f.stopRequested() {
		t.Fatal("expected stopRequested to be true after Stop")
	}
}

func TestReestablishDoesNotBlock(t *testing.T) {
	f := New(Config{}, rib.New(), Callbacks{}, nil)
	f.Reestablish()
	f.Reestablish()
	select {
	case <-f.reestablishCh:
	default:
		t.Fatal("expected a pending reestablish signal")
	}
}

func TestHandleIncomingReplacesStaleConnection(t *testing.T) {
	f := New(Config{}, rib.New(), Callbacks{}, nil)
	first, firstPeer := net.Pipe()
	defer firstPeer.Close()
	second, secondPeer := net.Pipe()
	defer second.Close()
	defer secondPeer.Close()

	f.HandleIncoming(first)
	f.HandleIncoming(second)

	got := <-f.incoming
	if got != second {
		t.Fatal("expected the second connection to win, first should have been closed")
	}
	if _, err := first.Write([]byte("x")); err == nil {
		t.Fatal("expected the superseded connection to be closed")
	}
}

func TestObtainConnectionPrefersIncoming(t *testing.T) {
	f := New(Config{Passive: true}, rib.New(), Callbacks{}, nil)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	f.HandleIncoming(server)

	conn, err := f.obtainConnection(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn != server {
		t.Fatal("expected the queued inbound connection to be returned")
	}
}

func TestObtainConnectionStops(t *testing.T) {
	f := New(Config{Passive: true}, rib.New(), Callbacks{}, nil)
	f.Stop()
	if _, err := f.obtainConnection(context.Background()); err != errStopped {
		t.Fatalf("expected errStopped, got %v", err)
	}
}

func TestSendOperationalQueues(t *testing.T) {
	f := New(Config{}, rib.New(), Callbacks{}, nil)
	if err := f.SendOperational(message.Operational{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.opQueue.Length() != 1 {
		t.Fatalf("expected one queued operational message, got %d", f.opQueue.Length())
	}
}

func TestRunReturnsNilOnStopFromIdle(t *testing.T) {
	f := New(Config{}, rib.New(), Callbacks{}, nil)
	f.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.Run(ctx); err != nil {
		t.Fatalf("expected Run to return nil when stopped from IDLE, got %v", err)
	}
}
