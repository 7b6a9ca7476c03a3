package fsm

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
	"github.com/Exa-Networks/exabgp-sub000/internal/rib"
)

func testChange(prefix string, bits int) rib.Change {
	ip := net.ParseIP(prefix).To4()
	return rib.Change{
		Family: bgp.IPv4Unicast,
		NLRI:   message.NewIPAddrFamily(bgp.IPv4Unicast, ip, bits),
		Attributes: message.Attributes{
			message.Origin{Code: message.OriginIGP},
		},
	}
}

// drainPipe keeps reading from conn until it is closed, so writes on
// the other end of a net.Pipe do not block the test forever.
func drainPipe(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func TestDrainOutboundTearsDownOnBacklogOverflow(t *testing.T) {
	r := rib.NewCapacity(1)
	r.Insert(testChange("10.0.0.0", 24))
	r.Insert(testChange("10.0.1.0", 24)) // second insert overflows the 1-slot backlog

	conn, peer := net.Pipe()
	defer conn.Close()
	go drainPipe(peer)
	defer peer.Close()

	f := New(Config{}, r, Callbacks{}, nil)
	f.conn = conn

	err := f.drainOutbound()
	var notifyErr *message.NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("expected a *message.NotifyError, got %v (%T)", err, err)
	}
	if notifyErr.Code != message.NotifyCease || notifyErr.Subcode != message.SubCeaseAdministrativeShutdown {
		t.Fatalf("got (%d,%d), want (%d,%d)", notifyErr.Code, notifyErr.Subcode,
			message.NotifyCease, message.SubCeaseAdministrativeShutdown)
	}
}

func TestDrainOutboundLeavesHealthyBacklogAlone(t *testing.T) {
	r := rib.NewCapacity(10)
	r.Insert(testChange("10.0.0.0", 24))

	conn, peer := net.Pipe()
	defer conn.Close()
	go drainPipe(peer)
	defer peer.Close()

	f := New(Config{}, r, Callbacks{}, nil)
	f.conn = conn

	if err := f.drainOutbound(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteEstablishedTimesOutOnStalledSocket(t *testing.T) {
	conn, peer := net.Pipe()
	defer conn.Close()
	defer peer.Close() // never read from peer: the write below must stall

	f := New(Config{}, rib.New(), Callbacks{}, nil)
	f.conn = conn
	f.writeDeadline = 20 * time.Millisecond

	start := time.Now()
	err := f.writeEstablished(message.EncodeMessage(message.TypeKeepalive, message.Keepalive{}))
	if err == nil {
		t.Fatal("expected a write-deadline error on a stalled socket")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("writeEstablished took %v, expected it bounded by writeDeadline", elapsed)
	}
}

func TestWriteEstablishedNoDeadlineWhenZero(t *testing.T) {
	conn, peer := net.Pipe()
	defer conn.Close()
	go drainPipe(peer)
	defer peer.Close()

	f := New(Config{}, rib.New(), Callbacks{}, nil)
	f.conn = conn
	f.writeDeadline = 0

	if err := f.writeEstablished(message.EncodeMessage(message.TypeKeepalive, message.Keepalive{})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
