package store

import (
	"context"
	"net"
	"testing"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
)

func TestRowFromChangeCapturesPrefixBytes(t *testing.T) {
	n := message.NewIPAddrFamily(bgp.IPv4Unicast, net.ParseIP("10.0.0.0"), 24)
	row := RowFromChange("r1", bgp.IPv4Unicast, n, false, nil)
	if row.Peer != "r1" {
		t.Errorf("peer = %q", row.Peer)
	}
	if row.Withdraw {
		t.Error("expected withdraw false")
	}
	if len(row.Prefix) == 0 {
		t.Error("expected non-empty encoded prefix")
	}
	if row.Time.IsZero() {
		t.Error("expected a non-zero timestamp")
	}
}

func TestRowFromChangeMarksWithdraw(t *testing.T) {
	n := message.NewIPAddrFamily(bgp.IPv4Unicast, net.ParseIP("10.0.0.0"), 24)
	row := RowFromChange("r1", bgp.IPv4Unicast, n, true, nil)
	if !row.Withdraw {
		t.Error("expected withdraw true")
	}
}

func TestFlushBatchNoopOnEmptyRows(t *testing.T) {
	s := &Store{}
	n, err := s.FlushBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows, got %d", n)
	}
}
