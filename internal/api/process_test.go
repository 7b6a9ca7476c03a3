package api

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub000/internal/queue"
)

func newTestHelper() *Helper {
	return NewHelper("h1", []string{"/bin/true"}, TextEncoder{}, true, true, nil, zap.NewNop())
}

func TestRecordRespawnAllowsUpToBudget(t *testing.T) {
	h := newTestHelper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	respawnNow = func() time.Time { return base }
	defer func() { respawnNow = time.Now }()

	for i := 0; i < maxRespawns; i++ {
		if !h.recordRespawn() {
			t.Fatalf("respawn %d unexpectedly denied", i)
		}
	}
	if h.recordRespawn() {
		t.Fatal("expected respawn budget to be exhausted")
	}
}

func TestRecordRespawnForgetsOldAttempts(t *testing.T) {
	h := newTestHelper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	respawnNow = func() time.Time { return now }
	defer func() { respawnNow = time.Now }()

	for i := 0; i < maxRespawns; i++ {
		if !h.recordRespawn() {
			t.Fatalf("respawn %d unexpectedly denied", i)
		}
	}
	now = now.Add(respawnWindow + time.Second)
	if !h.recordRespawn() {
		t.Fatal("expected respawn to be allowed again once the window rolled over")
	}
}

func TestDeadDefaultsFalse(t *testing.T) {
	h := newTestHelper()
	if h.Dead() {
		t.Fatal("fresh helper should not be dead")
	}
}

func TestSendDropsOnFullQueueWithoutPanicking(t *testing.T) {
	h := newTestHelper()
	h.queue = queue.NewCapacity(1)
	h.Send(sampleEvent())
	h.Send(sampleEvent()) // queue now full; must not panic or block
}
