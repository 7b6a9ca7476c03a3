package fsm

import "testing"

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to State
		allowed  bool
	}{
		{IDLE, ACTIVE, true},
		{IDLE, CONNECT, true},
		{IDLE, IDLE, true},
		{ACTIVE, ACTIVE, true},
		{ACTIVE, OPENSENT, false},
		{CONNECT, OPENSENT, true},
		{OPENSENT, OPENCONFIRM, true},
		{OPENSENT, CONNECT, false},
		{OPENCONFIRM, ESTABLISHED, true},
		{OPENCONFIRM, OPENCONFIRM, true},
		{ESTABLISHED, ESTABLISHED, true},
		{ESTABLISHED, IDLE, true},
		{ESTABLISHED, OPENSENT, false},
		{CONNECT, ESTABLISHED, false},
	}
	for _, c := range cases {
		f := New(Config{}, nil, Callbacks{}, nil)
		f.state = c.from
		func() {
			defer func() {
				r := recover()
				if c.allowed && r != nil {
					t.Errorf("%s -> %s: unexpected panic: %v", c.from, c.to, r)
				}
				if !c.allowed && r == nil {
					t.Errorf("%s -> %s: expected panic, got none", c.from, c.to)
				}
			}()
			f.transition(c.to)
		}()
	}
}

func TestTransitionFiresOnStateChange(t *testing.T) {
	var seen []State
	cb := Callbacks{OnStateChange: func(from, to State) { seen = append(seen, from, to) }}
	f := New(Config{}, nil, cb, nil)
	f.transition(IDLE)
	if len(seen) != 0 {
		t.Fatalf("no-op transition should not fire OnStateChange, got %v", seen)
	}
	f.transition(CONNECT)
	if len(seen) != 2 || seen[0] != IDLE || seen[1] != CONNECT {
		t.Fatalf("expected [IDLE CONNECT], got %v", seen)
	}
}

func TestStateString(t *testing.T) {
	for _, s := range []State{IDLE, ACTIVE, CONNECT, OPENSENT, OPENCONFIRM, ESTABLISHED} {
		if s.String() == "" {
			t.Errorf("state %d has empty String()", s)
		}
	}
	if got := State(0).String(); got == "" {
		t.Error("unknown state should still stringify to something non-empty")
	}
}
