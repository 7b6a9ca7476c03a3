// Package api implements the helper-process bridge (spec.md §4.4): the
// event stream handed out to configured helpers, the command stream
// read back from them, and the process-lifecycle/respawn discipline
// around a helper's stdio.
package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Direction is which way a message crossed the wire relative to us.
type Direction string

const (
	DirectionReceive Direction = "receive"
	DirectionSend    Direction = "send"
)

// Kind names the event categories a helper can subscribe to.
type Kind string

const (
	KindOpen             Kind = "open"
	KindKeepalive        Kind = "keepalive"
	KindUpdate           Kind = "update"
	KindNotification     Kind = "notification"
	KindRefresh          Kind = "refresh"
	KindOperational      Kind = "operational"
	KindNeighborChanges  Kind = "neighbor-changes"
	KindNegotiated       Kind = "negotiated"
	KindFSM              Kind = "fsm"
	KindSignal           Kind = "signal"
)

// Event is one notification fanned out to subscribed helpers. Peer
// identity and timestamp are always present; Fields carries the
// decoded message content and Raw carries the header+body hex when the
// helper's subscription asked for it.
type Event struct {
	Time        time.Time
	LocalAddr   string
	PeerAddr    string
	LocalAS     uint32
	PeerAS      uint32
	RouterID    string
	Direction   Direction
	Kind        Kind
	Fields      map[string]any
	Raw         []byte // nil unless the "packets" subscription is enabled
}

// Encoder turns an Event into the wire line(s) written to a helper's
// stdin. Both encoders must preserve the same semantic content.
type Encoder interface {
	Encode(Event) []byte
}

// TextEncoder renders an Event as exabgp's traditional whitespace
// line format: one line of key/value pairs, newline-terminated.
type TextEncoder struct{}

func (TextEncoder) Encode(e Event) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "neighbor %s local-ip %s local-as %d peer-as %d router-id %s %s %s",
		e.PeerAddr, e.LocalAddr, e.LocalAS, e.PeerAS, e.RouterID, e.Direction, e.Kind)
	for _, k := range sortedKeys(e.Fields) {
		fmt.Fprintf(&b, " %s %v", k, e.Fields[k])
	}
	if len(e.Raw) > 0 {
		fmt.Fprintf(&b, " raw %s", hex.EncodeToString(e.Raw))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// JSONEncoder renders an Event as one NDJSON line.
type JSONEncoder struct{}

func (JSONEncoder) Encode(e Event) []byte {
	doc := map[string]any{
		"time":       e.Time.UTC().Format(time.RFC3339Nano),
		"local_addr": e.LocalAddr,
		"peer_addr":  e.PeerAddr,
		"local_as":   e.LocalAS,
		"peer_as":    e.PeerAS,
		"router_id":  e.RouterID,
		"direction":  e.Direction,
		"kind":       e.Kind,
		"fields":     e.Fields,
	}
	if len(e.Raw) > 0 {
		doc["raw"] = hex.EncodeToString(e.Raw)
	}
	line, err := json.Marshal(doc)
	if err != nil {
		return []byte(`{"error":"event encode failed"}` + "\n")
	}
	return append(line, '\n')
}

// EncoderFor resolves a configured encoder name ("text"/"json") to an
// Encoder, defaulting to text.
func EncoderFor(name string) Encoder {
	if name == "json" {
		return JSONEncoder{}
	}
	return TextEncoder{}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// EventSink is anything the reactor can route a subscribed peer's
// events to: a local child process (Helper) or a remote bridge
// (e.g. bridge.KafkaSink). Both implementations never block Send on
// their own I/O.
type EventSink interface {
	Send(Event)
	Dead() bool
}

// Subscription records which (direction, kind) combinations and
// standing flags (neighbor-changes, negotiated, fsm, signal) a helper
// has asked for.
type Subscription struct {
	Receive map[Kind]bool
	Send    map[Kind]bool
}

// NewSubscription builds a Subscription from the configured kind-name
// lists (spec.md §4.4's per-direction subscription).
func NewSubscription(receive, send []string) Subscription {
	s := Subscription{Receive: map[Kind]bool{}, Send: map[Kind]bool{}}
	for _, k := range receive {
		s.Receive[Kind(k)] = true
	}
	for _, k := range send {
		s.Send[Kind(k)] = true
	}
	return s
}

// Wants reports whether this subscription includes (direction, kind).
func (s Subscription) Wants(dir Direction, kind Kind) bool {
	if dir == DirectionReceive {
		return s.Receive[kind]
	}
	return s.Send[kind]
}
