// Package metrics declares the prometheus collectors this core exposes
// over /metrics: per-peer message counts, session state, RIB backlog
// depth, and helper-process health.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgp_messages_sent_total",
			Help: "BGP messages sent, by peer and type.",
		},
		[]string{"peer", "type"},
	)

	MessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgp_messages_received_total",
			Help: "BGP messages received, by peer and type.",
		},
		[]string{"peer", "type"},
	)

	SessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgp_session_state",
			Help: "Current FSM state as a bitmask value (see internal/fsm.State).",
		},
		[]string{"peer"},
	)

	SessionStateChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgp_session_state_changes_total",
			Help: "FSM state transitions, by peer.",
		},
		[]string{"peer"},
	)

	RIBPendingDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgp_rib_pending_changes",
			Help: "Adj-RIB-Out changes not yet packed into an UPDATE, by peer.",
		},
		[]string{"peer"},
	)

	OutboundBacklogDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgp_outbound_backlog_depth",
			Help: "Queued OPERATIONAL/ROUTE-REFRESH messages awaiting send, by peer and queue.",
		},
		[]string{"peer", "queue"},
	)

	ConnectRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgp_connect_retries_total",
			Help: "Connection attempts made from IDLE, by peer.",
		},
		[]string{"peer"},
	)

	HelperRespawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgp_helper_respawns_total",
			Help: "Helper process respawns, by helper name.",
		},
		[]string{"helper"},
	)
)

// Register adds every collector above to the default registry. Call
// once at startup before the HTTP server starts serving /metrics.
func Register() {
	prometheus.MustRegister(
		MessagesSentTotal,
		MessagesReceivedTotal,
		SessionState,
		SessionStateChangesTotal,
		RIBPendingDepth,
		OutboundBacklogDepth,
		ConnectRetriesTotal,
		HelperRespawnsTotal,
	)
}

// SessionSample is one peer's counters at a point in time, read off its
// fsm.FSM and rib.RIB by the reactor on a fixed tick. Prometheus
// counters only ever move forward, so the reactor hands in the running
// totals from fsm.Counters (themselves plain atomics) rather than
// per-tick deltas.
type SessionSample struct {
	Peer           string
	State          int
	StateChanges   uint64
	Sent, Received uint64
	UpdateSent     uint64
	UpdateRecv     uint64
	Notification   uint64
	ConnectRetries uint64
	RIBPending     int
	OpBacklog      int
	RefreshBacklog int
}

// Sample mirrors one peer's running counters into the prometheus
// collectors above. Gauges are set directly. CounterVec has no Set, so
// each counter (one vec entry per "type" sub-total) is advanced by the
// difference between the session's running total and the total last
// pushed (see addCounter); a total lower than the last one is ignored.
func Sample(s SessionSample) {
	SessionState.WithLabelValues(s.Peer).Set(float64(s.State))
	RIBPendingDepth.WithLabelValues(s.Peer).Set(float64(s.RIBPending))
	OutboundBacklogDepth.WithLabelValues(s.Peer, "operational").Set(float64(s.OpBacklog))
	OutboundBacklogDepth.WithLabelValues(s.Peer, "refresh").Set(float64(s.RefreshBacklog))

	addCounter(SessionStateChangesTotal.WithLabelValues(s.Peer), s.Peer+"/state_changes", s.StateChanges)
	addCounter(ConnectRetriesTotal.WithLabelValues(s.Peer), s.Peer+"/connect_retries", s.ConnectRetries)
	addCounter(MessagesSentTotal.WithLabelValues(s.Peer, "all"), s.Peer+"/sent/all", s.Sent)
	addCounter(MessagesReceivedTotal.WithLabelValues(s.Peer, "all"), s.Peer+"/recv/all", s.Received)
	addCounter(MessagesSentTotal.WithLabelValues(s.Peer, "update"), s.Peer+"/sent/update", s.UpdateSent)
	addCounter(MessagesReceivedTotal.WithLabelValues(s.Peer, "update"), s.Peer+"/recv/update", s.UpdateRecv)
	addCounter(MessagesSentTotal.WithLabelValues(s.Peer, "notification"), s.Peer+"/sent/notification", s.Notification)
}

// lastValues remembers the running total last pushed under each key so
// Sample can add only the delta: prometheus counters reject negative
// increments, and the session's own counters are cumulative totals,
// not per-tick deltas.
var (
	lastValuesMu sync.Mutex
	lastValues   = map[string]uint64{}
)

func addCounter(c prometheus.Counter, key string, total uint64) {
	lastValuesMu.Lock()
	prev := lastValues[key]
	if total > prev {
		lastValues[key] = total
	}
	lastValuesMu.Unlock()
	if total > prev {
		c.Add(float64(total - prev))
	}
}
