package fsm

import (
	"net"
	"time"

	"github.com/Exa-Networks/exabgp-sub000/internal/bgp"
	"github.com/Exa-Networks/exabgp-sub000/internal/message"
)

// Config is everything about one peer that does not change while the
// session is up; reconfiguring a peer means building a new Config and
// letting the reactor decide whether it requires a Reestablish.
type Config struct {
	LocalAS  bgp.ASN
	PeerAS   bgp.ASN
	LocalID  bgp.Identifier
	PeerAddr net.IP
	LocalAddr net.IP

	// Passive peers never dial out; they only ever accept the inbound
	// connection the reactor's listener hands them.
	Passive bool

	HoldTime time.Duration
	OpenWait time.Duration

	MD5Password string
	TTLSecurity int // 0 disables GTSM

	// MaxAttempts caps reconnects; 0 means unlimited.
	MaxAttempts int

	// UpdatesPerIteration is K in the ESTABLISHED loop: how many
	// UPDATEs RIB.ProduceUpdates is allowed to hand back per pass.
	UpdatesPerIteration int

	// Offer is the local capability set advertised in our OPEN.
	Offer message.Offer
}

func (c Config) iBGP() bool { return c.LocalAS == c.PeerAS }

func (c Config) updatesPerIteration() int {
	if c.UpdatesPerIteration > 0 {
		return c.UpdatesPerIteration
	}
	return 25
}

// Callbacks lets the reactor/API layer observe a session without the
// fsm package depending on either: every hook is optional, called
// synchronously from the session's own goroutine, and must not block.
type Callbacks struct {
	OnStateChange  func(from, to State)
	OnUpdate       func(message.Update)
	OnNotification func(n *message.NotifyError, sent bool)
	OnOperational  func(message.Operational)
	OnRefresh      func(message.RouteRefresh)
	OnEstablished  func(message.Negotiated)
}
