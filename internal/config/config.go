// Package config defines the typed graph the core consumes once the
// external configuration-file grammar (neighbor/group/static/process
// blocks) has been parsed: per-peer session parameters, per-helper
// process definitions, and the handful of process-wide toggles. The
// text grammar itself remains an external collaborator; this package
// only shapes and validates what it must hand back.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrAmbiguousLocalAddress is returned at peer-creation time for a
// passive peer configured without an explicit local-address: "next-hop
// self" cannot resolve a next hop from a listening socket's local
// endpoint before a connection exists, and this core fails closed
// rather than guessing at one.
var ErrAmbiguousLocalAddress = errors.New("config: passive peer requires an explicit local-address for next-hop-self to resolve")

// Config is the root of the typed graph.
type Config struct {
	Global  GlobalConfig             `koanf:"global"`
	Peers   map[string]PeerConfig    `koanf:"neighbor"`
	Process map[string]ProcessConfig `koanf:"process"`
	Store   StoreConfig              `koanf:"store"`
}

// StoreConfig configures the optional audit-log persistence layer:
// every accepted RIB change, sent or withdrawn, recorded to Postgres
// for later reconstruction of a session's history. Disabled by
// default; most deployments only need the live session state this
// core already tracks in memory.
type StoreConfig struct {
	Enabled     bool   `koanf:"enabled"`
	DSN         string `koanf:"dsn"`
	CompressRaw bool   `koanf:"compress_raw"`
	BatchSize   int    `koanf:"batch_size"`
}

// GlobalConfig holds the process-wide defaults and toggles spec.md §6
// lists under "global".
type GlobalConfig struct {
	RouterID           string `koanf:"router_id"`
	ListenAddress      string `koanf:"listen_address"`
	HTTPListen         string `koanf:"http_listen"`
	LogLevel           string `koanf:"log_level"`
	DebugConfiguration bool   `koanf:"debug_configuration"`
	APIEncoder         string `koanf:"api_encoder"` // "text" or "json"
	APIAck             bool   `koanf:"api_ack"`
	APIRespawn         bool   `koanf:"api_respawn"`
	APITerminateOnExit bool   `koanf:"api_terminate"`
	TCPBindAddress     string `koanf:"tcp_bind"`
	ConnectAttempts    int    `koanf:"tcp_attempts"` // 0 = unlimited
	OpenWaitSeconds    int    `koanf:"bgp_openwait"`
	Passive            bool   `koanf:"bgp_passive"`
}

// PeerConfig is one configured neighbor, matching spec.md §3's session
// identity plus the per-peer knobs §6 lists.
type PeerConfig struct {
	LocalAddress string `koanf:"local_address"`
	LocalAS      uint32 `koanf:"local_as"`
	PeerAddress  string `koanf:"peer_address"`
	PeerAS       uint32 `koanf:"peer_as"`
	RouterID     string `koanf:"router_id"`

	HoldTimeSeconds int    `koanf:"hold_time"`
	MD5Password     string `koanf:"md5"`
	TTLSecurity     int    `koanf:"ttl_security"`

	Passive     bool `koanf:"passive"`
	MaxAttempts int  `koanf:"max_attempts"`

	Families []string `koanf:"families"`

	RouteRefresh    bool `koanf:"route_refresh"`
	EnhancedRefresh bool `koanf:"enhanced_refresh"`
	ASN4            bool `koanf:"asn4"`
	ExtendedMessage bool `koanf:"extended_message"`
	MultiSession    bool `koanf:"multi_session"`
	GracefulRestart int  `koanf:"graceful_restart"` // seconds, 0 disables

	// AllowNetmaskSplit gates INTERNAL_SPLIT (route fan-out by netmask)
	// for this peer. It is never inferred from route attributes.
	AllowNetmaskSplit bool `koanf:"allow_netmask_split"`

	Group string `koanf:"group"`

	// APISubscriptions names the helpers (by Process map key) this
	// peer's events are routed to.
	APISubscriptions []string `koanf:"api"`

	// StaticRoutes are the "static" block's configured initial Changes
	// for this peer (spec.md's §6 "initial Changes" graph entry):
	// announced unconditionally once the session reaches ESTABLISHED,
	// and re-diffed against the previous set on every reload.
	StaticRoutes []StaticRoute `koanf:"static"`
}

// StaticRoute is one "static" block entry: a single IPv4 unicast
// prefix announced with a fixed attribute set. The text grammar's
// fuller route syntax (communities, flow-spec, labeled-unicast, ...)
// is left to the external configuration collaborator to expand in a
// later iteration; this covers the common case spec.md's example
// configs actually use.
type StaticRoute struct {
	Prefix    string `koanf:"prefix"`
	NextHop   string `koanf:"next_hop"`
	LocalPref uint32 `koanf:"local_pref"`
	MED       uint32 `koanf:"med"`
}

// ProcessConfig is one configured helper process, matching spec.md
// §4.4/§6.
type ProcessConfig struct {
	Run     []string `koanf:"run"`
	Encoder string   `koanf:"encoder"` // "text" or "json"
	Ack     bool     `koanf:"ack"`

	// Transport selects how events reach this helper. The zero value
	// "" (and "exec") spawn Run as a child process talking NDJSON/text
	// over stdio; "kafka" instead publishes the same event envelope to
	// a topic, for deployments that already centralize BMP/BGP events
	// through a broker instead of per-box child processes.
	Transport string `koanf:"transport"`

	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	// Target restricts which peers' events reach this helper:
	// "all", "neighbor <addr>", or "group <name>".
	Target string `koanf:"target"`

	Receive []string `koanf:"receive"` // message-kinds subscribed to
	Send    []string `koanf:"send"`
}

// Load reads path (if non-empty) as YAML, then overlays environment
// variables prefixed EXABGPD_ (double underscore separates nesting,
// e.g. EXABGPD_GLOBAL__ROUTER_ID), and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("EXABGPD_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "EXABGPD_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	cfg := &Config{
		Global: GlobalConfig{
			ListenAddress:   "0.0.0.0",
			HTTPListen:      ":8080",
			LogLevel:        "info",
			APIEncoder:      "text",
			APIAck:          true,
			APIRespawn:      true,
			ConnectAttempts: 0,
			OpenWaitSeconds: 60,
		},
		Store: StoreConfig{
			BatchSize: 200,
		},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field invariants spec.md calls out:
// nonzero router-ids, valid hold-times, and the next-hop-self
// ambiguity that must fail closed rather than guess.
func (c *Config) Validate() error {
	if c.Global.RouterID != "" {
		ip := net.ParseIP(c.Global.RouterID)
		if ip == nil || ip.To4() == nil || ip.IsUnspecified() {
			return fmt.Errorf("config: global.router_id %q is not a valid IPv4 address", c.Global.RouterID)
		}
	}
	for name, p := range c.Peers {
		if err := p.validate(); err != nil {
			return fmt.Errorf("config: neighbor %q: %w", name, err)
		}
	}
	for name, proc := range c.Process {
		if err := proc.validate(); err != nil {
			return fmt.Errorf("config: process %q: %w", name, err)
		}
	}
	if c.Store.Enabled && c.Store.DSN == "" {
		return fmt.Errorf("config: store.dsn is required when store.enabled is true")
	}
	return nil
}

func (p PeerConfig) validate() error {
	if p.PeerAddress == "" || net.ParseIP(p.PeerAddress) == nil {
		return fmt.Errorf("peer_address %q is not a valid address", p.PeerAddress)
	}
	if p.HoldTimeSeconds != 0 && p.HoldTimeSeconds < 3 {
		return fmt.Errorf("hold_time must be 0 or >= 3, got %d", p.HoldTimeSeconds)
	}
	if p.TTLSecurity < 0 || p.TTLSecurity > 254 {
		return fmt.Errorf("ttl_security must be 0-254, got %d", p.TTLSecurity)
	}
	if p.Passive && p.LocalAddress == "" {
		return ErrAmbiguousLocalAddress
	}
	if p.LocalAddress != "" && net.ParseIP(p.LocalAddress) == nil {
		return fmt.Errorf("local_address %q is not a valid address", p.LocalAddress)
	}
	for _, rt := range p.StaticRoutes {
		if _, _, err := net.ParseCIDR(rt.Prefix); err != nil {
			return fmt.Errorf("static route prefix %q invalid: %w", rt.Prefix, err)
		}
		if net.ParseIP(rt.NextHop) == nil {
			return fmt.Errorf("static route %q next_hop %q invalid", rt.Prefix, rt.NextHop)
		}
	}
	return nil
}

func (proc ProcessConfig) validate() error {
	switch proc.Transport {
	case "", "exec":
		if len(proc.Run) == 0 {
			return fmt.Errorf("run is required for an exec-transport process")
		}
	case "kafka":
		if len(proc.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka_brokers is required when transport=kafka")
		}
		if proc.KafkaTopic == "" {
			return fmt.Errorf("kafka_topic is required when transport=kafka")
		}
	default:
		return fmt.Errorf("unknown transport %q", proc.Transport)
	}
	if proc.Encoder != "" && proc.Encoder != "text" && proc.Encoder != "json" {
		return fmt.Errorf("encoder must be \"text\" or \"json\", got %q", proc.Encoder)
	}
	return nil
}

// HoldTime returns the configured hold-time as a time.Duration.
func (p PeerConfig) HoldTime() time.Duration {
	return time.Duration(p.HoldTimeSeconds) * time.Second
}
