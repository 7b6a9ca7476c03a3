package api

import (
	"fmt"
	"strconv"
	"strings"
)

// Target selects which peers a command applies to.
type Target struct {
	All     bool
	Peer    string // set when targeting "neighbor <addr>"
	Group   string // set when targeting "group <name>"
}

// CommandVerb names the recognized first-word grammar (spec.md §4.4).
type CommandVerb string

const (
	VerbAnnounceRoute       CommandVerb = "announce-route"
	VerbWithdrawRoute       CommandVerb = "withdraw-route"
	VerbAnnounceFlow        CommandVerb = "announce-flow"
	VerbWithdrawFlow        CommandVerb = "withdraw-flow"
	VerbAnnounceAttribute   CommandVerb = "announce-attribute"
	VerbAnnounceRefresh     CommandVerb = "announce-route-refresh"
	VerbAnnounceEOR         CommandVerb = "announce-eor"
	VerbAnnounceOperational CommandVerb = "announce-operational"
	VerbReload              CommandVerb = "reload"
	VerbRestart             CommandVerb = "restart"
	VerbShutdown            CommandVerb = "shutdown"
	VerbWatchdog            CommandVerb = "watchdog"
	VerbSetAck              CommandVerb = "set-ack"
	VerbVersion             CommandVerb = "version"
	VerbHelp                CommandVerb = "help"
)

// Command is one parsed line from a helper's stdout.
type Command struct {
	Verb   CommandVerb
	Target Target

	// Route/flow payload, kept as the raw remainder of the line: the
	// route-grammar parser lives with the RIB/message packages that
	// already know how to turn "route <prefix> next-hop <ip> ..." text
	// into attributes, so this bridge only classifies and routes the
	// command, it does not re-implement route-grammar parsing.
	Args string

	// Watchdog-specific fields.
	WatchdogAnnounce bool
	WatchdogName     string

	// SetAck carries the "set ack true|false" toggle.
	SetAck bool
}

// Parse classifies one line of helper stdout per spec.md §4.4's
// grammar. Unrecognized lines return an error rather than being
// silently dropped, so a helper with a typo sees an ACK failure
// instead of a route that never took effect.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("api: empty command")
	}
	fields := strings.Fields(line)
	head := fields[0]

	switch head {
	case "announce", "withdraw":
		return parseAnnounceWithdraw(head, fields, line)
	case "reload":
		return Command{Verb: VerbReload}, nil
	case "restart":
		return Command{Verb: VerbRestart}, nil
	case "shutdown":
		return Command{Verb: VerbShutdown}, nil
	case "neighbor":
		return parseNeighbor(fields, line)
	case "set":
		return parseSet(fields)
	case "version":
		return Command{Verb: VerbVersion}, nil
	case "help":
		return Command{Verb: VerbHelp}, nil
	default:
		return Command{}, fmt.Errorf("api: unrecognized command %q", head)
	}
}

func parseAnnounceWithdraw(head string, fields []string, line string) (Command, error) {
	if len(fields) < 2 {
		return Command{}, fmt.Errorf("api: %q requires an object (route, flow, attribute, route-refresh, eor, operational)", head)
	}
	object := fields[1]
	rest := strings.TrimSpace(strings.TrimPrefix(line, head+" "+object))

	var verb CommandVerb
	switch {
	case object == "route" && head == "announce":
		verb = VerbAnnounceRoute
	case object == "route" && head == "withdraw":
		verb = VerbWithdrawRoute
	case object == "flow" && head == "announce":
		verb = VerbAnnounceFlow
	case object == "flow" && head == "withdraw":
		verb = VerbWithdrawFlow
	case object == "attribute" && head == "announce":
		verb = VerbAnnounceAttribute
	case object == "route-refresh" && head == "announce":
		verb = VerbAnnounceRefresh
	case object == "eor" && head == "announce":
		verb = VerbAnnounceEOR
	case object == "operational" && head == "announce":
		verb = VerbAnnounceOperational
	default:
		return Command{}, fmt.Errorf("api: %q %q is not a recognized combination", head, object)
	}

	return Command{Verb: verb, Target: Target{All: true}, Args: rest}, nil
}

func parseNeighbor(fields []string, line string) (Command, error) {
	if len(fields) < 3 {
		return Command{}, fmt.Errorf("api: neighbor command requires an address and action")
	}
	addr := fields[1]
	switch fields[2] {
	case "announce-watchdog", "withdraw-watchdog":
		name := ""
		if len(fields) > 3 {
			name = fields[3]
		}
		return Command{
			Verb:             VerbWatchdog,
			Target:           Target{Peer: addr},
			WatchdogAnnounce: fields[2] == "announce-watchdog",
			WatchdogName:     name,
		}, nil
	default:
		rest := strings.TrimSpace(strings.TrimPrefix(line, "neighbor "+addr+" "))
		return Command{
			Verb:   CommandVerb(fields[2]),
			Target: Target{Peer: addr},
			Args:   rest,
		}, nil
	}
}

func parseSet(fields []string) (Command, error) {
	if len(fields) != 3 || fields[1] != "ack" {
		return Command{}, fmt.Errorf("api: only \"set ack true|false\" is supported")
	}
	v, err := strconv.ParseBool(fields[2])
	if err != nil {
		return Command{}, fmt.Errorf("api: set ack: %w", err)
	}
	return Command{Verb: VerbSetAck, SetAck: v}, nil
}
