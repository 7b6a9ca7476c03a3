package api

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub000/internal/queue"
)

// respawnWindow and maxRespawns bound the "child keeps dying" case:
// after maxRespawns within respawnWindow, Helper gives up and reports
// itself dead rather than spinning forever on a broken command.
const (
	respawnWindow = 60 * time.Second
	maxRespawns   = 5
)

// CommandSink receives commands parsed from a helper's stdout.
type CommandSink interface {
	HandleCommand(helper string, cmd Command)
}

// Helper owns one configured child process: its stdin write queue,
// its stdout command reader, and the respawn discipline around both.
// Subscribed Events are pushed onto the write queue by the reactor;
// Helper itself only drains the queue onto the live process's stdin.
type Helper struct {
	name    string
	argv    []string
	encoder Encoder
	ack     bool
	respawn bool
	sink    CommandSink
	logger  *zap.Logger

	queue *queue.Queue

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     writeCloser
	dead      bool
	respawns  []time.Time
	wake      chan struct{}
}

type writeCloser interface {
	Write([]byte) (int, error)
	Close() error
}

// NewHelper builds a Helper for one configured process entry. argv is
// the already-split command line (ProcessConfig.Run).
func NewHelper(name string, argv []string, enc Encoder, ack, respawn bool, sink CommandSink, logger *zap.Logger) *Helper {
	return &Helper{
		name:    name,
		argv:    argv,
		encoder: enc,
		ack:     ack,
		respawn: respawn,
		sink:    sink,
		logger:  logger,
		queue:   queue.New(),
		wake:    make(chan struct{}, 1),
	}
}

// Dead reports whether the helper has exhausted its respawn budget
// and will not be restarted again.
func (h *Helper) Dead() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dead
}

// Send encodes e and enqueues it for delivery to the child's stdin.
// It never blocks on process I/O; a full queue drops the event and
// logs, since a wedged helper must not stall BGP processing.
func (h *Helper) Send(e Event) {
	if err := h.queue.Push(h.encoder.Encode(e)); err != nil {
		h.logger.Warn("helper event queue full, dropping event", zap.String("helper", h.name))
		return
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run spawns the child and services it until ctx is cancelled or the
// respawn budget is exhausted. It is meant to run in its own
// goroutine for the lifetime of the process.
func (h *Helper) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := h.spawnAndServe(ctx); err != nil {
			h.logger.Warn("helper process exited", zap.String("helper", h.name), zap.Error(err))
		}
		if ctx.Err() != nil {
			return
		}
		if !h.respawn || !h.recordRespawn() {
			h.mu.Lock()
			h.dead = true
			h.mu.Unlock()
			h.logger.Error("helper process respawn budget exhausted", zap.String("helper", h.name))
			return
		}
	}
}

// recordRespawn records an attempt and reports whether another
// respawn is still within budget (maxRespawns per respawnWindow).
func (h *Helper) recordRespawn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := respawnNow()
	cutoff := now.Add(-respawnWindow)
	kept := h.respawns[:0]
	for _, t := range h.respawns {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	h.respawns = kept
	if len(h.respawns) >= maxRespawns {
		return false
	}
	h.respawns = append(h.respawns, now)
	return true
}

// respawnNow is overridable in tests; time.Now is fine in production
// and this keeps the respawn-accounting logic free of a direct clock
// dependency at the call sites above.
var respawnNow = time.Now

func (h *Helper) spawnAndServe(ctx context.Context) error {
	cmdCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, h.argv[0], h.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("api: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("api: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("api: start: %w", err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.stdin = stdin
	h.mu.Unlock()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readCommands(stdout)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.drainQueue(cmdCtx, stdin)
	}()

	err = cmd.Wait()
	cancel()
	<-readerDone
	<-writerDone
	return err
}

// drainQueue pushes queued, encoded events onto stdin until ctx is
// done. It wakes on h.wake rather than polling, falling back to a
// short poll interval so a Send() racing the wake channel is never
// missed indefinitely.
func (h *Helper) drainQueue(ctx context.Context, stdin writeCloser) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		for {
			item, ok := h.queue.Pop()
			if !ok {
				break
			}
			if _, err := stdin.Write(item); err != nil {
				h.logger.Warn("helper stdin write failed", zap.String("helper", h.name), zap.Error(err))
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-h.wake:
		case <-ticker.C:
		}
	}
}

// readCommands parses newline-delimited commands from the helper's
// stdout, dispatching each to h.sink and, when acknowledgements are
// enabled, queuing an ACK line for the stdin writer goroutine. ACKs are
// queued in command order, but the next command is read without waiting
// for the previous ACK to reach the helper's stdin.
func (h *Helper) readCommands(stdout readCloser) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		cmd, err := Parse(line)
		if err != nil {
			h.logger.Warn("helper sent unparseable command", zap.String("helper", h.name), zap.Error(err))
			h.ackLine(fmt.Sprintf("error: %v", err))
			continue
		}
		if h.sink != nil {
			h.sink.HandleCommand(h.name, cmd)
		}
		h.ackLine("done")
	}
}

type readCloser interface {
	Read([]byte) (int, error)
}

func (h *Helper) ackLine(status string) {
	if !h.ack {
		return
	}
	if err := h.queue.Push([]byte(status + "\n")); err != nil {
		h.logger.Warn("helper ack queue full", zap.String("helper", h.name))
		return
	}
	select {
	case h.wake <- struct{}{}:
	default:
	}
}
