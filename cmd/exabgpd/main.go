// Command exabgpd runs one configured BGP speaker: it loads
// configuration, builds the reactor, and serves until a termination
// signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Exa-Networks/exabgp-sub000/internal/api"
	"github.com/Exa-Networks/exabgp-sub000/internal/config"
	"github.com/Exa-Networks/exabgp-sub000/internal/logging"
	"github.com/Exa-Networks/exabgp-sub000/internal/metrics"
	"github.com/Exa-Networks/exabgp-sub000/internal/reactor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "exabgpd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Global.LogLevel)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	metrics.Register()

	rct, err := reactor.New(cfg, logger, *configPath)
	if err != nil {
		return fmt.Errorf("building reactor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go watchReload(ctx, rct, logger)

	logger.Info("starting exabgpd", zap.String("listen", cfg.Global.ListenAddress))
	if err := rct.Run(ctx, cfg.Global.ListenAddress); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reactor exited: %w", err)
	}
	logger.Info("exabgpd stopped")
	return nil
}

// watchReload re-reads configuration on SIGHUP, the conventional
// "reread configuration" signal. The reactor diffs the new file
// against what is running: added/removed peers and helpers, and
// static-route changes for peers kept across the reload; a session is
// only torn down and reestablished when something affecting its
// identity (address, AS, hold-time, security, families) changed.
func watchReload(ctx context.Context, rct *reactor.Reactor, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("SIGHUP received, reloading configuration")
			rct.HandleCommand("signal", api.Command{Verb: api.VerbReload, Target: api.Target{All: true}})
		}
	}
}
