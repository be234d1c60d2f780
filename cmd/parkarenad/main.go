// Command parkarenad hosts a parking arena session over WebSocket, with
// operational HTTP endpoints, optional replay capture and gRPC health.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"parkarena/broker/internal/config"
	"parkarena/broker/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parkarenad: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parkarenad: logging: %v\n", err)
		os.Exit(2)
	}
	logging.ReplaceGlobals(logger)
	defer logger.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error("arena host stopped", logging.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := newHost(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("arena session ready",
		logging.String("vehicle", cfg.Session.Vehicle),
		logging.Float64("tick_hz", cfg.TickHz),
		logging.Float64("broadcast_hz", cfg.BroadcastHz),
		logging.Bool("replay", cfg.Replay.Enabled),
	)
	return h.run(ctx)
}
