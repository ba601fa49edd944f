// Command registryd runs the agent registry server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/beaconhq/beacon/bus"
	"github.com/beaconhq/beacon/config"
	"github.com/beaconhq/beacon/events"
	"github.com/beaconhq/beacon/httpapi"
	"github.com/beaconhq/beacon/registry"
	"github.com/beaconhq/beacon/shutdown"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load configuration", "error", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting registry",
		"addr", cfg.Addr(),
		"heartbeat_timeout", cfg.HeartbeatTimeout(),
		"sweep_interval", cfg.SweepInterval(),
	)

	coordinator := shutdown.NewCoordinator(shutdown.DefaultTimeout, logger)

	// Event bus: NATS when configured, in-process otherwise.
	var eventBus bus.MessageBus
	if cfg.NATSURL != "" {
		natsCfg := bus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Name = "beacon-registry"
		nb, err := bus.NewNATSBus(natsCfg)
		if err != nil {
			logger.Fatal("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
		}
		logger.Info("publishing events over NATS", "url", cfg.NATSURL)
		eventBus = nb
	} else {
		eventBus = bus.NewMemoryBus(bus.DefaultConfig())
	}
	coordinator.Register("bus", func(ctx context.Context) error {
		return eventBus.Close()
	})

	store := registry.NewMemoryStore()

	publisher := events.NewPublisher(store, eventBus, logger)
	if err := publisher.Start(); err != nil {
		logger.Fatal("failed to start event publisher", "error", err)
	}

	// Store closes before the publisher stops so the watch channel
	// drains and the publisher loop exits.
	coordinator.Register("publisher", func(ctx context.Context) error {
		return publisher.Stop()
	})
	coordinator.Register("store", func(ctx context.Context) error {
		return store.Close()
	})

	sweeper := registry.NewSweeper(store, registry.SweeperConfig{
		Timeout:  cfg.HeartbeatTimeout(),
		Interval: cfg.SweepInterval(),
		Logger:   logger,
	})
	if err := sweeper.Start(context.Background()); err != nil {
		logger.Fatal("failed to start sweeper", "error", err)
	}
	coordinator.Register("sweeper", func(ctx context.Context) error {
		return sweeper.Stop()
	})

	server := httpapi.NewServer(store, logger)
	coordinator.Register("http", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})

	go func() {
		if err := server.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()
	logger.Info("registry listening", "addr", cfg.Addr())

	coordinator.HandleSignals()
	<-coordinator.Done()

	if err := coordinator.Err(); err != nil {
		logger.Error("shutdown finished with errors", "error", err)
		os.Exit(1)
	}
	logger.Info("registry stopped")
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	parsed, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("unknown log level, using info", "level", level)
		parsed = log.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}
