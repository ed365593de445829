package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/signage-server/signage-server-pro/internal/api"
	"github.com/signage-server/signage-server-pro/internal/config"
	"github.com/signage-server/signage-server-pro/internal/discovery"
	"github.com/signage-server/signage-server-pro/internal/distributor"
	"github.com/signage-server/signage-server-pro/internal/events"
	"github.com/signage-server/signage-server-pro/internal/integration"
	"github.com/signage-server/signage-server-pro/internal/monitor"
	"github.com/signage-server/signage-server-pro/internal/registration"
	"github.com/signage-server/signage-server-pro/internal/registry"
	"github.com/signage-server/signage-server-pro/internal/scheduler"
	"github.com/signage-server/signage-server-pro/internal/server"
	"github.com/signage-server/signage-server-pro/internal/storage"
	"github.com/signage-server/signage-server-pro/internal/transport"
)

func main() {
	var configPath = flag.String("config", "config/coordinator.yml", "path to configuration file")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config_path", *configPath).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	log.Info().
		Str("config_path", *configPath).
		Str("server_name", cfg.Server.Name).
		Str("version", cfg.Server.Version).
		Msg("Signage coordinator starting")

	// Database
	store, err := storage.NewPostgresStore(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	// NATS, optional
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Server.Name),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
	} else {
		log.Info().Msg("NATS URL not configured, event bridge disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Fleet registry
	reg := registry.New(store, cfg.Fleet.WarmupAttempts)
	reg.Warmup(ctx)

	// Transport
	hub := transport.NewHub(&cfg.Transport)

	// Services
	recorder := events.NewRecorder(store)
	contents := distributor.NewFileContentStore(cfg.Content.Dir)
	dist := distributor.New(reg, contents, distributor.PassthroughResolver{}, hub, recorder, cfg.Server.Name)
	regService := registration.NewService(reg, store, hub, dist, recorder, cfg.Server.Name)
	mon := monitor.New(reg, cfg.Fleet.HeartbeatTimeout, cfg.Fleet.MonitorInterval)
	coordinator := server.NewCoordinator(hub, reg, regService, mon, recorder, nc)

	restServer := api.NewRESTServer(cfg, store, reg, dist, hub)

	g, ctx := errgroup.WithContext(ctx)

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
			cancel()
			return nil
		case <-ctx.Done():
			return nil
		}
	})

	// REST API + session endpoint
	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := restServer.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		hub.CloseAll()
		return restServer.Shutdown(shutdownCtx)
	})

	// Liveness monitor
	g.Go(func() error {
		mon.Run(ctx)
		return nil
	})

	// Registry stale sweep
	g.Go(func() error {
		reg.StartSweep(ctx, cfg.Fleet.SweepInterval, cfg.Fleet.StaleHorizon)
		return nil
	})

	// Schedule evaluator
	g.Go(func() error {
		runner := scheduler.NewRunner(store, reg, dist, cfg.Schedule.EvalInterval)
		runner.Run(ctx)
		return nil
	})

	// Lifecycle event log
	g.Go(func() error {
		if err := coordinator.RunEventLogger(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// Discovery responder
	if cfg.Discovery.Enabled {
		g.Go(func() error {
			responder := discovery.NewResponder(cfg.Server.Name, cfg.Discovery.Port,
				cfg.API.Port, cfg.Transport.EndpointPath, cfg.Transport.SSLEnabled)
			return responder.Run(ctx)
		})
	}

	// NATS event bridge
	if nc != nil {
		g.Go(func() error {
			bridge := events.NewNATSBridge(nc, reg, dist)
			if err := bridge.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// External integrations
	forwarder := integration.NewForwarder(cfg.Integration, reg)
	if forwarder.Enabled() {
		g.Go(func() error {
			if err := forwarder.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Coordinator stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Coordinator shut down")
}
