package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/auth"
	"github.com/alfredjeanlab/lensdesk/internal/config"
	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/notify"
	"github.com/alfredjeanlab/lensdesk/internal/server"
	"github.com/alfredjeanlab/lensdesk/internal/session"
	"github.com/alfredjeanlab/lensdesk/internal/store/postgres"
	lensync "github.com/alfredjeanlab/lensdesk/internal/sync"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// eventBus is what serve needs from the event transport.
type eventBus interface {
	events.Publisher
	events.Subscriber
}

// natsBus pairs the NATS publisher and subscriber into one eventBus.
type natsBus struct {
	*events.NATSPublisher
	sub *events.NATSSubscriber
}

func (b *natsBus) Subscribe(topic string) (<-chan []byte, func(), error) {
	return b.sub.Subscribe(topic)
}

func (b *natsBus) Close() error {
	err := b.NATSPublisher.Close()
	if serr := b.sub.Close(); err == nil {
		err = serr
	}
	return err
}

func openEventBus(cfg *config.Config, logger *slog.Logger) (eventBus, error) {
	if cfg.NATSURL == "" {
		logger.Info("events in-process (LENSDESK_NATS_URL not set)")
		return events.NewLocalBus(), nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	sub, err := events.NewNATSSubscriber(cfg.NATSURL)
	if err != nil {
		pub.Close()
		return nil, err
	}
	logger.Info("events enabled", "nats_url", cfg.NATSURL)
	return &natsBus{NATSPublisher: pub, sub: sub}, nil
}

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the lensdesk HTTP and gRPC servers",
	GroupID:           "system",
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		bus, err := openEventBus(cfg, logger)
		if err != nil {
			store.Close()
			return err
		}

		// Background workers stop when bgCtx is cancelled.
		bgCtx, bgCancel := context.WithCancel(context.Background())
		defer bgCancel()

		authSvc := auth.New(store, bus, []byte(cfg.JWTSecret),
			auth.WithTTL(cfg.SessionTTL),
			auth.WithLogger(logger),
		)

		// Session changes: bus -> bridge -> hub -> gates and tracker.
		hub := session.NewHub()
		bridge := session.NewBridge(hub, logger)
		go func() {
			if err := bridge.Run(bgCtx, bus); err != nil {
				logger.Error("session bridge error", "err", err)
			}
		}()

		tracker := session.NewTracker()
		untrack := hub.Subscribe(tracker.Observe)
		tracker.StartReaper(&session.ReaperConfig{
			OnExpired: func(s *model.Session) {
				authSvc.Expire(bgCtx, s)
			},
		})

		// Booking notifications.
		var mailer notify.Mailer
		if cfg.ResendAPIKey != "" {
			mailer = notify.NewResendMailer(cfg.ResendAPIKey)
			logger.Info("email notifications enabled", "admin", cfg.AdminEmail)
		} else {
			mailer = notify.NewLogMailer(logger)
			logger.Info("email notifications logged only (LENSDESK_RESEND_API_KEY not set)")
		}
		notifier := notify.NewHandler(mailer, notify.Config{From: cfg.MailFrom, AdminEmail: cfg.AdminEmail}, logger)
		go func() {
			if err := notifier.StartSubscriber(bgCtx, bus); err != nil {
				logger.Error("notify subscriber error", "err", err)
			}
		}()

		srv := server.New(server.Options{
			Store:         store,
			Auth:          authSvc,
			Hub:           hub,
			Tracker:       tracker,
			Publisher:     bus,
			Subscriber:    bus,
			LookupTimeout: cfg.RoleLookupTimeout,
			BookingRate:   cfg.BookingRate,
			BookingBurst:  cfg.BookingBurst,
			Logger:        logger,
		})
		grpcServer, healthServer := server.NewGRPCServer(srv)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			bgCancel()
			tracker.Stop()
			bus.Close()
			store.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		// Request contexts derive from streamCtx so that live views end
		// when shutdown begins.
		streamCtx, endStreams := context.WithCancel(context.Background())
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return streamCtx },
		}
		httpServer.RegisterOnShutdown(endStreams)

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		var scheduler *lensync.Scheduler
		if cfg.SyncInterval > 0 {
			if dests := syncDestinations(context.Background(), cfg, logger); len(dests) > 0 {
				scheduler = lensync.NewScheduler(store, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		logger.Info("lensdesk server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"session_ttl", cfg.SessionTTL,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		healthServer.SetServingStatus(server.AccessServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		bgCancel()
		tracker.Stop()
		untrack()

		if err := bus.Close(); err != nil {
			logger.Error("error closing event bus", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
