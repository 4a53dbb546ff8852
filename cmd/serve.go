package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/tarelay/internal/adapters/http/api"
	service "github.com/okian/tarelay/internal/app"
	"github.com/okian/tarelay/internal/config"
	"github.com/okian/tarelay/pkg/logger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to the origin and serve the mirrored state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if err := initLogging(cfg); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func initLogging(cfg *config.Config) error {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func serviceOptions(cfg *config.Config, log logger.Logger) []service.Option {
	return []service.Option{
		service.WithLogger(log),
		service.WithNames(cfg.RxName, cfg.TxName),
		service.WithTransmitMarker(cfg.TransmitMarker),
		service.WithClientVersion(cfg.ClientVersion),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithAnnounceRetry(cfg.AnnounceMaxRetries, cfg.AnnounceInitialBackoff(), cfg.AnnounceMaxBackoff()),
		service.WithReconnectMaxBackoff(cfg.ReconnectMaxBackoff()),
		service.WithTelemetryDir(cfg.TelemetryDir),
		service.WithFailOnUnimplemented(cfg.FailOnUnimplemented),
	}
}

// serve runs the relay and the read API until ctx is done or either fails.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()
	for _, w := range cfg.Warnings() {
		log.Warn(ctx, w)
	}

	svc, err := service.New(ctx, cfg.WSURI, serviceOptions(cfg, log)...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	apiServer, err := api.NewServer(svc.Store(),
		api.WithSubscriber(svc.Broker()),
		api.WithStatsProvider(svc),
		api.WithHealthProvider(svc),
		api.WithLogger(log.Named("api")),
	)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		log.Error(context.Background(), "relay stopped with error", logger.Error(err))
		return err
	}
	log.Info(context.Background(), "server stopped")
	return nil
}
