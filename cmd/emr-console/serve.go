package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/emr/console/internal/domain"
	"github.com/emr/console/internal/platform/audit"
	"github.com/emr/console/internal/platform/middleware"
	"github.com/emr/console/internal/platform/telemetry"
	"github.com/emr/console/internal/resource"
	"github.com/emr/console/internal/web"
)

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the console web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServer(cmd.Context())
		},
	}
}

func (a *app) runServer(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: web.Version,
		Environment:    cfg.Env,
		Protocol:       cfg.OTelProtocol,
		SampleRatio:    cfg.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := resource.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("register resource metrics: %w", err)
	}

	// Audit journal
	journal, pool, err := a.journal(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		logger.Info().Msg("connected to audit database")
	}
	recorder := audit.Multi(journal, audit.LogRecorder{Logger: logger})

	gw, err := a.gateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}

	srv, err := web.New(web.Options{
		Resources: domain.Resources(),
		Base: resource.Config{
			Gateway:   gw,
			PerPage:   cfg.DefaultPerPage,
			Debounce:  cfg.SearchDebounce,
			OnOutcome: audit.Hook(recorder, logger),
			Metrics:   metrics,
			Logger:    logger,
		},
		IdleTimeout:    cfg.SessionIdleTimeout,
		Secure:         cfg.IsProduction(),
		RequestTimeout: cfg.BackendTimeout + 5*time.Second,
		RateLimit:      middleware.DefaultRateLimitConfig(),
		Registry:       reg,
		Journal:        journal,
		Pool:           pool,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx, ":"+cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
