package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"laba/internal/backend"
	"laba/internal/cli"
	apphttp "laba/internal/http"
	"laba/internal/ledger"
	applog "laba/internal/log"
	"laba/internal/services"
)

func main() {
	envErr := cli.LoadEnvFile()

	cfg, cfgErr := cli.LoadAndValidateConfig()
	level := "info"
	if cfg != nil {
		level = cfg.LogLevel
	}
	logger := cli.SetupLogger(level)
	if envErr != nil {
		logger.Warn("Failed to read .env file", applog.FieldError, envErr)
	}
	if cfgErr != nil {
		cli.Fatal(logger, "Configuration validation failed", cfgErr)
	}

	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Invalid ledger timezone", err, "timezone", cfg.LedgerTimezone)
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", backendCfg.Type)
	}
	defer cli.Cleanup(logger, "Backend", res.Cleanup)

	store := ledger.New(res.Store, ledger.WithLocation(loc), ledger.WithLogger(logger))
	svc := services.NewLedgerService(store, res.Publisher, cfg.RowsPerPage, logger)

	st, err := svc.Load(ctx)
	if err != nil {
		// The deferred cleanup does not run after os.Exit.
		cli.Cleanup(logger, "Backend", res.Cleanup)
		cli.Fatal(logger, "Failed to load ledger", err)
	}
	logger.Info("Ledger ready",
		applog.FieldOperation, applog.OpStartup,
		"state", st.String(),
		applog.FieldDay, store.Day().String(),
		applog.FieldCount, store.Len())

	var opts []apphttp.Option
	if p, ok := res.Store.(interface{ Ping(context.Context) error }); ok {
		opts = append(opts, apphttp.WithReadinessCheck("storage", p.Ping))
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, logger, opts...)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting laba server", "port", cfg.Port, "backend", backendCfg.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		return
	}
	logger.Info("Server stopped gracefully")
}
