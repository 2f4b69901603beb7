package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fido/internal/config"
	"fido/internal/logger"
	"fido/internal/services/notelist"
	"fido/internal/services/notes"

	"github.com/prometheus/client_golang/prometheus"
	_ "go.uber.org/automaxprocs"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Create bootstrap logger for early errors
	bootstrapLog := log.New(os.Stderr, "bootstrap: ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		bootstrapLog.Printf("config load failed: %v", err)
		os.Exit(1)
	}

	logg, err := logger.Init(cfg)
	if err != nil {
		bootstrapLog.Printf("logger init failed: %v", err)
		os.Exit(1)
	}

	stores, err := openBackends(ctx, cfg, logg)
	if err != nil {
		logg.Error("store init", "err", err)
		os.Exit(1)
	}

	var reg *prometheus.Registry
	if cfg.RouteMetricsEnabled {
		reg = prometheus.NewRegistry()
	}

	svc := notes.NewService(stores.notes, logg)
	engine := notelist.New(svc, stores.prefs, logg,
		notelist.WithDefaultGridLayout(cfg.DefaultGridLayout),
		notelist.WithSnapshotBuffer(cfg.SnapshotBuffer),
		notelist.WithMetrics(notelist.NewMetrics(reg)),
	)
	if err := engine.Start(ctx); err != nil {
		logg.Error("engine start", "err", err)
		_ = stores.close(context.Background())
		os.Exit(1)
	}

	logg.Info("starting fido", "port", cfg.AppPort, "store", cfg.StoreDriver, "prefs", cfg.PrefsDriver)

	// Setup router and start server
	app := setupRouter(routerDeps{
		cfg:      cfg,
		service:  svc,
		engine:   engine,
		store:    stores.health,
		registry: reg,
	})
	portStr := fmt.Sprintf(":%d", cfg.AppPort)

	g.Go(func() error {
		err := app.Listen(portStr)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Graceful shutdown
	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		// Stop drains the queued store writes before the store goes away.
		engine.Stop()
		return stores.close(shutdownCtx)
	})

	// Wait and exit
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error("fatal", "err", err)
		os.Exit(1)
	}
	logg.Info("graceful shutdown complete")
}
