package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"smaug.org/internal/config"
	"smaug.org/internal/directory"
	"smaug.org/internal/httpapi"
	"smaug.org/internal/obs"
	"smaug.org/internal/opa"
	"smaug.org/internal/permit"
	"smaug.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	// Without a DSN the exports serve from an empty in-memory directory, which
	// keeps the proxy routes usable in compose setups that run migrations
	// separately.
	var dir directory.Service = directory.NewInMemory()
	var db *sql.DB
	if cfg.PGDSN != "" {
		store, err := pg.Open(cfg.PGDSN)
		if err != nil {
			logger.Fatal("open db", zap.Error(err))
		}
		dir = store
		db = store.DB()
	} else {
		logger.Warn("SMAUG_PG_DSN not set, attribute exports will be empty")
	}

	// One outbound client shared by both upstreams so the timeout budget is
	// uniform.
	outbound := &http.Client{Timeout: cfg.UpstreamTimeout}

	api := httpapi.New(
		httpapi.ReadyProbe{DB: db},
		version,
		dir,
		permit.New(cfg, outbound),
		opa.New(cfg, outbound),
		cfg,
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting smaug-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("pdp_url", cfg.PDPURL))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	logger.Info("stopped")
}
