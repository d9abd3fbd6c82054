package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"stlquote/internal/config"
	"stlquote/internal/http/middleware"
	"stlquote/internal/http/server"
	"stlquote/internal/infra/cache"
	"stlquote/internal/infra/fetch"
	"stlquote/internal/infra/logging"
	"stlquote/internal/infra/postgres"
	"stlquote/internal/infra/scratch"
	"stlquote/internal/mesh"
	"stlquote/internal/pricing"
	"stlquote/internal/quote"
)

func main() {
	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	units, err := mesh.ParseUnits(cfg.Mesh.Units)
	if err != nil {
		logging.Error("Invalid mesh units", "error", err)
		return
	}
	dir, err := scratch.New(cfg.Mesh.ScratchDir)
	if err != nil {
		logging.Error("Failed to prepare scratch directory", "error", err)
		return
	}

	var qc *cache.QuoteCache
	if cfg.Cache.QuoteCacheEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.QuoteCacheDB,
		})
		defer rdb.Close()
		qc = cache.New(rdb, cfg.Cache.QuoteCacheTTL)
	}

	svc := quote.NewService(
		fetch.NewDownloader(cfg.Download.Timeout, cfg.Download.MaxBytes),
		dir,
		units,
		pricing.Model{MaterialCostPerCM3: cfg.Pricing.MaterialCostPerCM3, BaseFee: cfg.Pricing.BaseFee},
		qc,
	)

	idleConnsClosed := make(chan struct{})

	var tokens middleware.TokenStore
	if cfg.Auth.Enabled {
		store := postgres.NewTokenStore(cfg.Auth.Postgres)
		defer store.Close()
		if err := store.Load(context.Background()); err != nil {
			logging.Error("Failed to load API tokens", "error", err)
		}
		go store.RefreshPeriodically(cfg.Auth.ReloadInterval, idleConnsClosed)
		tokens = store
	}

	app := server.New(server.Deps{Config: cfg, Service: svc, Tokens: tokens})
	logging.Info("Starting stlquote",
		"addr", cfg.ListenAddr(),
		"units", string(units),
		"material_cost_per_cm3", cfg.Pricing.MaterialCostPerCM3,
		"base_fee", cfg.Pricing.BaseFee,
		"scratch_dir", dir.Path(),
	)

	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)
	<-sigint

	logging.Warn("Shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
