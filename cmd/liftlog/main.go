package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/claude/liftlog/internal/clock"
	"github.com/claude/liftlog/internal/completion"
	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/recovery"
	"github.com/claude/liftlog/internal/server"
	"github.com/claude/liftlog/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("LiftLog starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Error("failed to create data dir", "dir", cfg.Storage.DataDir, "error", err)
		os.Exit(1)
	}

	// Run migrations on the history backend
	dsn := historyDSN(cfg)
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "backend", cfg.Storage.Backend)

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Open history store
	store, err := openStore(cfg)
	if err != nil {
		log.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("history store opened", "backend", cfg.Storage.Backend)

	// Crash recovery: the tier-3 record and tier-2 mirror are always
	// local, even when history lives in Postgres.
	recStore, err := recovery.Open(cfg.Storage.DataDir)
	if err != nil {
		log.Error("failed to open recovery store", "error", err)
		os.Exit(1)
	}
	defer recStore.Close()

	mirror, err := recovery.NewMirror(cfg.Storage.DataDir, log)
	if err != nil {
		log.Error("failed to open session mirror", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Options{
		Store:          store,
		Mirror:         mirror,
		Recovery:       recStore,
		Clock:          clock.Real(),
		Evaluator:      completion.NopEvaluator{},
		GlobalRestSec:  cfg.Workout.DefaultRestSec,
		RecoveryMaxAge: time.Duration(cfg.Workout.RecoveryMaxAgeHours) * time.Hour,
		SaveInterval:   time.Duration(cfg.Workout.AutosaveIntervalSec) * time.Second,
		APIKey:         cfg.Auth.APIKey,
		Log:            log,
	})
	srv.Start()
	defer srv.Close()

	// Start server — tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// historyDSN builds the migration DSN for the configured backend.
func historyDSN(cfg *config.Config) string {
	if cfg.Storage.Backend == "postgres" {
		return cfg.Storage.Postgres.DSN()
	}
	return "sqlite://" + filepath.Join(cfg.Storage.DataDir, "history.db")
}

// openStore opens the configured history backend.
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend == "postgres" {
		return storage.OpenPostgres(context.Background(), cfg.Storage.Postgres.DSN())
	}
	return storage.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "history.db"))
}
