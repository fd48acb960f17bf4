package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/mcp"
	"github.com/claude/liftlog/internal/storage"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	remote := flag.String("remote", "", "base URL of a running LiftLog server; when set, queries go over its REST API instead of opening the database")
	flag.Parse()

	// Stdout carries the MCP stdio transport; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource

	if *remote != "" {
		ds = mcp.NewHTTPClient(*remote)
		log.Info("mcp server starting", "mode", "remote", "url", *remote)
	} else {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}

		store, err := openStore(cfg)
		if err != nil {
			log.Error("failed to open history store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		ds = store
		log.Info("mcp server starting", "mode", "local", "backend", cfg.Storage.Backend)
	}

	s := mcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend == "postgres" {
		return storage.OpenPostgres(context.Background(), cfg.Storage.Postgres.DSN())
	}
	return storage.OpenSQLite(filepath.Join(cfg.Storage.DataDir, "history.db"))
}
