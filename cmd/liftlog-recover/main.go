package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/liftlog/internal/config"
	"github.com/claude/liftlog/internal/recovery"
)

// liftlog-recover inspects and clears the crash-recovery record without
// starting the server. Useful when a stale record keeps being offered
// or the recovery database needs a manual look.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	clear := flag.Bool("clear", false, "delete the recovery record instead of printing it")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := recovery.Open(cfg.Storage.DataDir)
	if err != nil {
		log.Error("failed to open recovery store", "dir", cfg.Storage.DataDir, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if *clear {
		if err := store.Delete(); err != nil {
			log.Error("failed to delete recovery record", "error", err)
			os.Exit(1)
		}
		log.Info("recovery record cleared")
		return
	}

	rec, err := store.Load()
	if err != nil {
		log.Error("failed to load recovery record", "error", err)
		os.Exit(1)
	}
	if rec == nil {
		fmt.Println("no recovery record")
		return
	}

	maxAge := time.Duration(cfg.Workout.RecoveryMaxAgeHours) * time.Hour
	log.Info("recovery record",
		"session_id", rec.SessionID,
		"template", rec.TemplateName,
		"started_at", rec.StartedAt.Format(time.RFC3339),
		"saved_at", rec.SavedAt.Format(time.RFC3339),
		"state", rec.StateTag,
		"expired", rec.Expired(time.Now(), maxAge),
	)
}
