package main

// Manage submission-history migrations:
//   DATABASE_URL=postgres://... go run ./cmd/migrate -action up
//   DATABASE_URL=postgres://... go run ./cmd/migrate -action version

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resume-intake/internal/shared/config"
	"resume-intake/internal/shared/storage/db"
	"resume-intake/internal/shared/telemetry"
)

func main() {
	action := flag.String("action", "up", "up, down or version")
	flag.Parse()

	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, cfg.LogFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, *action))
}

func run(ctx context.Context, cfg config.Config, action string) int {
	sqlDB, err := db.Open(ctx, cfg.History.DatabaseURL, db.ProfileMigrate)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		return 1
	}
	defer sqlDB.Close()

	switch action {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "version":
		var version int64
		version, err = db.MigrationVersion(ctx, sqlDB)
		if err == nil {
			fmt.Println(version)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", action)
		return 2
	}
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"action": action, "error": err})
		return 1
	}
	return 0
}
