package main

// Rebuild the local search index from the resume and embedding buckets:
//   SEARCH_INDEX_PATH=./data/index.bleve go run ./cmd/reindex

import (
	"context"
	"os"

	"resume-intake/internal/bootstrap"
	"resume-intake/internal/shared/config"
	"resume-intake/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// Build already reindexes once on startup for the local provider.
	app, err := bootstrap.BuildContext(ctx, cfg)
	if err != nil {
		telemetry.Error("reindex.bootstrap_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer app.Close()

	if app.LocalIndex == nil {
		telemetry.Error("reindex.unsupported", map[string]any{"search": app.Config.Search.Provider})
		os.Exit(2)
	}
	stats, err := app.LocalIndex.Reindex(ctx)
	if err != nil {
		telemetry.Error("reindex.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	telemetry.Info("reindex.done", map[string]any{
		"resumes":    stats.Resumes,
		"embeddings": stats.Embeddings,
		"removed":    stats.Removed,
		"path":       app.Config.Search.IndexPath,
	})
}
