package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-intake/internal/embedding"
	"resume-intake/internal/generation"
	"resume-intake/internal/llm"
	"resume-intake/internal/llm/anthropic"
	"resume-intake/internal/llm/openai"
	"resume-intake/internal/pipeline"
	"resume-intake/internal/resumestore"
	"resume-intake/internal/search"
	"resume-intake/internal/search/azure"
	"resume-intake/internal/search/local"
	"resume-intake/internal/shared/config"
	"resume-intake/internal/shared/server"
	"resume-intake/internal/shared/storage/db"
	"resume-intake/internal/shared/storage/object"
	localstore "resume-intake/internal/shared/storage/object/local"
	memstore "resume-intake/internal/shared/storage/object/memory"
	s3store "resume-intake/internal/shared/storage/object/s3"
	"resume-intake/internal/shared/telemetry"
	"resume-intake/internal/submissions"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Objects     object.ObjectStore
	Store       *resumestore.Store
	Generator   *generation.Generator
	Embedder    *embedding.Generator
	Transcriber llm.Transcriber
	Search      search.Gateway
	LocalIndex  *local.Index
	History     submissions.Repo
	Pipeline    *pipeline.Pipeline
	Components  map[string]string
}

// Build constructs every adapter from cfg and wires the router. Missing provider
// settings fail with an errs.ConfigError.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

// BuildContext is Build with a caller-supplied context for startup I/O.
func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	cfg.ApplyDefaults()
	app := &App{Config: cfg, Components: map[string]string{}}

	objects, err := buildObjects(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	app.Objects = objects
	app.Store, err = resumestore.New(objects, config.Seconds(cfg.Storage.TimeoutSeconds))
	if err != nil {
		return nil, err
	}
	app.Components["storage"] = cfg.Storage.Type

	completer, err := buildCompleter(cfg.LLM)
	if err != nil {
		return nil, err
	}
	app.Generator, err = generation.New(completer, generation.Options{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	app.Components["llm"] = cfg.LLM.Provider + "/" + cfg.LLM.Model

	embedClient, err := openai.New(embeddingOptions(cfg.Embedding))
	if err != nil {
		return nil, err
	}
	app.Embedder, err = embedding.New(embedClient, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}
	app.Components["embedding"] = cfg.Embedding.Provider + "/" + cfg.Embedding.Model

	app.Transcriber = buildTranscriber(cfg)
	if app.Transcriber != nil {
		app.Components["transcription"] = cfg.Transcription.Model
	} else {
		app.Components["transcription"] = "disabled"
	}

	var (
		indexer   pipeline.Indexer
		reindexer search.Reindexer
	)
	switch cfg.Search.Provider {
	case "azure":
		gw, err := azure.New(azure.Options{
			Endpoint:       cfg.Search.Endpoint,
			APIKey:         cfg.Search.APIKey,
			APIVersion:     cfg.Search.APIVersion,
			Index:          cfg.Search.Index,
			SemanticConfig: cfg.Search.SemanticConfig,
			QueryType:      cfg.Search.QueryType,
			Timeout:        config.Seconds(cfg.Search.TimeoutSeconds),
			SelectFields:   cfg.Search.SelectFields,
		})
		if err != nil {
			return nil, err
		}
		app.Search = gw
	default:
		ix, err := local.New(local.Options{
			Path:           cfg.Search.IndexPath,
			KeywordWeight:  cfg.Search.KeywordWeight,
			SemanticWeight: cfg.Search.SemanticWeight,
			Embedder:       app.Embedder,
			Source:         app.Store,
		})
		if err != nil {
			return nil, err
		}
		if stats, err := ix.Reindex(ctx); err != nil {
			telemetry.Warn("bootstrap.reindex_failed", map[string]any{"error": err})
		} else {
			telemetry.Info("bootstrap.reindexed", map[string]any{"resumes": stats.Resumes, "embeddings": stats.Embeddings})
		}
		app.LocalIndex = ix
		app.Search = ix
		indexer = ix
		reindexer = ix
	}
	app.Components["search"] = cfg.Search.Provider

	if err := buildHistory(ctx, app); err != nil {
		return nil, err
	}

	app.Pipeline, err = pipeline.New(pipeline.Deps{
		Generator: app.Generator,
		Embedder:  app.Embedder,
		Store:     app.Store,
		Search:    app.Search,
		History:   app.History,
		Indexer:   indexer,
	})
	if err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config: cfg,
		Handlers: []server.RouteRegistrar{
			pipeline.NewHandler(app.Pipeline, app.Transcriber, cfg.MaxUploadBytes),
			resumestore.NewHandler(app.Store),
			search.NewHandler(app.Pipeline, reindexer),
			submissions.NewHandler(app.History),
		},
		Components: app.Components,
	})

	return app, nil
}

// Close releases the local index and database pool.
func (a *App) Close() error {
	var errList []error
	if a.LocalIndex != nil {
		errList = append(errList, a.LocalIndex.Close())
	}
	if a.DB != nil && db.DetectProfile() != db.ProfileLambda {
		errList = append(errList, a.DB.Close())
	}
	return errors.Join(errList...)
}

func buildObjects(ctx context.Context, cfg config.StorageConfig) (object.ObjectStore, error) {
	switch cfg.Type {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.Region,
			BucketPrefix:    cfg.BucketPrefix,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			ForcePathStyle:  cfg.ForcePathStyle,
		})
	case "memory":
		return memstore.New(), nil
	default:
		return localstore.New(cfg.LocalDir)
	}
}

func buildCompleter(cfg config.LLMConfig) (llm.Completer, error) {
	timeout := config.Seconds(cfg.TimeoutSeconds)
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(anthropic.Options{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	case "azure":
		return openai.New(openai.Options{
			Mode:         openai.ModeAzure,
			Endpoint:     cfg.Endpoint,
			APIKey:       cfg.APIKey,
			APIVersion:   cfg.APIVersion,
			Model:        cfg.Model,
			Timeout:      timeout,
			ModelSetting: "AZURE_OPENAI_RESUME_DEPLOYMENT_NAME",
		})
	default:
		return openai.New(openai.Options{
			Mode:     openai.ModeOpenAI,
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			Timeout:  timeout,
		})
	}
}

func embeddingOptions(cfg config.EmbeddingConfig) openai.Options {
	opts := openai.Options{
		Mode:         openai.ModeOpenAI,
		Endpoint:     cfg.Endpoint,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Dimensions:   cfg.Dimensions,
		Timeout:      config.Seconds(cfg.TimeoutSeconds),
		ModelSetting: "EMBEDDING_MODEL",
	}
	if opts.APIKey == "" {
		opts.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if cfg.Provider == "azure" {
		opts.Mode = openai.ModeAzure
		opts.APIVersion = cfg.APIVersion
		opts.ModelSetting = "AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME"
	}
	return opts
}

// buildTranscriber reuses the embedding provider's credentials. Transcription is optional:
// without it, audio uploads fail with a configuration error at request time.
func buildTranscriber(cfg config.Config) llm.Transcriber {
	opts := embeddingOptions(cfg.Embedding)
	opts.Model = cfg.Transcription.Model
	opts.Dimensions = 0
	opts.Timeout = config.Seconds(cfg.Transcription.TimeoutSeconds)
	opts.ModelSetting = "TRANSCRIPTION_MODEL"
	client, err := openai.New(opts)
	if err != nil {
		telemetry.Warn("bootstrap.transcription_disabled", map[string]any{"error": err})
		return nil
	}
	return client
}

func buildHistory(ctx context.Context, app *App) error {
	cfg := app.Config
	if cfg.History.Store != "postgres" {
		app.History = submissions.NewMemoryRepo()
		app.Components["history"] = "memory"
		return nil
	}

	sqlDB, err := db.Open(ctx, cfg.History.DatabaseURL, db.DetectProfile())
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_unavailable", map[string]any{"error": err})
			app.History = submissions.NewMemoryRepo()
			app.Components["history"] = "memory"
			return nil
		}
		return err
	}
	if cfg.History.RunMigrations {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	app.DB = sqlDB
	app.History = &submissions.PGRepo{DB: sqlDB}
	app.Components["history"] = "postgres"
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
