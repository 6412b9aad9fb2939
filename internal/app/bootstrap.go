package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"dupecheck/internal/cli"
	"dupecheck/internal/config"
	"dupecheck/internal/db"
	"dupecheck/internal/embedding"
	"dupecheck/internal/logging"
	"dupecheck/internal/pipeline"
)

// runtime bundles the wired pipeline dependencies for one command
// invocation.
type runtime struct {
	cfg          *config.Config
	logger       zerolog.Logger
	pool         *db.Pool
	orchestrator *pipeline.Orchestrator
}

func (r *runtime) close() {
	if r.pool != nil {
		if err := r.pool.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("closing database")
		}
	}
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	pool, err := db.NewPool(ctx, db.Options{
		Path:        cfg.DatabasePath(),
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := pipeline.NewStore(pool)
	catalog := pipeline.NewCatalog(pool)
	provider := embedding.NewClient(embedding.ClientOptions{
		Endpoint:       cfg.EmbeddingEndpoint,
		ModelName:      cfg.EmbeddingModelName,
		Dimensions:     cfg.EmbeddingDimensions,
		MaxLength:      cfg.EmbeddingMaxLength,
		RequestTimeout: cfg.EmbeddingRequestTimeout,
	})

	opts := pipeline.Options{
		CSVPath:              cfg.CSVPath,
		EnableEmbedding:      cfg.EnableEmbedding,
		BatchSizeLoad:        cfg.BatchSizeLoad,
		BatchSizeStates:      cfg.BatchSizeStates,
		BatchSizeURL:         cfg.BatchSizeURL,
		BatchSizeContentHash: cfg.BatchSizeContentHash,
		BatchSizeEmbedding:   cfg.BatchSizeEmbedding,
		CacheMaxEntries:      cfg.CacheMaxEntries,
		CheckpointInterval:   cfg.CheckpointInterval,
	}

	orchestrator := pipeline.NewOrchestrator(store, catalog, provider, opts, logger)

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		pool:         pool,
		orchestrator: orchestrator,
	}, nil
}

func loadEnvFile(loader *cli.EnvLoader) {
	if loader == nil {
		return
	}
	if _, err := loader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}
