// Command ctingest loads ClinicalTrials.gov studies into the search index.
package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/config"
	dbRedis "github.com/trialmatch/trialmatch/internal/db/redis"
	"github.com/trialmatch/trialmatch/internal/ingest"
	logpkg "github.com/trialmatch/trialmatch/internal/logger"
	"github.com/trialmatch/trialmatch/internal/metrics"
	"github.com/trialmatch/trialmatch/internal/repository/embcache"
	trialrepo "github.com/trialmatch/trialmatch/internal/repository/trial"
	openaiClient "github.com/trialmatch/trialmatch/internal/transport/openai"
	"github.com/trialmatch/trialmatch/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting trialmatch ingest",
		zap.String("version", version.Version),
		zap.String("env", env),
		zap.String("ctgov_base_url", cfg.Ingest.BaseURL),
		zap.Strings("statuses", cfg.Ingest.Statuses),
		zap.String("start_date", cfg.Ingest.StartDate),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	metrics.RegisterEmbeddingMetrics()
	ingest.RegisterMetrics()

	baseEmbedder := openaiClient.NewEmbedder(&openaiClient.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	embedder := embcache.New(baseEmbedder, store, metrics.EmbeddingCacheTotal, logger)

	source := ingest.NewCTGovClient(ingest.CTGovConfig{
		BaseURL:   cfg.Ingest.BaseURL,
		PageSize:  cfg.Ingest.PageSize,
		Statuses:  cfg.Ingest.Statuses,
		StartDate: cfg.Ingest.StartDate,
		EndDate:   cfg.Ingest.EndDate,
	}, logger)

	pipeline := ingest.NewPipeline(source, embedder, trialrepo.New(store), ingest.PipelineConfig{
		Workers:   cfg.Ingest.Workers,
		BatchSize: cfg.Ingest.BatchSize,
		VectorDim: cfg.Embedding.Dimensions,
		HNSW: trialrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	}, logger)

	result, err := pipeline.Run(ctx)
	if err != nil {
		logger.Fatal("Ingest failed",
			zap.Int64("processed", result.Processed),
			zap.Int64("failed", result.Failed),
			zap.Error(err))
	}

	logger.Info("Ingest finished",
		zap.Int64("processed", result.Processed),
		zap.Int64("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)
}
