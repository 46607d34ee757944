package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/trialmatch/trialmatch/internal/domain"
	"github.com/trialmatch/trialmatch/internal/repository/trial"
)

// Source pages through normalized trial records. An empty next token
// ends the stream.
type Source interface {
	FetchPage(ctx context.Context, pageToken string) ([]domain.Trial, string, error)
}

// trialWriter is the consumer interface for index writes (ISP).
type trialWriter interface {
	EnsureIndex(ctx context.Context, vectorDim int, hnsw trial.HNSWConfig) error
	UpsertBatch(ctx context.Context, trials []domain.Trial, vectors [][]float32) error
}

// PipelineConfig tunes the loader.
type PipelineConfig struct {
	Workers   int
	BatchSize int
	VectorDim int
	HNSW      trial.HNSWConfig
}

// Pipeline streams trials from a source into the index:
// producer -> channel(batches) -> N workers -> embed + batch upsert.
type Pipeline struct {
	source Source
	embed  domain.Embedder
	repo   trialWriter
	cfg    PipelineConfig
	logger *zap.Logger
}

// Result summarizes one ingest run.
type Result struct {
	Processed int64
	Failed    int64
	Duration  time.Duration
}

// NewPipeline creates an ingest pipeline.
func NewPipeline(source Source, embed domain.Embedder, repo trialWriter, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &Pipeline{source: source, embed: embed, repo: repo, cfg: cfg, logger: logger}
}

// Run drains the source into the index. Index creation is idempotent.
// A failed batch is counted and logged but does not stop the run; a
// source failure does.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if err := p.repo.EnsureIndex(ctx, p.cfg.VectorDim, p.cfg.HNSW); err != nil {
		return Result{}, fmt.Errorf("ensure index: %w", err)
	}

	start := time.Now()
	batches := make(chan []domain.Trial, p.cfg.Workers*2)

	var processed, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for batch := range batches {
				p.processBatch(ctx, workerID, batch, &processed, &failed)
			}
		}(i)
	}

	var sourceErr error
	go func() {
		defer close(batches)
		sourceErr = p.produce(ctx, batches)
	}()

	wg.Wait()

	result := Result{
		Processed: processed.Load(),
		Failed:    failed.Load(),
		Duration:  time.Since(start),
	}
	if sourceErr != nil {
		return result, sourceErr
	}
	return result, nil
}

func (p *Pipeline) produce(ctx context.Context, out chan<- []domain.Trial) error {
	batch := make([]domain.Trial, 0, p.cfg.BatchSize)
	token := ""
	fetched := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		page, next, err := p.source.FetchPage(ctx, token)
		if err != nil {
			return fmt.Errorf("fetch studies page: %w", err)
		}

		for _, t := range page {
			batch = append(batch, t)
			if len(batch) >= p.cfg.BatchSize {
				out <- batch
				batch = make([]domain.Trial, 0, p.cfg.BatchSize)
			}
		}

		fetched += len(page)
		if fetched > 0 && fetched%1000 < len(page) {
			p.logger.Info("Fetched studies", zap.Int("count", fetched))
		}

		if next == "" {
			break
		}
		token = next
	}

	if len(batch) > 0 {
		out <- batch
	}
	return nil
}

func (p *Pipeline) processBatch(
	ctx context.Context, workerID int, batch []domain.Trial,
	processed, failed *atomic.Int64,
) {
	start := time.Now()

	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = embeddingText(&batch[i])
	}

	res, err := p.batchEmbed(ctx, texts)
	if err == nil && len(res.Embeddings) != len(batch) {
		err = fmt.Errorf("got %d embeddings for %d trials", len(res.Embeddings), len(batch))
	}
	if err == nil {
		err = p.repo.UpsertBatch(ctx, batch, res.Embeddings)
	}

	batchDuration.Observe(time.Since(start).Seconds())
	batchesTotal.Inc()

	if err != nil {
		p.logger.Error("Batch failed",
			zap.Int("worker", workerID),
			zap.Int("size", len(batch)),
			zap.Error(err))
		failed.Add(int64(len(batch)))
		trialsProcessed.WithLabelValues("failed").Add(float64(len(batch)))
		return
	}

	processed.Add(int64(len(batch)))
	trialsProcessed.WithLabelValues("ok").Add(float64(len(batch)))

	total := processed.Load()
	if total%1000 < int64(len(batch)) {
		p.logger.Info("Ingest progress",
			zap.Int64("processed", total),
			zap.Int64("failed", failed.Load()))
	}
}

func (p *Pipeline) batchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.embed.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, p.embed, texts)
}
