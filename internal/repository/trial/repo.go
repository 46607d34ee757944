package trial

import (
	"context"
	"errors"
	"fmt"

	"github.com/trialmatch/trialmatch/internal/db"
	"github.com/trialmatch/trialmatch/internal/domain"
)

// store is the consumer interface for trial persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	ScanPage(ctx context.Context, pattern string, cursor uint64, count int) ([]string, uint64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo persists trials as one hash per trial under the trial key prefix.
type Repo struct {
	store store
}

// New creates a trial repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// EnsureIndex creates the trial FT index when absent.
func (r *Repo) EnsureIndex(ctx context.Context, vectorDim int, hnsw HNSWConfig) error {
	exists, err := r.store.IndexExists(ctx, IndexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := BuildIndex(vectorDim, hnsw)
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert writes one trial and its embedding, replacing any previous record.
func (r *Repo) Upsert(ctx context.Context, t *domain.Trial, vector []float32) error {
	if t.NCTID == "" {
		return fmt.Errorf("trial has no nct_id")
	}
	fields, err := buildHashFields(t, vector)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, Key(t.NCTID), fields); err != nil {
		return fmt.Errorf("hset %s: %w", t.NCTID, err)
	}
	return nil
}

// UpsertBatch writes a batch of trials in one pipelined round-trip.
// len(vectors) must equal len(trials).
func (r *Repo) UpsertBatch(ctx context.Context, trials []domain.Trial, vectors [][]float32) error {
	if len(trials) != len(vectors) {
		return fmt.Errorf("trials/vectors length mismatch: %d vs %d", len(trials), len(vectors))
	}
	items := make([]db.HashSetItem, 0, len(trials))
	for i := range trials {
		if trials[i].NCTID == "" {
			continue
		}
		fields, err := buildHashFields(&trials[i], vectors[i])
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: Key(trials[i].NCTID), Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset batch: %w", err)
	}
	return nil
}

// Get fetches one trial by id.
func (r *Repo) Get(ctx context.Context, nctID string) (domain.Trial, error) {
	fields, err := r.store.HGetAll(ctx, Key(nctID))
	if err != nil {
		return domain.Trial{}, fmt.Errorf("hgetall %s: %w", nctID, err)
	}
	payload, ok := fields[FieldPayload]
	if !ok || payload == "" {
		return domain.Trial{}, domain.ErrTrialNotFound
	}
	return ParsePayload(payload)
}

// Delete removes a trial hash.
func (r *Repo) Delete(ctx context.Context, nctID string) error {
	if err := r.store.Del(ctx, Key(nctID)); err != nil {
		return fmt.Errorf("del %s: %w", nctID, err)
	}
	return nil
}

// ScanPage returns one page of trial payloads plus the continuation
// cursor (zero when exhausted). Hashes without a parseable payload are
// skipped rather than failing the page.
func (r *Repo) ScanPage(ctx context.Context, cursor uint64, count int) ([]domain.Trial, uint64, error) {
	keys, next, err := r.store.ScanPage(ctx, KeyPattern(), cursor, count)
	if err != nil {
		return nil, 0, fmt.Errorf("scan trials: %w", err)
	}
	if len(keys) == 0 {
		return nil, next, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch trial page: %w", err)
	}

	trials := make([]domain.Trial, 0, len(hashes))
	for _, fields := range hashes {
		payload := fields[FieldPayload]
		if payload == "" {
			continue
		}
		t, err := ParsePayload(payload)
		if err != nil {
			continue
		}
		trials = append(trials, t)
	}
	return trials, next, nil
}
