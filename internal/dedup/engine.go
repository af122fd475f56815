package dedup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/metrics"
)

// DefaultSourcePriority prefers TechCrunch when sources overlap.
var DefaultSourcePriority = []string{"TechCrunch"}

// Engine suppresses in-run duplicates and persists the survivors.
type Engine struct {
	store    funding.RecordStore
	priority []string
	logger   *zap.Logger
}

// NewEngine constructs an Engine. A nil priority uses DefaultSourcePriority.
func NewEngine(store funding.RecordStore, sourcePriority []string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sourcePriority == nil {
		sourcePriority = DefaultSourcePriority
	}
	return &Engine{store: store, priority: sourcePriority, logger: logger}
}

// Insert deduplicates records and returns those the store actually inserted.
// Store failures wrap funding.ErrStoreUnavailable.
func (e *Engine) Insert(ctx context.Context, records []funding.FundingEventRecord) ([]funding.FundingEventRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	sup := NewSuppressor(e.priority)
	for _, rec := range records {
		sup.Add(rec)
	}
	survivors := sup.Records()
	if n := sup.Suppressed(); n > 0 {
		metrics.ObserveSuppressed(n)
		e.logger.Info("suppressed duplicate records", zap.Int("suppressed", n), zap.Int("kept", len(survivors)))
	}

	inserted, err := e.store.UpsertMany(ctx, survivors)
	if err != nil {
		if !errors.Is(err, funding.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", funding.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("upsert records: %w", err)
	}

	bySource := make(map[string]int)
	for _, rec := range inserted {
		bySource[rec.SourceName]++
	}
	for source, n := range bySource {
		metrics.ObserveInserted(source, n)
	}
	e.logger.Info("records persisted",
		zap.Int("offered", len(survivors)),
		zap.Int("inserted", len(inserted)),
	)
	return inserted, nil
}

// UpsertMany is Insert reporting only the inserted count. Re-running it with
// the same article URLs returns 0.
func (e *Engine) UpsertMany(ctx context.Context, records []funding.FundingEventRecord) (int, error) {
	inserted, err := e.Insert(ctx, records)
	if err != nil {
		return 0, err
	}
	return len(inserted), nil
}
