// Package pipeline runs a crawl across all configured sources.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/funding-crawler/internal/dedup"
	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/id/uuid"
	"github.com/JakeFAU/funding-crawler/internal/metrics"
	"github.com/JakeFAU/funding-crawler/internal/normalize"
	"github.com/JakeFAU/funding-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/funding-crawler/internal/retry"
	"github.com/JakeFAU/funding-crawler/internal/telemetry"
	"github.com/JakeFAU/funding-crawler/internal/worker"
)

// Source is one news site to crawl.
type Source struct {
	Name       string `mapstructure:"name"`
	URL        string `mapstructure:"url"`
	MaxResults int    `mapstructure:"max_results"`
}

// Discoverer finds candidate article links for a seed URL.
type Discoverer interface {
	Discover(ctx context.Context, seedURL string, maxResults int) ([]funding.CandidateLink, error)
}

// LinkResolver finds a company's website and profile page.
type LinkResolver interface {
	Resolve(ctx context.Context, name string, anchors []funding.CandidateLink) (website, profile funding.Resolution)
}

// Config tunes a Runner.
type Config struct {
	// Concurrency is the worker count per source.
	Concurrency int
	// ParallelSources bounds how many sources run at once.
	ParallelSources int
	// MaxResults caps candidates per source when the source sets none.
	MaxResults   int
	Topic        string
	ReportPrefix string
	DryRun       bool
	Worker       worker.Config
}

// DefaultConfig returns the production run settings.
func DefaultConfig() Config {
	return Config{
		Concurrency:     8,
		ParallelSources: 2,
		MaxResults:      50,
		Topic:           "funding-events",
		ReportPrefix:    "reports",
		Worker:          worker.DefaultConfig(),
	}
}

// Deps are the collaborators a Runner drives. Resolver, Publisher and Reports
// may be nil.
type Deps struct {
	Discoverer Discoverer
	Fetcher    funding.Fetcher
	Classifier funding.Classifier
	Extractor  funding.Extractor
	Resolver   LinkResolver
	Normalizer *normalize.Normalizer
	Engine     *dedup.Engine
	Publisher  funding.Publisher
	Reports    funding.BlobStore
	Limiter    *ratelimit.Limiter
	Policy     *retry.Policy
	Clock      funding.Clock
	IDs        funding.IDGenerator
}

// Runner executes crawl runs.
type Runner struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New validates deps and returns a Runner.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Discoverer == nil:
		return nil, errors.New("pipeline: discoverer is required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Classifier == nil || deps.Extractor == nil:
		return nil, errors.New("pipeline: classifier and extractor are required")
	case deps.Engine == nil:
		return nil, errors.New("pipeline: dedup engine is required")
	case deps.Clock == nil || deps.IDs == nil:
		return nil, errors.New("pipeline: clock and id generator are required")
	}
	if deps.Normalizer == nil {
		deps.Normalizer = normalize.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ParallelSources <= 0 {
		cfg.ParallelSources = def.ParallelSources
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.ReportPrefix == "" {
		cfg.ReportPrefix = def.ReportPrefix
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run crawls every source and persists what it found. Discovery failures are
// recorded per source and only returned when no source could be discovered.
// A store failure aborts the run with funding.ErrStoreUnavailable.
func (r *Runner) Run(ctx context.Context, sources []Source) (Report, error) {
	if len(sources) == 0 {
		return Report{}, errors.New("pipeline: no sources to crawl")
	}
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("new run id: %w", err)
	}
	ctx, span := telemetry.Tracer().Start(ctx, "crawl.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int("sources", len(sources)),
	))
	defer span.End()

	logger := r.logger.With(zap.String("run_id", runID))
	report := Report{
		RunID:     runID,
		StartedAt: r.deps.Clock.Now(),
		DryRun:    r.cfg.DryRun,
		Sources:   make([]SourceReport, len(sources)),
	}
	logger.Info("crawl run started", zap.Int("sources", len(sources)), zap.Bool("dry_run", r.cfg.DryRun))

	perSource := make([][]funding.FundingEventRecord, len(sources))
	discoveryErrs := make([]error, len(sources))
	var g errgroup.Group
	g.SetLimit(r.cfg.ParallelSources)
	for i, src := range sources {
		g.Go(func() error {
			report.Sources[i], perSource[i], discoveryErrs[i] = r.runSource(ctx, src, logger)
			return nil
		})
	}
	_ = g.Wait()

	var records []funding.FundingEventRecord
	for _, recs := range perSource {
		records = append(records, recs...)
	}
	report.Offered = len(records)

	inserted, err := r.deps.Engine.Insert(ctx, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist records")
		logger.Error("persisting records failed", zap.Error(err))
		report.FinishedAt = r.deps.Clock.Now()
		return report, fmt.Errorf("run %s: %w", runID, err)
	}
	report.Inserted = len(inserted)
	report.Records = inserted
	report.Published = r.publish(ctx, runID, inserted, logger)

	report.FinishedAt = r.deps.Clock.Now()
	metrics.ObserveRun(report.FinishedAt.Sub(report.StartedAt))
	report.Location = r.writeReport(ctx, report, logger)

	logger.Info("crawl run finished",
		zap.Int("offered", report.Offered),
		zap.Int("inserted", report.Inserted),
		zap.Int("failures", report.FailureCount()),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	if allFailed(discoveryErrs) {
		err := errors.Join(discoveryErrs...)
		span.SetStatus(codes.Error, "discovery failed for every source")
		return report, fmt.Errorf("run %s: %w", runID, err)
	}
	return report, nil
}

func (r *Runner) runSource(
	ctx context.Context,
	src Source,
	logger *zap.Logger,
) (SourceReport, []funding.FundingEventRecord, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "crawl.source", trace.WithAttributes(
		attribute.String("source", src.Name),
	))
	defer span.End()
	logger = logger.With(zap.String("source", src.Name))
	sr := SourceReport{Name: src.Name, URL: src.URL, Failures: []funding.Failure{}}

	maxResults := src.MaxResults
	if maxResults <= 0 {
		maxResults = r.cfg.MaxResults
	}
	candidates, err := r.deps.Discoverer.Discover(ctx, src.URL, maxResults)
	if err != nil {
		span.RecordError(err)
		logger.Warn("discovery failed", zap.Error(err))
		sr.DiscoveryError = err.Error()
		return sr, nil, err
	}
	sr.Candidates = len(candidates)

	wcfg := r.cfg.Worker
	wcfg.SourceName = src.Name
	pool := worker.New(r.deps.Fetcher, r.deps.Classifier, r.deps.Extractor, r.deps.Limiter, r.deps.Policy, wcfg, logger)
	res := pool.Process(ctx, candidates, r.cfg.Concurrency)
	sr.Drafts = len(res.Drafts)
	sr.Skipped = res.Skipped
	sr.Failures = append(sr.Failures, res.Failures...)

	crawled := r.deps.Clock.Now()
	records := make([]funding.FundingEventRecord, 0, len(res.Drafts))
	articles := make(map[string]struct{}, len(res.Drafts))
	for _, d := range res.Drafts {
		// Records are keyed on article URL, so only the first event of an
		// article can be stored.
		if _, dup := articles[d.ArticleURL]; dup {
			logger.Debug("dropping extra event from article",
				zap.String("url", d.ArticleURL),
				zap.String("company", d.CompanyName),
			)
			continue
		}
		articles[d.ArticleURL] = struct{}{}
		rec := r.deps.Normalizer.Record(d, crawled)
		if r.deps.Resolver != nil && ctx.Err() == nil {
			website, profile := r.deps.Resolver.Resolve(ctx, d.CompanyName, d.Anchors)
			rec.WebsiteURL = website.URL
			rec.LinkedinURL = profile.URL
		}
		records = append(records, rec)
	}
	sr.Records = len(records)
	logger.Info("source crawled",
		zap.Int("candidates", sr.Candidates),
		zap.Int("drafts", sr.Drafts),
		zap.Int("skipped", sr.Skipped),
		zap.Int("failures", len(sr.Failures)),
	)
	return sr, records, nil
}

// publish announces inserted records. Failures are logged and counted out.
func (r *Runner) publish(ctx context.Context, runID string, records []funding.FundingEventRecord, logger *zap.Logger) int {
	if r.deps.Publisher == nil || r.cfg.DryRun {
		return 0
	}
	published := 0
	for _, rec := range records {
		event := Event{EventID: uuid.EventID(rec.ArticleURL), RunID: runID, Record: rec}
		if _, err := r.deps.Publisher.Publish(ctx, r.cfg.Topic, event); err != nil {
			logger.Warn("publish funding event failed",
				zap.String("url", rec.ArticleURL),
				zap.Error(err),
			)
			continue
		}
		published++
	}
	return published
}

// writeReport stores the run report and returns its URI, or "" when reports
// are disabled or the write failed.
func (r *Runner) writeReport(ctx context.Context, report Report, logger *zap.Logger) string {
	if r.deps.Reports == nil {
		return ""
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Warn("encode run report failed", zap.Error(err))
		return ""
	}
	name := path.Join(
		strings.Trim(r.cfg.ReportPrefix, "/"),
		report.StartedAt.UTC().Format("2006/01/02"),
		report.RunID+".json",
	)
	uri, err := r.deps.Reports.PutObject(ctx, name, "application/json", bytes.NewReader(data))
	if err != nil {
		logger.Warn("write run report failed", zap.String("path", name), zap.Error(err))
		return ""
	}
	logger.Info("run report written", zap.String("uri", uri))
	return uri
}

func allFailed(errs []error) bool {
	for _, err := range errs {
		if err == nil {
			return false
		}
	}
	return len(errs) > 0
}
