// Package app builds the long-lived services a crawl needs from configuration
// and owns their shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/clock/system"
	"github.com/JakeFAU/funding-crawler/internal/collaborator/llm"
	"github.com/JakeFAU/funding-crawler/internal/collaborator/tavily"
	"github.com/JakeFAU/funding-crawler/internal/config"
	"github.com/JakeFAU/funding-crawler/internal/dedup"
	"github.com/JakeFAU/funding-crawler/internal/discovery"
	collyfetcher "github.com/JakeFAU/funding-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/id/uuid"
	"github.com/JakeFAU/funding-crawler/internal/pipeline"
	"github.com/JakeFAU/funding-crawler/internal/policy/ratelimit"
	pubmemory "github.com/JakeFAU/funding-crawler/internal/publisher/memory"
	"github.com/JakeFAU/funding-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/funding-crawler/internal/resolver"
	"github.com/JakeFAU/funding-crawler/internal/retry"
	"github.com/JakeFAU/funding-crawler/internal/storage/gcs"
	"github.com/JakeFAU/funding-crawler/internal/storage/local"
	"github.com/JakeFAU/funding-crawler/internal/storage/memory"
	"github.com/JakeFAU/funding-crawler/internal/storage/postgres"
	"github.com/JakeFAU/funding-crawler/internal/worker"
)

// Options adjust how services are built. Collaborator fields override the
// configured adapters when set.
type Options struct {
	// DryRun keeps records in memory and skips publishing.
	DryRun bool

	Fetcher    funding.Fetcher
	Classifier funding.Classifier
	Extractor  funding.Extractor
	Guesser    funding.Guesser
	Searcher   funding.Searcher
	Clock      funding.Clock
}

type pingable interface {
	Ping(ctx context.Context) error
}

// App holds the services shared by every run.
type App struct {
	cfg     config.Config
	runner  *pipeline.Runner
	store   funding.RecordStore
	logger  *zap.Logger
	closers []func() error
}

// New creates and initializes an App from cfg. It fails fast if a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, opts Options, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	logger.Info("initializing application services", zap.Bool("dry_run", opts.DryRun))

	store, err := a.newRecordStore(ctx, opts.DryRun)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store

	reports, err := a.newReportStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.newPublisher(ctx, opts.DryRun)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := retry.NewPolicy(retry.Config{
		MaxAttempts: cfg.HTTP.MaxRetries,
		BaseDelay:   time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	})
	headers := http.Header{}
	headers.Set("User-Agent", cfg.Crawler.UserAgent)

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Crawler.UserAgent,
			Timeout:   cfg.HTTPTimeout(),
		})
	}
	fetcher = retry.NewFetcher(fetcher, policy, logger.Named("fetch"))

	classifier, extractor, guesser, err := a.newCollaborators(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	searcher := opts.Searcher
	if searcher == nil && cfg.Search.APIKey != "" {
		client, err := tavily.New(tavily.Config{
			BaseURL:     cfg.Search.BaseURL,
			APIKey:      cfg.Search.APIKey,
			SearchDepth: cfg.Search.SearchDepth,
		}, logger.Named("search"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init search client: %w", err)
		}
		searcher = client
	}
	if searcher == nil {
		logger.Warn("search is disabled; entity links rely on anchors and guesses only")
	}

	limiter := ratelimit.New(ratelimit.Config{
		Interval: time.Duration(cfg.Crawler.HostDelayMs) * time.Millisecond,
	})
	searchLimiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Resolver.SearchRPS})

	linkResolver := resolver.New(searcher, guesser, fetcher, searchLimiter, policy, resolver.Config{
		AcceptScore:    cfg.Resolver.AcceptScore,
		VerifyFloor:    cfg.Resolver.VerifyFloor,
		VerifyScore:    cfg.Resolver.VerifyScore,
		MinAnchorScore: cfg.Resolver.MinAnchorScore,
		EarlyStopScore: cfg.Resolver.EarlyStopScore,
	}, logger.Named("resolver"))

	wcfg := worker.DefaultConfig()
	wcfg.Headers = headers
	wcfg.IdleTimeout = time.Duration(cfg.Crawler.IdleTimeoutSeconds) * time.Second
	wcfg.MaxClassifierChars = cfg.Crawler.MaxClassifierChars
	wcfg.CollaboratorTimeout = cfg.LLMTimeout()
	wcfg.Gate.MinBodyBytes = cfg.Crawler.MinBodyBytes
	wcfg.Gate.MinTextChars = cfg.Crawler.MinTextChars

	clock := opts.Clock
	if clock == nil {
		clock = system.New()
	}
	runner, err := pipeline.New(pipeline.Deps{
		Discoverer: discovery.New(fetcher, discovery.Config{DefaultMaxResults: cfg.Crawler.MaxResults}, logger.Named("discovery")),
		Fetcher:    fetcher,
		Classifier: classifier,
		Extractor:  extractor,
		Resolver:   linkResolver,
		Engine:     dedup.NewEngine(store, cfg.Dedup.SourcePriority, logger.Named("dedup")),
		Publisher:  publisher,
		Reports:    reports,
		Limiter:    limiter,
		Policy:     policy,
		Clock:      clock,
		IDs:        uuid.New(),
	}, pipeline.Config{
		Concurrency:     cfg.Crawler.Concurrency,
		ParallelSources: cfg.Crawler.ParallelSources,
		MaxResults:      cfg.Crawler.MaxResults,
		Topic:           cfg.PubSub.Topic,
		ReportPrefix:    cfg.Reports.Prefix,
		DryRun:          opts.DryRun,
		Worker:          wcfg,
	}, logger.Named("pipeline"))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = runner

	logger.Info("application services initialized")
	return a, nil
}

// Runner returns the crawl runner.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// Store returns the record store.
func (a *App) Store() funding.RecordStore {
	return a.store
}

// Ping checks the record store.
func (a *App) Ping(ctx context.Context) error {
	if p, ok := a.store.(pingable); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("record store: %w", err)
		}
	}
	return nil
}

// Sources returns the configured sources, restricted to names when any are
// given. Matching is case-insensitive; an unknown name is an error.
func (a *App) Sources(names []string) ([]pipeline.Source, error) {
	all := make([]pipeline.Source, 0, len(a.cfg.Sources))
	byName := make(map[string]pipeline.Source, len(a.cfg.Sources))
	for _, s := range a.cfg.Sources {
		src := pipeline.Source{Name: s.Name, URL: s.URL, MaxResults: s.MaxResults}
		all = append(all, src)
		byName[strings.ToLower(s.Name)] = src
	}
	if len(names) == 0 {
		return all, nil
	}
	out := make([]pipeline.Source, 0, len(names))
	for _, n := range names {
		src, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown source %q (configured: %s)", n, strings.Join(a.cfg.SourceNames(), ", "))
		}
		out = append(out, src)
	}
	return out, nil
}

// Close shuts down every service App opened, in reverse order.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) newRecordStore(ctx context.Context, dryRun bool) (funding.RecordStore, error) {
	if dryRun || a.cfg.DB.DSN == "" {
		a.logger.Info("using in-memory record store; records will not survive the process")
		return memory.NewRecordStore(), nil
	}
	a.logger.Info("connecting to PostgreSQL", zap.String("table", a.cfg.DB.Table))
	store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize record store: %w", err)
	}
	a.closers = append(a.closers, func() error { store.Close(); return nil })
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return store, nil
}

func (a *App) newReportStore(ctx context.Context) (funding.BlobStore, error) {
	switch a.cfg.Reports.Backend {
	case "local":
		a.logger.Info("writing run reports locally", zap.String("dir", a.cfg.Reports.BaseDir))
		store, err := local.New(local.Config{BaseDir: a.cfg.Reports.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize report store: %w", err)
		}
		return store, nil
	case "gcs":
		a.logger.Info("writing run reports to GCS", zap.String("bucket", a.cfg.Reports.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Reports.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize report store: %w", err)
		}
		return store, nil
	case "none", "":
		a.logger.Info("run reports are disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown reports backend: %s", a.cfg.Reports.Backend)
	}
}

func (a *App) newPublisher(ctx context.Context, dryRun bool) (funding.Publisher, error) {
	if dryRun || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("using in-memory publisher; events stay in process")
		return pubmemory.New(), nil
	}
	a.logger.Info("connecting to Pub/Sub", zap.String("topic", a.cfg.PubSub.Topic))
	pub, err := pubsub.New(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

func (a *App) newCollaborators(opts Options) (funding.Classifier, funding.Extractor, funding.Guesser, error) {
	classifier, extractor, guesser := opts.Classifier, opts.Extractor, opts.Guesser
	if classifier != nil && extractor != nil && guesser != nil {
		return classifier, extractor, guesser, nil
	}
	client, err := llm.New(llm.Config{
		BaseURL: a.cfg.LLM.BaseURL,
		APIKey:  a.cfg.LLM.APIKey,
		Model:   a.cfg.LLM.Model,
		Timeout: a.cfg.LLMTimeout(),
	}, a.logger.Named("llm"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init llm client: %w", err)
	}
	if a.cfg.LLM.APIKey == "" {
		a.logger.Warn("llm.api_key is empty; only keyless endpoints will work")
	}
	if classifier == nil {
		classifier = client
	}
	if extractor == nil {
		extractor = client
	}
	if guesser == nil {
		guesser = client
	}
	return classifier, extractor, guesser, nil
}
