// Package worker runs the bounded fetch/classify pool that turns candidate
// links into funding drafts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/extract"
	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/metrics"
	"github.com/JakeFAU/funding-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/funding-crawler/internal/retry"
)

// Config controls Pool behavior.
type Config struct {
	// SourceName is stamped on every draft the pool produces.
	SourceName string
	// IdleTimeout stops a worker that waited this long for a candidate.
	IdleTimeout time.Duration
	// MaxClassifierChars caps the text handed to the classifier.
	MaxClassifierChars int
	// MaxExtractorChars caps the text handed to the extractor.
	MaxExtractorChars int
	// CollaboratorTimeout bounds each classifier or extractor call.
	CollaboratorTimeout time.Duration
	Headers             http.Header
	Gate                GateConfig
	Vocabulary          Vocabulary
}

// DefaultConfig returns the production pool settings.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:         5 * time.Second,
		MaxClassifierChars:  3000,
		MaxExtractorChars:   6000,
		CollaboratorTimeout: 60 * time.Second,
		Gate:                DefaultGateConfig(),
		Vocabulary:          DefaultVocabulary(),
	}
}

// Result is the outcome of one Process call. Skipped counts pages that were
// fetched fine but are not funding news.
type Result struct {
	Drafts   []funding.FundingEventDraft
	Failures []funding.Failure
	Skipped  int
}

// Pool fetches candidates concurrently and routes good pages to the collaborators.
type Pool struct {
	fetcher    funding.Fetcher
	classifier funding.Classifier
	extractor  funding.Extractor
	limiter    *ratelimit.Limiter
	policy     *retry.Policy
	gate       gate
	prefilter  *Prefilter
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pool. A nil limiter disables host pacing.
func New(
	fetcher funding.Fetcher,
	classifier funding.Classifier,
	extractor funding.Extractor,
	limiter *ratelimit.Limiter,
	policy *retry.Policy,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = retry.NewPolicy(retry.Config{})
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Second
	}
	if cfg.MaxClassifierChars <= 0 {
		cfg.MaxClassifierChars = 3000
	}
	if cfg.MaxExtractorChars <= 0 {
		cfg.MaxExtractorChars = 6000
	}
	if cfg.CollaboratorTimeout <= 0 {
		cfg.CollaboratorTimeout = 60 * time.Second
	}
	return &Pool{
		fetcher:    fetcher,
		classifier: classifier,
		extractor:  extractor,
		limiter:    limiter,
		policy:     policy,
		gate:       newGate(cfg.Gate),
		prefilter:  NewPrefilter(cfg.Vocabulary),
		cfg:        cfg,
		logger:     logger,
	}
}

// outcome is what one candidate produced.
type outcome struct {
	drafts  []funding.FundingEventDraft
	failure *funding.Failure
	skipped bool
}

// Process runs up to concurrency workers over candidates and blocks until all
// of them have been handled or ctx is done. Candidates left unprocessed on
// cancellation are reported as transient failures.
func (p *Pool) Process(ctx context.Context, candidates []funding.CandidateLink, concurrency int) Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > len(candidates) {
		concurrency = len(candidates)
	}
	queue := make(chan funding.CandidateLink, len(candidates))
	for _, c := range candidates {
		queue <- c
	}
	close(queue)

	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)
	collect := func(o outcome) {
		mu.Lock()
		defer mu.Unlock()
		res.Drafts = append(res.Drafts, o.drafts...)
		if o.failure != nil {
			res.Failures = append(res.Failures, *o.failure)
		}
		if o.skipped {
			res.Skipped++
		}
	}

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.run(ctx, id, queue, collect)
		}(i)
	}
	wg.Wait()

	reason := "not processed"
	if cause := context.Cause(ctx); cause != nil {
		reason = fmt.Sprintf("not processed: %v", cause)
	}
	for c := range queue {
		res.Failures = append(res.Failures, funding.Failure{
			URL:    c.URL,
			Kind:   funding.FailureTransient,
			Stage:  "queue",
			Reason: reason,
		})
	}
	return res
}

func (p *Pool) run(ctx context.Context, id int, queue <-chan funding.CandidateLink, collect func(outcome)) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	idle := time.NewTimer(p.cfg.IdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
			p.logger.Debug("worker idle, stopping", zap.Int("worker", id))
			return
		case c, ok := <-queue:
			if !ok {
				return
			}
			collect(p.handle(ctx, c))
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(p.cfg.IdleTimeout)
		}
	}
}

func (p *Pool) handle(ctx context.Context, c funding.CandidateLink) outcome {
	logger := p.logger.With(zap.String("url", c.URL), zap.String("source", p.cfg.SourceName))

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, c.URL); err != nil {
			return failed(c.URL, funding.FailureTransient, "fetch", err.Error(), 0)
		}
	}
	page, err := p.fetcher.Fetch(ctx, funding.FetchRequest{URL: c.URL, Headers: p.cfg.Headers})
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		return failed(c.URL, kindOf(err), "fetch", err.Error(), 0)
	}
	metrics.ObserveFetch(c.URL, page.Status, len(page.Body))
	if page.URL == "" {
		page.URL = c.URL
	}

	in, rejection := p.gate.inspect(page)
	if rejection != nil {
		logger.Info("page rejected by gate", zap.String("reason", rejection.Reason))
		return outcome{failure: rejection}
	}

	if ok, reason := p.prefilter.Allow(in.text); !ok {
		metrics.ObserveClassification("prefiltered")
		logger.Debug("page prefiltered", zap.String("reason", reason))
		return outcome{skipped: true}
	}

	isFunding, err := p.classify(ctx, truncate(in.text, p.cfg.MaxClassifierChars))
	if err != nil {
		metrics.ObserveClassification("error")
		logger.Warn("classification failed", zap.Error(err))
		return failed(c.URL, kindOf(err), "classify", err.Error(), page.Status)
	}
	if !isFunding {
		metrics.ObserveClassification("not_funding")
		return outcome{skipped: true}
	}
	metrics.ObserveClassification("funding")

	extraction, err := p.extract(ctx, truncate(in.text, p.cfg.MaxExtractorChars))
	if err != nil {
		logger.Warn("extraction failed", zap.Error(err))
		return failed(c.URL, kindOf(err), "extract", err.Error(), page.Status)
	}

	base, err := url.Parse(c.URL)
	if err != nil {
		return failed(c.URL, funding.FailureFatalItem, "extract", err.Error(), page.Status)
	}
	anchors := extract.DocumentLinks(in.doc, base, c.DiscoveredBy)
	published := extract.PublishedDate(in.doc, c.URL)

	var drafts []funding.FundingEventDraft
	for _, d := range extraction.Drafts() {
		if d.CompanyName == "" {
			continue
		}
		d.ArticleURL = c.URL
		d.SourceName = p.cfg.SourceName
		d.PublishedDate = published
		d.Anchors = anchors
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return failed(c.URL, funding.FailureContentQuality, "extract", "missing company name", page.Status)
	}
	logger.Info("funding drafts extracted", zap.Int("drafts", len(drafts)))
	return outcome{drafts: drafts}
}

func (p *Pool) classify(ctx context.Context, text string) (bool, error) {
	var isFunding bool
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
		defer cancel()
		var err error
		isFunding, err = p.classifier.ClassifyFunding(callCtx, text)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("classify: %w", err)
	}
	return isFunding, nil
}

func (p *Pool) extract(ctx context.Context, text string) (funding.ExtractionResult, error) {
	var result funding.ExtractionResult
	err := retry.Do(ctx, p.policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CollaboratorTimeout)
		defer cancel()
		var err error
		result, err = p.extractor.ExtractFunding(callCtx, text)
		return err
	})
	if err != nil {
		return funding.ExtractionResult{}, fmt.Errorf("extract: %w", err)
	}
	return result, nil
}

func failed(rawURL string, kind funding.FailureKind, stage, reason string, status int) outcome {
	return outcome{failure: &funding.Failure{
		URL:    rawURL,
		Kind:   kind,
		Stage:  stage,
		Reason: reason,
		Status: status,
	}}
}

// kindOf maps an error to a failure kind. Timeouts and throttling count as
// transient; everything else is fatal to the item only.
func kindOf(err error) funding.FailureKind {
	if funding.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return funding.FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return funding.FailureTransient
	}
	return funding.FailureFatalItem
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
