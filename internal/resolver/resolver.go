// Package resolver finds a company's official website and company profile
// link by scoring article anchors and search results against its name.
package resolver

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/extract"
	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/metrics"
	"github.com/JakeFAU/funding-crawler/internal/normalize"
	"github.com/JakeFAU/funding-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/funding-crawler/internal/retry"
)

// Config holds the resolver thresholds. Scores are 0..100.
type Config struct {
	// AcceptScore accepts a candidate without verification.
	AcceptScore int
	// VerifyFloor is the lowest score that may be accepted after verification.
	VerifyFloor int
	// VerifyScore is the name-to-page similarity verification requires.
	VerifyScore int
	// MinAnchorScore is the anchor score under which search is used.
	MinAnchorScore int
	// EarlyStopScore stops issuing further queries.
	EarlyStopScore int
	// MaxVerifications bounds on-demand page fetches per resolution.
	MaxVerifications int
	SnippetChars     int
	VerifyTextChars  int
	Blocklist        []string
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		AcceptScore:      80,
		VerifyFloor:      50,
		VerifyScore:      70,
		MinAnchorScore:   80,
		EarlyStopScore:   85,
		MaxVerifications: 3,
		SnippetChars:     500,
		VerifyTextChars:  5000,
		Blocklist:        DefaultWebsiteBlocklist,
	}
}

// Resolver resolves entity links. Any collaborator may be nil, in which case
// the step that needs it is skipped.
type Resolver struct {
	searcher   funding.Searcher
	guesser    funding.Guesser
	fetcher    funding.Fetcher
	limiter    *ratelimit.Limiter
	policy     *retry.Policy
	normalizer *normalize.Normalizer
	blocklist  *domainBlocklist
	cfg        Config
	logger     *zap.Logger

	mu       sync.Mutex
	verified map[string]int
}

// New constructs a Resolver. The limiter, when set, paces search calls.
func New(
	searcher funding.Searcher,
	guesser funding.Guesser,
	fetcher funding.Fetcher,
	limiter *ratelimit.Limiter,
	policy *retry.Policy,
	cfg Config,
	logger *zap.Logger,
) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = retry.NewPolicy(retry.Config{})
	}
	defaults := DefaultConfig()
	if cfg.AcceptScore <= 0 {
		cfg.AcceptScore = defaults.AcceptScore
	}
	if cfg.VerifyFloor <= 0 {
		cfg.VerifyFloor = defaults.VerifyFloor
	}
	if cfg.VerifyScore <= 0 {
		cfg.VerifyScore = defaults.VerifyScore
	}
	if cfg.MinAnchorScore <= 0 {
		cfg.MinAnchorScore = defaults.MinAnchorScore
	}
	if cfg.EarlyStopScore <= 0 {
		cfg.EarlyStopScore = defaults.EarlyStopScore
	}
	if cfg.MaxVerifications <= 0 {
		cfg.MaxVerifications = defaults.MaxVerifications
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = defaults.SnippetChars
	}
	if cfg.VerifyTextChars <= 0 {
		cfg.VerifyTextChars = defaults.VerifyTextChars
	}
	if cfg.Blocklist == nil {
		cfg.Blocklist = defaults.Blocklist
	}
	return &Resolver{
		searcher:   searcher,
		guesser:    guesser,
		fetcher:    fetcher,
		limiter:    limiter,
		policy:     policy,
		normalizer: normalize.Default(),
		blocklist:  newDomainBlocklist(cfg.Blocklist),
		cfg:        cfg,
		logger:     logger,
		verified:   make(map[string]int),
	}
}

// WithNormalizer swaps the name normalizer, keeping identity reasoning in
// line with a custom normalization vocabulary.
func (r *Resolver) WithNormalizer(n *normalize.Normalizer) *Resolver {
	if n != nil {
		r.normalizer = n
	}
	return r
}

// request is one company lookup. The guess is fetched at most once and shared
// between link kinds.
type request struct {
	name    string
	norm    string
	anchors []funding.CandidateLink
	guessed bool
	guess   funding.LinkGuess
}

func (r *Resolver) newRequest(name string, anchors []funding.CandidateLink) *request {
	return &request{
		name:    strings.TrimSpace(name),
		norm:    r.normalizer.CompanyName(name),
		anchors: anchors,
	}
}

// ResolveWebsite returns the company's official website, or a low-confidence
// empty Resolution.
func (r *Resolver) ResolveWebsite(ctx context.Context, name string, anchors []funding.CandidateLink) funding.Resolution {
	return r.resolve(ctx, websiteKind, r.newRequest(name, anchors))
}

// ResolveProfileLink returns the company's linkedin.com/company page, or a
// low-confidence empty Resolution.
func (r *Resolver) ResolveProfileLink(ctx context.Context, name string, anchors []funding.CandidateLink) funding.Resolution {
	return r.resolve(ctx, profileKind, r.newRequest(name, anchors))
}

// Resolve runs both lookups for one company, sharing a single guess call.
func (r *Resolver) Resolve(ctx context.Context, name string, anchors []funding.CandidateLink) (website, profile funding.Resolution) {
	req := r.newRequest(name, anchors)
	website = r.resolve(ctx, websiteKind, req)
	profile = r.resolve(ctx, profileKind, req)
	return website, profile
}

func (r *Resolver) resolve(ctx context.Context, kind linkKind, req *request) funding.Resolution {
	logger := r.logger.With(zap.String("company", req.name), zap.String("kind", kind.name))
	if req.norm == "" {
		return r.finish(kind, funding.Resolution{Level: funding.ConfidenceLow}, logger)
	}

	set := newCandidateSet()
	for _, a := range req.anchors {
		if canonical, score, ok := kind.locate(r, req.norm, a.URL); ok {
			set.add(funding.EntityLinkCandidate{URL: canonical, MatchScore: score, MatchType: "anchor"})
		}
	}
	if set.best() < r.cfg.MinAnchorScore {
		r.search(ctx, kind, req, kind.queries(req.name), set, logger)
	}
	if res, ok := r.accept(ctx, set, req.norm, logger); ok {
		return r.finish(kind, res, logger)
	}

	if guesses := kind.guesses(r.guessFor(ctx, req, logger)); len(guesses) > 0 {
		for _, g := range guesses {
			if canonical, score, ok := kind.locate(r, req.norm, guessURL(g)); ok {
				set.add(funding.EntityLinkCandidate{URL: canonical, MatchScore: score, MatchType: "guess"})
			}
		}
		r.search(ctx, kind, req, guesses, set, logger)
		if res, ok := r.accept(ctx, set, req.norm, logger); ok {
			return r.finish(kind, res, logger)
		}
	}
	return r.finish(kind, funding.Resolution{Confidence: set.best(), Level: funding.ConfidenceLow}, logger)
}

func (r *Resolver) finish(kind linkKind, res funding.Resolution, logger *zap.Logger) funding.Resolution {
	metrics.ObserveResolution(kind.name, string(res.Level))
	logger.Debug("entity link resolved",
		zap.String("url", res.URL),
		zap.Int("confidence", res.Confidence),
		zap.String("level", string(res.Level)),
		zap.String("match_type", res.MatchType),
	)
	return res
}

// search runs queries in order and adds every acceptable hit to set. It stops
// once a hit reaches EarlyStopScore. Search failures are logged and skipped.
func (r *Resolver) search(
	ctx context.Context,
	kind linkKind,
	req *request,
	queries []string,
	set *candidateSet,
	logger *zap.Logger,
) {
	if r.searcher == nil {
		return
	}
	for _, q := range queries {
		if ctx.Err() != nil || set.best() >= r.cfg.EarlyStopScore {
			return
		}
		if r.limiter != nil {
			if err := r.limiter.WaitKey(ctx, "search"); err != nil {
				return
			}
		}
		var hits []funding.SearchResult
		err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
			var err error
			hits, err = r.searcher.Search(ctx, q, kind.maxResults)
			return err
		})
		if err != nil {
			logger.Warn("search failed", zap.String("query", q), zap.Error(err))
			continue
		}
		for _, hit := range hits {
			canonical, structural, ok := kind.locate(r, req.norm, hit.URL)
			if !ok {
				continue
			}
			c := funding.EntityLinkCandidate{URL: canonical, MatchScore: structural, MatchType: "search_domain"}
			if text := textEvidence(req.norm, hit, r.cfg.SnippetChars, r.cfg.AcceptScore-1); text > structural {
				c.MatchScore, c.MatchType = text, "search_text"
			}
			set.add(c)
		}
	}
}

// accept picks the best candidate that clears the two-tier threshold.
func (r *Resolver) accept(ctx context.Context, set *candidateSet, norm string, logger *zap.Logger) (funding.Resolution, bool) {
	verifications := 0
	for _, c := range set.ranked() {
		if c.MatchScore >= r.cfg.AcceptScore {
			return funding.Resolution{
				URL:        c.URL,
				Confidence: c.MatchScore,
				Level:      funding.ConfidenceHigh,
				MatchType:  c.MatchType,
			}, true
		}
		if c.MatchScore < r.cfg.VerifyFloor || verifications >= r.cfg.MaxVerifications {
			break
		}
		verifications++
		if r.verify(ctx, c.URL, norm, logger) {
			return funding.Resolution{
				URL:        c.URL,
				Confidence: c.MatchScore,
				Level:      funding.ConfidenceMedium,
				MatchType:  c.MatchType + "+verified",
			}, true
		}
	}
	return funding.Resolution{}, false
}

// verify fetches rawURL and checks that its title or text mentions the company.
// Results are cached per URL for the resolver's lifetime.
func (r *Resolver) verify(ctx context.Context, rawURL, norm string, logger *zap.Logger) bool {
	if r.fetcher == nil {
		return false
	}
	cacheKey := norm + "|" + rawURL
	r.mu.Lock()
	score, seen := r.verified[cacheKey]
	r.mu.Unlock()
	if !seen {
		score = r.verificationScore(ctx, rawURL, norm, logger)
		r.mu.Lock()
		r.verified[cacheKey] = score
		r.mu.Unlock()
	}
	return score >= r.cfg.VerifyScore
}

func (r *Resolver) verificationScore(ctx context.Context, rawURL, norm string, logger *zap.Logger) int {
	page, err := r.fetcher.Fetch(ctx, funding.FetchRequest{URL: rawURL})
	if err != nil {
		logger.Debug("verification fetch failed", zap.String("url", rawURL), zap.Error(err))
		return 0
	}
	if page.Status < 200 || page.Status >= 300 {
		return 0
	}
	doc, err := extract.Parse(page.Body)
	if err != nil {
		return 0
	}
	score := matchScore(norm, squash(extract.Title(doc)))
	text := []rune(extract.MainText(doc))
	if len(text) > r.cfg.VerifyTextChars {
		text = text[:r.cfg.VerifyTextChars]
	}
	if s := matchScore(norm, squash(string(text))); s > score {
		score = s
	}
	return score
}

// guessFor asks the guesser once per request. The article context handed to it
// is rebuilt from the anchor snippets.
func (r *Resolver) guessFor(ctx context.Context, req *request, logger *zap.Logger) funding.LinkGuess {
	if r.guesser == nil || req.guessed {
		return req.guess
	}
	req.guessed = true
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		var err error
		req.guess, err = r.guesser.GuessEntityLinks(ctx, anchorText(req.anchors), req.name)
		return err
	})
	if err != nil {
		logger.Warn("link guess failed", zap.Error(err))
		req.guess = funding.LinkGuess{}
	}
	return req.guess
}

func anchorText(anchors []funding.CandidateLink) string {
	const limit = 2000
	var b strings.Builder
	for _, a := range anchors {
		if a.Context == "" {
			continue
		}
		if b.Len()+len(a.Context)+1 > limit {
			break
		}
		b.WriteString(a.Context)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}
