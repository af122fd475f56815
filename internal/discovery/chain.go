package discovery

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/metrics"
)

// Config controls the discovery chain.
type Config struct {
	SitemapPaths      []string
	FeedPaths         []string
	MaxChildSitemaps  int
	NavSelectors      string
	MaxCategoryPages  int
	MinHomepageBytes  int
	DefaultMaxResults int
	Shape             Shape
}

// DefaultConfig returns the built-in discovery settings.
func DefaultConfig() Config {
	return Config{
		SitemapPaths:      []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap-news.xml"},
		FeedPaths:         []string{"/feed/", "/rss", "/atom.xml"},
		MaxChildSitemaps:  5,
		NavSelectors:      "nav a, header a, .navigation a, .nav a, .menu a, .navbar a, .main-nav a, .site-nav a, .primary-nav a",
		MaxCategoryPages:  5,
		MinHomepageBytes:  1000,
		DefaultMaxResults: 50,
		Shape:             DefaultShape(),
	}
}

// Chain runs the discovery strategies in priority order.
type Chain struct {
	fetcher    funding.Fetcher
	cfg        Config
	strategies []strategy
	logger     *zap.Logger
}

// New constructs a Chain. Zero-valued config fields take their defaults.
func New(fetcher funding.Fetcher, cfg Config, logger *zap.Logger) *Chain {
	def := DefaultConfig()
	if len(cfg.SitemapPaths) == 0 {
		cfg.SitemapPaths = def.SitemapPaths
	}
	if len(cfg.FeedPaths) == 0 {
		cfg.FeedPaths = def.FeedPaths
	}
	if cfg.MaxChildSitemaps <= 0 {
		cfg.MaxChildSitemaps = def.MaxChildSitemaps
	}
	if cfg.NavSelectors == "" {
		cfg.NavSelectors = def.NavSelectors
	}
	if cfg.MaxCategoryPages <= 0 {
		cfg.MaxCategoryPages = def.MaxCategoryPages
	}
	if cfg.MinHomepageBytes < 0 {
		cfg.MinHomepageBytes = 0
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = def.DefaultMaxResults
	}
	if cfg.Shape.MinStrictPathChars == 0 {
		cfg.Shape = def.Shape
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	shape := cfg.Shape
	return &Chain{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		strategies: []strategy{
			sitemapStrategy{paths: cfg.SitemapPaths, feeds: cfg.FeedPaths, maxChildren: cfg.MaxChildSitemaps, shape: shape},
			categoryStrategy{navSelectors: cfg.NavSelectors, maxPages: cfg.MaxCategoryPages, shape: shape},
			homepageStrategy{kind: funding.StrategyGeneric, match: shape.LooksLikeArticle},
			homepageStrategy{kind: funding.StrategyDeepHomepage, match: shape.LooksLikeArticleRelaxed},
		},
	}
}

// Discover returns up to maxResults candidate links for seedURL. The first
// strategy to return anything wins. A strategy that cannot reach its
// resources is skipped; a *funding.DiscoveryError is returned only when all of
// them come back empty.
func (c *Chain) Discover(ctx context.Context, seedURL string, maxResults int) ([]funding.CandidateLink, error) {
	seed, err := url.Parse(seedURL)
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return nil, fmt.Errorf("invalid seed url %q", seedURL)
	}
	if maxResults <= 0 {
		maxResults = c.cfg.DefaultMaxResults
	}

	s := newSite(seed, c.fetcher, c.cfg.MinHomepageBytes)
	attempts := make([]string, 0, len(c.strategies))
	for _, st := range c.strategies {
		kind := st.Kind().String()
		links, err := st.Discover(ctx, s, maxResults)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("discover %s: %w", seedURL, ctxErr)
		}
		if err != nil {
			c.logger.Info("discovery strategy skipped",
				zap.String("seed", seedURL),
				zap.String("strategy", kind),
				zap.Error(err),
			)
			attempts = append(attempts, kind+": "+err.Error())
			continue
		}
		if len(links) > maxResults {
			links = links[:maxResults]
		}
		metrics.ObserveDiscovery(kind, len(links))
		if len(links) > 0 {
			c.logger.Info("discovery strategy succeeded",
				zap.String("seed", seedURL),
				zap.String("strategy", kind),
				zap.Int("links", len(links)),
			)
			return links, nil
		}
		attempts = append(attempts, kind+": empty")
	}
	return nil, &funding.DiscoveryError{Seed: seedURL, Attempts: attempts}
}
