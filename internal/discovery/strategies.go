package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/mmcdole/gofeed"

	"github.com/JakeFAU/funding-crawler/internal/extract"
	"github.com/JakeFAU/funding-crawler/internal/funding"
)

type strategy interface {
	Kind() funding.StrategyKind
	Discover(ctx context.Context, s *site, maxResults int) ([]funding.CandidateLink, error)
}

// sitemapStrategy reads <loc> entries from well-known sitemap paths, following
// one level of sitemap indexes, then tops up from RSS or Atom feeds.
type sitemapStrategy struct {
	paths       []string
	feeds       []string
	maxChildren int
	shape       Shape
}

func (sitemapStrategy) Kind() funding.StrategyKind { return funding.StrategySitemap }

func (st sitemapStrategy) Discover(ctx context.Context, s *site, maxResults int) ([]funding.CandidateLink, error) {
	var (
		out       []funding.CandidateLink
		reachable bool
		seen      = make(map[string]struct{})
	)
	for _, p := range st.paths {
		body, err := s.fetchOK(ctx, s.origin+p)
		if err != nil {
			continue
		}
		reachable = true
		pages, children, err := parseSitemap(body)
		if err != nil {
			continue
		}
		for i, child := range children {
			if i >= st.maxChildren {
				break
			}
			childBody, err := s.fetchOK(ctx, child)
			if err != nil {
				continue
			}
			childPages, _, err := parseSitemap(childBody)
			if err != nil {
				continue
			}
			pages = append(pages, childPages...)
		}
		out = st.collect(s, pages, seen, out, maxResults)
		if len(out) >= maxResults {
			break
		}
	}
	for _, p := range st.feeds {
		if len(out) >= maxResults {
			break
		}
		body, err := s.fetchOK(ctx, s.origin+p)
		if err != nil {
			continue
		}
		links, err := parseFeed(body)
		if err != nil {
			continue
		}
		reachable = true
		out = st.collect(s, links, seen, out, maxResults)
	}
	if !reachable {
		return nil, errors.New("no sitemap or feed reachable")
	}
	return out, nil
}

func (st sitemapStrategy) collect(
	s *site,
	locs []string,
	seen map[string]struct{},
	out []funding.CandidateLink,
	maxResults int,
) []funding.CandidateLink {
	for _, loc := range locs {
		if len(out) >= maxResults {
			break
		}
		norm, err := extract.NormalizeURL(loc)
		if err != nil {
			continue
		}
		u, err := url.Parse(norm)
		if err != nil || !st.shape.LooksLikeArticle(u) {
			continue
		}
		link := funding.CandidateLink{URL: norm, Domain: extract.Domain(norm), DiscoveredBy: funding.StrategySitemap}
		if !s.sameSite(link) {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, link)
	}
	return out
}

// parseSitemap returns page locations and child sitemap locations.
func parseSitemap(body []byte) ([]string, []string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse sitemap: %w", err)
	}
	var pages, children []string
	for _, n := range xmlquery.Find(doc, "//*[local-name()='url']/*[local-name()='loc']") {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			pages = append(pages, loc)
		}
	}
	for _, n := range xmlquery.Find(doc, "//*[local-name()='sitemap']/*[local-name()='loc']") {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			children = append(children, loc)
		}
	}
	return pages, children, nil
}

// parseFeed returns the item links of an RSS, Atom or JSON feed.
func parseFeed(body []byte) ([]string, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	links := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if link := strings.TrimSpace(item.Link); link != "" {
			links = append(links, link)
		}
	}
	return links, nil
}

// categoryStrategy crawls section pages linked from the site navigation.
type categoryStrategy struct {
	navSelectors string
	maxPages     int
	shape        Shape
}

func (categoryStrategy) Kind() funding.StrategyKind { return funding.StrategyCategoryPages }

func (st categoryStrategy) Discover(ctx context.Context, s *site, maxResults int) ([]funding.CandidateLink, error) {
	home, err := s.homepage(ctx)
	if err != nil {
		return nil, err
	}
	sections := st.sections(s, extract.Links(home.Find(st.navSelectors), s.seed, funding.StrategyCategoryPages))
	if len(sections) == 0 {
		return nil, nil
	}

	var out []funding.CandidateLink
	seen := make(map[string]struct{})
	for _, section := range sections {
		body, err := s.fetchOK(ctx, section.URL)
		if err != nil {
			continue
		}
		doc, err := extract.Parse(body)
		if err != nil {
			continue
		}
		base, _ := url.Parse(section.URL)
		for _, link := range extract.DocumentLinks(doc, base, funding.StrategyCategoryPages) {
			if _, dup := seen[link.URL]; dup || !s.sameSite(link) {
				continue
			}
			if u, err := url.Parse(link.URL); err != nil || !st.shape.LooksLikeArticle(u) {
				continue
			}
			seen[link.URL] = struct{}{}
			out = append(out, link)
			if len(out) >= maxResults {
				return out, nil
			}
		}
	}
	return out, nil
}

func (st categoryStrategy) sections(s *site, nav []funding.CandidateLink) []funding.CandidateLink {
	var out []funding.CandidateLink
	for _, link := range nav {
		if len(out) >= st.maxPages {
			break
		}
		if !s.sameSite(link) {
			continue
		}
		u, err := url.Parse(link.URL)
		if err != nil || !st.shape.IsSectionLink(u) {
			continue
		}
		out = append(out, link)
	}
	return out
}

// homepageStrategy scans the seed page's own anchors with a shape test.
type homepageStrategy struct {
	kind  funding.StrategyKind
	match func(*url.URL) bool
}

func (st homepageStrategy) Kind() funding.StrategyKind { return st.kind }

func (st homepageStrategy) Discover(ctx context.Context, s *site, maxResults int) ([]funding.CandidateLink, error) {
	home, err := s.homepage(ctx)
	if err != nil {
		return nil, err
	}
	var out []funding.CandidateLink
	for _, link := range extract.DocumentLinks(home, s.seed, st.kind) {
		if !s.sameSite(link) {
			continue
		}
		u, err := url.Parse(link.URL)
		if err != nil || !st.match(u) {
			continue
		}
		out = append(out, link)
		if len(out) >= maxResults {
			break
		}
	}
	return out, nil
}
