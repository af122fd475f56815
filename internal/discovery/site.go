package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/funding-crawler/internal/extract"
	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/metrics"
)

// site carries per-seed state shared by the strategies of one Discover call.
type site struct {
	seed    *url.URL
	origin  string
	domain  string
	fetcher funding.Fetcher

	minHomeBytes int
	homeFetched  bool
	homeDoc      *goquery.Document
	homeErr      error
}

func newSite(seed *url.URL, fetcher funding.Fetcher, minHomeBytes int) *site {
	return &site{
		seed:         seed,
		origin:       seed.Scheme + "://" + seed.Host,
		domain:       extract.Domain(seed.String()),
		fetcher:      fetcher,
		minHomeBytes: minHomeBytes,
	}
}

// fetchOK returns the body of rawURL when it answers 200.
func (s *site) fetchOK(ctx context.Context, rawURL string) ([]byte, error) {
	page, err := s.fetcher.Fetch(ctx, funding.FetchRequest{URL: rawURL})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	metrics.ObserveFetch(rawURL, page.Status, len(page.Body))
	if page.Status != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, page.Status)
	}
	return page.Body, nil
}

// homepage fetches and parses the seed page once.
func (s *site) homepage(ctx context.Context) (*goquery.Document, error) {
	if s.homeFetched {
		return s.homeDoc, s.homeErr
	}
	s.homeFetched = true
	body, err := s.fetchOK(ctx, s.seed.String())
	if err != nil {
		s.homeErr = err
		return nil, err
	}
	if len(body) < s.minHomeBytes {
		s.homeErr = fmt.Errorf("homepage too short: %d bytes", len(body))
		return nil, s.homeErr
	}
	s.homeDoc, s.homeErr = extract.Parse(body)
	return s.homeDoc, s.homeErr
}

func (s *site) sameSite(link funding.CandidateLink) bool {
	return extract.SameSite(link.Domain, s.domain)
}
