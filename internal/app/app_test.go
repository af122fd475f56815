package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/clock/system"
	"github.com/JakeFAU/funding-crawler/internal/config"
	"github.com/JakeFAU/funding-crawler/internal/funding"
)

type keywordClassifier struct{}

func (keywordClassifier) ClassifyFunding(_ context.Context, text string) (bool, error) {
	return strings.Contains(text, "raised"), nil
}

type firstWordExtractor struct{}

func (firstWordExtractor) ExtractFunding(_ context.Context, text string) (funding.ExtractionResult, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return funding.Single(funding.FundingEventDraft{}), nil
	}
	return funding.Single(funding.FundingEventDraft{
		CompanyName: strings.Trim(fields[0], ","),
		RawAmount:   "$12 million",
		RawRound:    "Seed",
	}), nil
}

type noGuesses struct{}

func (noGuesses) GuessEntityLinks(context.Context, string, string) (funding.LinkGuess, error) {
	return funding.LinkGuess{}, nil
}

func newsSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%[1]s/2025/03/03/acme-raises-seed/</loc></url>
  <url><loc>%[1]s/2025/03/03/globex-raises-seed/</loc></url>
</urlset>`, srv.URL)
	})
	article := func(company string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprintf(w, `<html><head><title>%[1]s raises $12 million</title></head><body><article>
<p>%[1]s raised $12 million in a seed funding round led by Example Ventures, the startup said on Monday.</p>
<p>The investment will fund hiring and product development as the company expands to new markets in Europe.</p>
<p>Investors in the round include several venture capital firms and angel investors from the logistics sector.</p>
<p>More at <a href="https://%[2]s.com">%[1]s</a>.</p>
</article></body></html>`, company, strings.ToLower(company))
		}
	}
	mux.HandleFunc("/2025/03/03/acme-raises-seed/", article("Acme"))
	mux.HandleFunc("/2025/03/03/globex-raises-seed/", article("Globex"))
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, seed string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Sources = []config.SourceConfig{{Name: "TestNews", URL: seed + "/"}}
	cfg.Crawler.HostDelayMs = 0
	cfg.Crawler.IdleTimeoutSeconds = 1
	cfg.HTTP.BackoffInitialMs = 1
	cfg.HTTP.BackoffMaxMs = 2
	cfg.Reports.Backend = "local"
	cfg.Reports.BaseDir = t.TempDir()
	return cfg
}

func testOptions() Options {
	return Options{
		DryRun:     true,
		Classifier: keywordClassifier{},
		Extractor:  firstWordExtractor{},
		Guesser:    noGuesses{},
		Clock:      system.Fixed{At: time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)},
	}
}

func TestAppRunsEndToEnd(t *testing.T) {
	t.Parallel()
	srv := newsSite(t)
	cfg := testConfig(t, srv.URL)

	a, err := New(context.Background(), cfg, testOptions(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.NoError(t, a.Ping(context.Background()))

	sources, err := a.Sources(nil)
	require.NoError(t, err)
	report, err := a.Runner().Run(context.Background(), sources)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Sources[0].Candidates)
	assert.Equal(t, 2, report.Inserted)
	assert.Zero(t, report.Published, "dry runs do not publish")

	records, err := a.Store().QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, "TestNews", rec.SourceName)
		assert.Equal(t, int64(12_000_000), rec.AmountRaised)
		assert.Equal(t, "2025-03-03", rec.RaisedDate, "date comes from the article URL")
		assert.Equal(t, "https://"+rec.NormalizedName+".com", rec.WebsiteURL)
	}

	require.True(t, strings.HasPrefix(report.Location, "file://"))
	path := filepath.Join(cfg.Reports.BaseDir, "runs", "2025", "03", "03", report.RunID+".json")
	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestAppSources(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "https://news.example")
	cfg.Sources = append(cfg.Sources, config.SourceConfig{Name: "Wire", URL: "https://wire.example/"})
	cfg.Reports.Backend = "none"

	a, err := New(context.Background(), cfg, testOptions(), nil)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	all, err := a.Sources(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	picked, err := a.Sources([]string{"wire"})
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, "Wire", picked[0].Name)

	_, err = a.Sources([]string{"nope"})
	require.ErrorContains(t, err, `unknown source "nope"`)
}

func TestAppRejectsUnknownReportBackend(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, "https://news.example")
	cfg.Reports.Backend = "ftp"

	_, err := New(context.Background(), cfg, testOptions(), nil)
	require.ErrorContains(t, err, "unknown reports backend")
}
