package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/clock/system"
	"github.com/JakeFAU/funding-crawler/internal/dedup"
	"github.com/JakeFAU/funding-crawler/internal/funding"
	pubmemory "github.com/JakeFAU/funding-crawler/internal/publisher/memory"
	"github.com/JakeFAU/funding-crawler/internal/retry"
	"github.com/JakeFAU/funding-crawler/internal/storage/memory"
)

type fakeDiscoverer struct {
	links map[string][]string
}

func (d fakeDiscoverer) Discover(_ context.Context, seed string, maxResults int) ([]funding.CandidateLink, error) {
	urls, ok := d.links[seed]
	if !ok {
		return nil, &funding.DiscoveryError{Seed: seed, Attempts: []string{"sitemap: empty"}}
	}
	out := make([]funding.CandidateLink, 0, len(urls))
	for _, u := range urls {
		if len(out) == maxResults {
			break
		}
		out = append(out, funding.CandidateLink{URL: u, Domain: "news.example"})
	}
	return out, nil
}

type fakeFetcher struct {
	pages map[string]string
}

func (f fakeFetcher) Fetch(_ context.Context, req funding.FetchRequest) (funding.RawPage, error) {
	body, ok := f.pages[req.URL]
	if !ok {
		return funding.RawPage{URL: req.URL, Status: http.StatusNotFound}, nil
	}
	return funding.RawPage{URL: req.URL, Status: http.StatusOK, Body: []byte(body)}, nil
}

type yesClassifier struct{}

func (yesClassifier) ClassifyFunding(context.Context, string) (bool, error) { return true, nil }

// knownExtractor reports the first known company mentioned in the text.
type knownExtractor struct {
	names []string
}

func (e knownExtractor) ExtractFunding(_ context.Context, text string) (funding.ExtractionResult, error) {
	for _, n := range e.names {
		if strings.Contains(text, n) {
			return funding.Single(funding.FundingEventDraft{
				CompanyName: n + " Inc.",
				RawAmount:   "$5 million",
				RawRound:    "series a",
			}), nil
		}
	}
	return funding.Single(funding.FundingEventDraft{}), nil
}

// roundupExtractor reports every known company in one article.
type roundupExtractor struct {
	names []string
}

func (e roundupExtractor) ExtractFunding(_ context.Context, _ string) (funding.ExtractionResult, error) {
	drafts := make([]funding.FundingEventDraft, 0, len(e.names))
	for _, n := range e.names {
		drafts = append(drafts, funding.FundingEventDraft{CompanyName: n, RawAmount: "$5 million", RawRound: "seed"})
	}
	return funding.Multiple(drafts), nil
}

type fakeResolver struct {
	mu    sync.Mutex
	names []string
}

func (r *fakeResolver) Resolve(_ context.Context, name string, anchors []funding.CandidateLink) (funding.Resolution, funding.Resolution) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	for _, a := range anchors {
		if strings.HasSuffix(a.Domain, ".com") {
			return funding.Resolution{URL: "https://" + a.Domain, Level: funding.ConfidenceHigh},
				funding.Resolution{Level: funding.ConfidenceLow}
		}
	}
	return funding.Resolution{Level: funding.ConfidenceLow}, funding.Resolution{Level: funding.ConfidenceLow}
}

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("run-%d", s.n), nil
}

type brokenStore struct{}

func (brokenStore) UpsertMany(context.Context, []funding.FundingEventRecord) ([]funding.FundingEventRecord, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) QueryAll(context.Context) ([]funding.FundingEventRecord, error) {
	return nil, errors.New("connection refused")
}

func articleHTML(company string) string {
	return fmt.Sprintf(`<html><head><title>%[1]s raises $5 million</title>
<meta property="article:published_time" content="2024-03-05T10:00:00Z"></head>
<body><article>
<h1>%[1]s raises $5 million</h1>
<p>%[1]s, a robotics startup, raised $5 million in a Series A funding round led by Example Ventures.</p>
<p>The investment will pay for hiring and expansion across Europe and North America over the next two years.</p>
<p>Investors in the round include several venture capital firms focused on automation and industrial software.</p>
<p>Learn more at <a href="https://%[2]s.com">%[1]s</a>.</p>
</article></body></html>`, company, strings.ToLower(company))
}

var testSources = []Source{
	{Name: "TechCrunch", URL: "https://techcrunch.example"},
	{Name: "Wire", URL: "https://wire.example"},
}

type harness struct {
	store     *memory.RecordStore
	reports   *memory.BlobStore
	publisher *pubmemory.Publisher
	resolver  *fakeResolver
	deps      Deps
}

func newHarness() *harness {
	h := &harness{
		store:     memory.NewRecordStore(),
		reports:   memory.NewBlobStore(),
		publisher: pubmemory.New(),
		resolver:  &fakeResolver{},
	}
	h.deps = Deps{
		Discoverer: fakeDiscoverer{links: map[string][]string{
			"https://techcrunch.example": {
				"https://techcrunch.example/2024/03/05/acme",
				"https://techcrunch.example/2024/03/05/globex",
				"https://techcrunch.example/2024/03/05/gone",
			},
			"https://wire.example": {
				"https://wire.example/news/acme-funding",
				"https://wire.example/news/initech-funding",
			},
		}},
		Fetcher: fakeFetcher{pages: map[string]string{
			"https://techcrunch.example/2024/03/05/acme":   articleHTML("Acme"),
			"https://techcrunch.example/2024/03/05/globex": articleHTML("Globex"),
			"https://wire.example/news/acme-funding":       articleHTML("Acme"),
			"https://wire.example/news/initech-funding":    articleHTML("Initech"),
		}},
		Classifier: yesClassifier{},
		Extractor:  knownExtractor{names: []string{"Acme", "Globex", "Initech"}},
		Resolver:   h.resolver,
		Engine:     dedup.NewEngine(h.store, []string{"TechCrunch"}, zap.NewNop()),
		Publisher:  h.publisher,
		Reports:    h.reports,
		Policy:     retry.NewPolicy(retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
		Clock:      system.Fixed{At: time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)},
		IDs:        &sequenceIDs{},
	}
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = 2
	cfg.Worker.IdleTimeout = time.Second
	return cfg
}

func newRunner(t *testing.T, deps Deps, cfg Config) *Runner {
	t.Helper()
	r, err := New(deps, cfg, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRunPersistsPublishesAndReports(t *testing.T) {
	t.Parallel()
	h := newHarness()
	r := newRunner(t, h.deps, testConfig())

	report, err := r.Run(context.Background(), testSources)
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 4, report.Offered)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 3, report.Published)

	require.Len(t, report.Sources, 2)
	tc := report.Sources[0]
	assert.Equal(t, 3, tc.Candidates)
	assert.Equal(t, 2, tc.Drafts)
	require.Len(t, tc.Failures, 1)
	assert.Equal(t, http.StatusNotFound, tc.Failures[0].Status)
	assert.Equal(t, 2, report.Sources[1].Records)

	stored, err := h.store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 3)
	bySlug := map[string]funding.FundingEventRecord{}
	for _, rec := range stored {
		bySlug[rec.NormalizedName] = rec
	}
	acme := bySlug["acme"]
	assert.Equal(t, "TechCrunch", acme.SourceName, "higher priority source wins the duplicate")
	assert.Equal(t, "https://techcrunch.example/2024/03/05/acme", acme.ArticleURL)
	assert.Equal(t, int64(5_000_000), acme.AmountRaised)
	assert.Equal(t, "USD", acme.Currency)
	assert.Equal(t, "Series A", acme.FundingRound)
	assert.Equal(t, "2024-03-05", acme.RaisedDate)
	assert.Equal(t, "https://acme.com", acme.WebsiteURL)
	assert.Empty(t, acme.LinkedinURL)

	msgs := h.publisher.Messages("funding-events")
	require.Len(t, msgs, 3)
	event, ok := msgs[0].Payload.(Event)
	require.True(t, ok)
	assert.Equal(t, "run-1", event.RunID)
	assert.NotEmpty(t, event.EventID)

	assert.Equal(t, "memory://reports/2025/03/03/run-1.json", report.Location)
	obj, ok := h.reports.Get("reports/2025/03/03/run-1.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", obj.ContentType)
	var decoded Report
	require.NoError(t, json.Unmarshal(obj.Data, &decoded))
	assert.Equal(t, 3, decoded.Inserted)
	assert.Len(t, decoded.Records, 3)
}

func TestRunKeepsFirstEventOfMultiEventArticle(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.deps.Discoverer = fakeDiscoverer{links: map[string][]string{
		"https://wire.example": {"https://wire.example/news/acme-funding"},
	}}
	h.deps.Extractor = roundupExtractor{names: []string{"Acme", "Globex", "Initech"}}
	r := newRunner(t, h.deps, testConfig())

	report, err := r.Run(context.Background(), []Source{{Name: "Wire", URL: "https://wire.example"}})
	require.NoError(t, err)

	require.Len(t, report.Sources, 1)
	assert.Equal(t, 3, report.Sources[0].Drafts)
	assert.Equal(t, 1, report.Sources[0].Records)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, []string{"Acme"}, h.resolver.names, "sibling events are not resolved")

	stored, err := h.store.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Acme", stored[0].CompanyName)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness()
	r := newRunner(t, h.deps, testConfig())

	_, err := r.Run(context.Background(), testSources)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), testSources)
	require.NoError(t, err)

	assert.Equal(t, "run-2", second.RunID)
	assert.Equal(t, 4, second.Offered)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.Published)
	assert.Len(t, h.publisher.Messages(""), 3)
}

func TestRunRecordsDiscoveryFailurePerSource(t *testing.T) {
	t.Parallel()
	h := newHarness()
	r := newRunner(t, h.deps, testConfig())

	sources := append([]Source{{Name: "Dead", URL: "https://dead.example"}}, testSources...)
	report, err := r.Run(context.Background(), sources)
	require.NoError(t, err)
	assert.Contains(t, report.Sources[0].DiscoveryError, "no discovery strategy produced candidates")
	assert.Equal(t, 3, report.Inserted)
}

func TestRunFailsWhenEverySourceFailsDiscovery(t *testing.T) {
	t.Parallel()
	h := newHarness()
	r := newRunner(t, h.deps, testConfig())

	report, err := r.Run(context.Background(), []Source{
		{Name: "Dead", URL: "https://dead.example"},
		{Name: "Gone", URL: "https://gone.example"},
	})
	require.Error(t, err)
	var de *funding.DiscoveryError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, funding.ErrNoCandidates)
	assert.Zero(t, report.Offered)
	assert.NotEmpty(t, report.Location, "the report is still written")
}

func TestRunAbortsWhenStoreUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.deps.Engine = dedup.NewEngine(brokenStore{}, nil, zap.NewNop())
	r := newRunner(t, h.deps, testConfig())

	_, err := r.Run(context.Background(), testSources)
	require.ErrorIs(t, err, funding.ErrStoreUnavailable)
	assert.Empty(t, h.publisher.Messages(""))
	assert.Empty(t, h.reports.Paths())
}

func TestRunDryRunSkipsPublishing(t *testing.T) {
	t.Parallel()
	h := newHarness()
	cfg := testConfig()
	cfg.DryRun = true
	r := newRunner(t, h.deps, cfg)

	report, err := r.Run(context.Background(), testSources)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Inserted)
	assert.Zero(t, report.Published)
	assert.Empty(t, h.publisher.Messages(""))
}

func TestRunKeepsGoingWhenPublishFails(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.publisher.FailWith(errors.New("topic not found"))
	r := newRunner(t, h.deps, testConfig())

	report, err := r.Run(context.Background(), testSources)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Inserted)
	assert.Zero(t, report.Published)
}

func TestRunRespectsSourceMaxResults(t *testing.T) {
	t.Parallel()
	h := newHarness()
	r := newRunner(t, h.deps, testConfig())

	report, err := r.Run(context.Background(), []Source{{Name: "TechCrunch", URL: "https://techcrunch.example", MaxResults: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sources[0].Candidates)
	assert.Equal(t, 1, report.Inserted)
}

func TestRunRequiresSources(t *testing.T) {
	t.Parallel()
	r := newRunner(t, newHarness().deps, testConfig())
	_, err := r.Run(context.Background(), nil)
	require.Error(t, err)
}

func TestNewValidatesDeps(t *testing.T) {
	t.Parallel()
	deps := newHarness().deps
	deps.Engine = nil
	_, err := New(deps, Config{}, nil)
	require.Error(t, err)

	deps = newHarness().deps
	deps.Discoverer = nil
	_, err = New(deps, Config{}, nil)
	require.Error(t, err)
}
