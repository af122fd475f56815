package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

func TestFetcherBuildCollector(t *testing.T) {
	t.Parallel()

	f := New(Config{UserAgent: "coverage-agent", Timeout: time.Second})
	req := funding.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}

	collector := f.buildCollector(req, &funding.RawPage{}, new(error))
	if collector.UserAgent != "coverage-agent" {
		t.Fatalf("expected user agent override, got %q", collector.UserAgent)
	}
	if !collector.ParseHTTPErrorResponse {
		t.Fatal("expected error responses to be parsed")
	}
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"Accept-Language": {"en"}}})
	f.now = func() time.Time { return time.Unix(100, 0) }
	req := funding.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result funding.RawPage
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, &result, &fetchErr)
	if hooks.onRequest == nil || hooks.onResponse == nil || hooks.onError == nil {
		t.Fatal("expected hooks to be registered")
	}

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	if collyReq.Headers.Get("X-Trace") != "yes" || collyReq.Headers.Get("Accept-Language") != "en" {
		t.Fatalf("expected header propagation, got %+v", collyReq.Headers)
	}

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       []byte("slow down"),
		Headers:    &http.Header{"Retry-After": {"5"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com"),
		},
	})
	if result.Status != http.StatusTooManyRequests || string(result.Body) != "slow down" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Headers.Get("Retry-After") != "5" {
		t.Fatalf("expected headers copied, got %+v", result.Headers)
	}
	if !result.FetchedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("unexpected fetchedAt %v", result.FetchedAt)
	}

	hooks.onError(nil, errors.New("boom"))
	if fetchErr == nil || fetchErr.Error() != "boom" {
		t.Fatalf("expected fetchErr set, got %v", fetchErr)
	}
}

func TestRequestHeadersOverrideDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"Accept": {"text/html"}}})
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(funding.FetchRequest{Headers: http.Header{"Accept": {"application/xml"}}}, collyReq)
	require.Equal(t, []string{"application/xml"}, collyReq.Headers.Values("Accept"))
}

func TestFetchAgainstServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, "<html><body>ua=%s</body></html>", r.UserAgent())
		case "/blocked":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("Access denied"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "funding-bot/test", Timeout: 2 * time.Second})

	page, err := f.Fetch(context.Background(), funding.FetchRequest{URL: srv.URL + "/ok"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.Status)
	require.Contains(t, string(page.Body), "ua=funding-bot/test")

	page, err = f.Fetch(context.Background(), funding.FetchRequest{URL: srv.URL + "/blocked"})
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, page.Status)

	// Same URL twice must not trip colly's visited check.
	_, err = f.Fetch(context.Background(), funding.FetchRequest{URL: srv.URL + "/ok"})
	require.NoError(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Fetch(ctx, funding.FetchRequest{URL: srv.URL})
	require.ErrorIs(t, err, context.Canceled)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
