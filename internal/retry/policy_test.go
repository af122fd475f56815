package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/funding-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/funding-crawler/internal/funding"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func fastPolicy() *Policy {
	return NewPolicy(Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
}

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := fastPolicy()
	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(&funding.TransientError{Op: "x", Status: 429}, 1))
	assert.False(t, p.ShouldRetry(&funding.TransientError{Op: "x", Status: 429}, 3))
	assert.True(t, p.ShouldRetry(timeoutErr{}, 1))
	assert.False(t, p.ShouldRetry(context.Canceled, 1))
	assert.True(t, p.ShouldRetry(fmt.Errorf("visit: %w", context.DeadlineExceeded), 1))
	assert.True(t, p.ShouldRetry(&url.Error{Op: "Get", URL: "https://example.com", Err: context.DeadlineExceeded}, 1))
	assert.True(t, p.ShouldRetry(&funding.TransientError{Op: "classify", Err: context.DeadlineExceeded}, 1))
	assert.False(t, p.ShouldRetry(errors.New("malformed"), 1))
}

func TestBackoffBounded(t *testing.T) {
	t.Parallel()

	p := NewPolicy(Config{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second})
	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestDoRetriesTransient(t *testing.T) {
	t.Parallel()

	var calls int
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &funding.TransientError{Op: "classify", Err: errors.New("rate limited")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUp(t *testing.T) {
	t.Parallel()

	var calls int
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return &funding.TransientError{Op: "search", Status: http.StatusServiceUnavailable}
	})
	require.Error(t, err)
	assert.True(t, funding.IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestDoStopsWhenCallerContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, fastPolicy(), func(context.Context) error {
		calls++
		cancel()
		return &funding.TransientError{Op: "fetch", Err: context.Canceled}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFetcherRetriesHTTPTimeout(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(collyfetcher.New(collyfetcher.Config{Timeout: 50 * time.Millisecond}), fastPolicy(), nil)

	_, err := f.Fetch(context.Background(), funding.FetchRequest{URL: srv.URL + "/"})
	require.Error(t, err)
	assert.EqualValues(t, 3, hits.Load())
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	var calls int
	err := Do(context.Background(), fastPolicy(), func(context.Context) error {
		calls++
		return errors.New("bad url")
	})
	require.EqualError(t, err, "bad url")
	assert.Equal(t, 1, calls)
}

type scriptedFetcher struct {
	statuses []int
	calls    atomic.Int32
}

func (f *scriptedFetcher) Fetch(_ context.Context, req funding.FetchRequest) (funding.RawPage, error) {
	i := int(f.calls.Add(1)) - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return funding.RawPage{URL: req.URL, Status: f.statuses[i]}, nil
}

func TestFetcherRetriesThrottledStatus(t *testing.T) {
	t.Parallel()

	next := &scriptedFetcher{statuses: []int{http.StatusTooManyRequests, http.StatusOK}}
	f := NewFetcher(next, fastPolicy(), nil)

	page, err := f.Fetch(context.Background(), funding.FetchRequest{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.Status)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestFetcherReturnsLastThrottledPage(t *testing.T) {
	t.Parallel()

	next := &scriptedFetcher{statuses: []int{http.StatusServiceUnavailable}}
	f := NewFetcher(next, fastPolicy(), nil)

	page, err := f.Fetch(context.Background(), funding.FetchRequest{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, page.Status)
	assert.EqualValues(t, 3, next.calls.Load())
}

func TestFetcherDoesNotRetryForbidden(t *testing.T) {
	t.Parallel()

	next := &scriptedFetcher{statuses: []int{http.StatusForbidden}}
	f := NewFetcher(next, fastPolicy(), nil)

	page, err := f.Fetch(context.Background(), funding.FetchRequest{URL: "https://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, page.Status)
	assert.EqualValues(t, 1, next.calls.Load())
}
