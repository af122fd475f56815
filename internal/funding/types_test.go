package funding

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionResultDrafts(t *testing.T) {
	t.Parallel()

	single := Single(FundingEventDraft{CompanyName: "Acme"})
	require.False(t, single.IsMultiple())
	require.Len(t, single.Drafts(), 1)

	multi := Multiple([]FundingEventDraft{{CompanyName: "A"}, {CompanyName: "B"}})
	require.True(t, multi.IsMultiple())
	drafts := multi.Drafts()
	require.Len(t, drafts, 2)
	drafts[0].CompanyName = "mutated"
	assert.Equal(t, "A", multi.Drafts()[0].CompanyName)

	assert.Empty(t, Multiple(nil).Drafts())
}

func TestDiscoveryErrorWrapsSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("run: %w", &DiscoveryError{Seed: "https://example.com", Attempts: []string{"sitemap"}})
	require.ErrorIs(t, err, ErrNoCandidates)
	var de *DiscoveryError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Error(), "sitemap")
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("fetch: %w", &TransientError{Op: "fetch", Status: http.StatusTooManyRequests})
	assert.True(t, IsTransient(wrapped))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.True(t, IsTransientStatus(http.StatusServiceUnavailable))
	assert.False(t, IsTransientStatus(http.StatusForbidden))
}

func TestStrategyKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sitemap", StrategySitemap.String())
	assert.Equal(t, "deep_homepage", StrategyDeepHomepage.String())
	assert.Equal(t, "unknown", StrategyKind(42).String())
}
