package tavily

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

func TestSearch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

		var req searchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Acme Robotics official website", req.Query)
		assert.Equal(t, "basic", req.SearchDepth)
		assert.Equal(t, 2, req.MaxResults)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"url": "https://acmerobotics.com", "title": "Acme Robotics", "content": "Robots for warehouses", "score": 0.9},
			{"url": "", "title": "broken"},
			{"url": "https://www.linkedin.com/company/acme-robotics", "title": "Acme Robotics | LinkedIn", "content": "Follow"},
			{"url": "https://extra.example", "title": "extra"}
		]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", APIKey: "tvly-test"}, nil)
	require.NoError(t, err)

	results, err := c.Search(t.Context(), "Acme Robotics official website", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, funding.SearchResult{
		URL:     "https://acmerobotics.com",
		Title:   "Acme Robotics",
		Snippet: "Robots for warehouses",
	}, results[0])
	assert.Equal(t, "https://www.linkedin.com/company/acme-robotics", results[1].URL)
}

func TestSearchStatuses(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "throttled", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantTransient: true},
		{name: "unauthorized", status: http.StatusUnauthorized, wantTransient: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			t.Cleanup(srv.Close)

			c, err := New(Config{BaseURL: srv.URL, APIKey: "k"}, nil)
			require.NoError(t, err)
			_, err = c.Search(t.Context(), "q", 5)
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, funding.IsTransient(err))
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := New(Config{}, nil)
	require.Error(t, err)
}
