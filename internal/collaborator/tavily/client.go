// Package tavily implements funding.Searcher against the Tavily search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// DefaultBaseURL is the hosted Tavily endpoint.
const DefaultBaseURL = "https://api.tavily.com"

// Config configures the search client.
type Config struct {
	BaseURL     string
	APIKey      string
	SearchDepth string
	Timeout     time.Duration
}

// Client is a minimal Tavily client.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

type searchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// New returns a Client. The API key is required.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("search.api_key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Search runs query and returns at most maxResults hits.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]funding.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	body, err := json.Marshal(searchRequest{
		Query:       query,
		SearchDepth: c.cfg.SearchDepth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &funding.TransientError{Op: "search", Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close search response", zap.Error(cerr))
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, &funding.TransientError{Op: "search", Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	results := make([]funding.SearchResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, funding.SearchResult{URL: r.URL, Title: r.Title, Snippet: r.Content})
		if len(results) == maxResults {
			break
		}
	}
	c.logger.Debug("search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}
