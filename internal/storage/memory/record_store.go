package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// RecordStore is an in-memory funding.RecordStore keyed by article URL.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]funding.FundingEventRecord
}

// NewRecordStore constructs an empty RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{records: make(map[string]funding.FundingEventRecord)}
}

// UpsertMany stores records whose ArticleURL is new and returns them.
// Records for known URLs are ignored.
func (s *RecordStore) UpsertMany(_ context.Context, records []funding.FundingEventRecord) ([]funding.FundingEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted []funding.FundingEventRecord
	for _, rec := range records {
		if _, exists := s.records[rec.ArticleURL]; exists {
			continue
		}
		s.records[rec.ArticleURL] = rec
		inserted = append(inserted, rec)
	}
	return inserted, nil
}

// QueryAll returns every record ordered by crawl date, then URL.
func (s *RecordStore) QueryAll(_ context.Context) ([]funding.FundingEventRecord, error) {
	s.mu.RLock()
	out := make([]funding.FundingEventRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CrawlDate.Equal(out[j].CrawlDate) {
			return out[i].CrawlDate.Before(out[j].CrawlDate)
		}
		return out[i].ArticleURL < out[j].ArticleURL
	})
	return out, nil
}

// Ping always succeeds.
func (s *RecordStore) Ping(context.Context) error {
	return nil
}
