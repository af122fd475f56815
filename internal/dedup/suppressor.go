// Package dedup drops near-duplicate funding events within a run and hands
// the survivors to the record store.
package dedup

import (
	"strings"

	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/normalize"
)

// Suppressor keeps one record per article URL and per (name, date) event key.
// When two sources describe the same event, the source listed earlier in the
// priority list wins; on a tie the first record seen wins.
type Suppressor struct {
	rank       map[string]int
	records    []funding.FundingEventRecord
	byURL      map[string]int
	byEvent    map[string]int
	suppressed int
}

// NewSuppressor builds a Suppressor. Source names match case-insensitively.
func NewSuppressor(sourcePriority []string) *Suppressor {
	rank := make(map[string]int, len(sourcePriority))
	for i, s := range sourcePriority {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, dup := rank[key]; !dup && key != "" {
			rank[key] = i
		}
	}
	return &Suppressor{
		rank:    rank,
		byURL:   make(map[string]int),
		byEvent: make(map[string]int),
	}
}

func (s *Suppressor) rankOf(source string) int {
	if r, ok := s.rank[strings.ToLower(strings.TrimSpace(source))]; ok {
		return r
	}
	return len(s.rank)
}

// eventKey is empty when the record lacks a name or a parsed date; such
// records are only deduplicated by URL.
func eventKey(rec funding.FundingEventRecord) string {
	k := rec.Key()
	if k.NormalizedName == "" || !normalize.IsISODate(k.NormalizedDate) {
		return ""
	}
	return k.EventKey()
}

// Add offers rec and reports whether it is currently kept.
func (s *Suppressor) Add(rec funding.FundingEventRecord) bool {
	if _, seen := s.byURL[rec.ArticleURL]; seen {
		s.suppressed++
		return false
	}
	key := eventKey(rec)
	if key == "" {
		s.keep(rec, key)
		return true
	}
	idx, collides := s.byEvent[key]
	if !collides {
		s.keep(rec, key)
		return true
	}
	current := s.records[idx]
	s.suppressed++
	if s.rankOf(rec.SourceName) >= s.rankOf(current.SourceName) {
		return false
	}
	delete(s.byURL, current.ArticleURL)
	s.records[idx] = rec
	s.byURL[rec.ArticleURL] = idx
	return true
}

func (s *Suppressor) keep(rec funding.FundingEventRecord, key string) {
	idx := len(s.records)
	s.records = append(s.records, rec)
	s.byURL[rec.ArticleURL] = idx
	if key != "" {
		s.byEvent[key] = idx
	}
}

// Records returns the surviving records in first-seen order.
func (s *Suppressor) Records() []funding.FundingEventRecord {
	return append([]funding.FundingEventRecord(nil), s.records...)
}

// Suppressed is the number of records dropped so far.
func (s *Suppressor) Suppressed() int {
	return s.suppressed
}
