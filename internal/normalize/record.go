package normalize

import (
	"strings"
	"time"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// Record turns a draft into a persisted record. Links are left empty for the
// resolver. An unparseable amount becomes 0 with no currency; a missing or
// unparsed date falls back to the page's published date.
func (n *Normalizer) Record(d funding.FundingEventDraft, crawled time.Time) funding.FundingEventRecord {
	rec := funding.FundingEventRecord{
		CompanyName:    strings.TrimSpace(d.CompanyName),
		NormalizedName: n.CompanyName(d.CompanyName),
		SourceName:     d.SourceName,
		ArticleURL:     d.ArticleURL,
		CrawlDate:      crawled.UTC(),
	}
	if amount, currency, err := n.Amount(d.RawAmount); err == nil {
		rec.AmountRaised, rec.Currency = amount, currency
	}
	if raw := strings.TrimSpace(d.RawRound); raw != "" {
		rec.FundingRound = n.FundingRound(raw)
	}
	rec.RaisedDate = n.raisedDate(d.RawDate, d.PublishedDate)
	return rec
}

func (n *Normalizer) raisedDate(raw, published string) string {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if d := n.Date(raw); IsISODate(d) {
			return d
		}
	}
	if published = strings.TrimSpace(published); published != "" {
		if d := n.Date(published); IsISODate(d) {
			return d
		}
	}
	return raw
}

// Record normalizes a draft with the default vocabulary.
func Record(d funding.FundingEventDraft, crawled time.Time) funding.FundingEventRecord {
	return defaultNormalizer.Record(d, crawled)
}
