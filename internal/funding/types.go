package funding

import (
	"net/http"
	"time"
)

// StrategyKind identifies which discovery strategy produced a candidate.
// Values are ordered by priority.
type StrategyKind int

// Discovery strategies in the order the chain tries them.
const (
	StrategySitemap StrategyKind = iota
	StrategyCategoryPages
	StrategyGeneric
	StrategyDeepHomepage
)

func (k StrategyKind) String() string {
	switch k {
	case StrategySitemap:
		return "sitemap"
	case StrategyCategoryPages:
		return "category_pages"
	case StrategyGeneric:
		return "generic"
	case StrategyDeepHomepage:
		return "deep_homepage"
	default:
		return "unknown"
	}
}

// CandidateLink is an unvalidated URL found on a page or in a sitemap.
type CandidateLink struct {
	URL          string       `json:"url"`
	AnchorText   string       `json:"anchor_text,omitempty"`
	Context      string       `json:"context,omitempty"`
	Domain       string       `json:"domain"`
	DiscoveredBy StrategyKind `json:"discovered_by"`
}

// FetchRequest describes a single page fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// RawPage is a fetched page. It belongs to the worker that fetched it and is
// dropped once extraction finishes.
type RawPage struct {
	URL       string
	Status    int
	Headers   http.Header
	Body      []byte
	FetchedAt time.Time
}

// FundingEventDraft is what the extraction collaborator returns for one event.
// Any of the raw fields may be empty.
type FundingEventDraft struct {
	CompanyName string `json:"company_name"`
	RawAmount   string `json:"amount"`
	RawDate     string `json:"date"`
	RawRound    string `json:"round"`
	ArticleURL  string `json:"article_url"`
	SourceName  string `json:"source_name"`

	// PublishedDate is read from the article markup and backs RawDate when the
	// extractor found none.
	PublishedDate string `json:"-"`
	// Anchors are the article's outbound links, kept for entity resolution.
	Anchors []CandidateLink `json:"-"`
}

// ExtractionResult is either a single draft or several drafts from one article.
type ExtractionResult struct {
	single   *FundingEventDraft
	multiple []FundingEventDraft
}

// Single wraps one draft.
func Single(d FundingEventDraft) ExtractionResult {
	return ExtractionResult{single: &d}
}

// Multiple wraps several drafts.
func Multiple(ds []FundingEventDraft) ExtractionResult {
	return ExtractionResult{multiple: append([]FundingEventDraft(nil), ds...)}
}

// IsMultiple reports whether the extractor returned a list.
func (r ExtractionResult) IsMultiple() bool {
	return r.single == nil
}

// Drafts returns the drafts as a slice regardless of shape.
func (r ExtractionResult) Drafts() []FundingEventDraft {
	if r.single != nil {
		return []FundingEventDraft{*r.single}
	}
	return append([]FundingEventDraft(nil), r.multiple...)
}

// FundingEventRecord is the persisted, normalized form of a funding event.
type FundingEventRecord struct {
	CompanyName    string    `json:"company_name"`
	NormalizedName string    `json:"normalized_name"`
	AmountRaised   int64     `json:"amount_raised"`
	Currency       string    `json:"currency"`
	FundingRound   string    `json:"funding_round"`
	RaisedDate     string    `json:"raised_date"`
	SourceName     string    `json:"source_name"`
	WebsiteURL     string    `json:"website_url"`
	LinkedinURL    string    `json:"linkedin_url"`
	ArticleURL     string    `json:"article_url"`
	CrawlDate      time.Time `json:"crawl_date"`
}

// Key returns the in-run dedup key for the record.
func (r FundingEventRecord) Key() DedupKey {
	return DedupKey{
		NormalizedName: r.NormalizedName,
		NormalizedDate: r.RaisedDate,
		ArticleURL:     r.ArticleURL,
	}
}

// DedupKey identifies a funding event within one crawl run.
type DedupKey struct {
	NormalizedName string
	NormalizedDate string
	ArticleURL     string
}

// EventKey is the (name, date) half of the key used for near-duplicate suppression.
func (k DedupKey) EventKey() string {
	return k.NormalizedName + "|" + k.NormalizedDate
}

// EntityLinkCandidate is a scored URL considered by the resolver.
type EntityLinkCandidate struct {
	URL        string
	MatchScore int
	MatchType  string
	Verified   bool
}

// ConfidenceLevel buckets a resolution score.
type ConfidenceLevel string

// Confidence levels reported by the resolver.
const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Resolution is the resolver's answer for one link kind. URL is empty when
// nothing was accepted.
type Resolution struct {
	URL        string
	Confidence int
	Level      ConfidenceLevel
	MatchType  string
}

// Resolved reports whether a link was accepted.
func (r Resolution) Resolved() bool {
	return r.URL != ""
}

// SearchResult is a single hit from the search collaborator.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"content"`
}

// LinkGuess holds collaborator guesses for a company's links.
type LinkGuess struct {
	WebsiteGuesses []string `json:"website_guesses"`
	ProfileGuess   string   `json:"profile_guess"`
}

// FailureKind classifies a per-item failure.
type FailureKind string

// Failure kinds recorded alongside successful drafts.
const (
	FailureTransient      FailureKind = "transient"
	FailureContentQuality FailureKind = "content_quality"
	FailureFatalItem      FailureKind = "fatal_item"
)

// Failure records why a candidate produced no draft.
type Failure struct {
	URL    string      `json:"url"`
	Kind   FailureKind `json:"kind"`
	Stage  string      `json:"stage"`
	Reason string      `json:"reason"`
	Status int         `json:"status,omitempty"`
}
