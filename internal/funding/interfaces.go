package funding

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a page. Non-2xx responses are returned as pages, not errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (RawPage, error)
}

// Classifier decides whether article text describes a funding event.
type Classifier interface {
	ClassifyFunding(ctx context.Context, text string) (bool, error)
}

// Extractor pulls funding fields out of article text.
type Extractor interface {
	ExtractFunding(ctx context.Context, text string) (ExtractionResult, error)
}

// Guesser proposes likely links for a company when search comes up short.
type Guesser interface {
	GuessEntityLinks(ctx context.Context, text string, companyName string) (LinkGuess, error)
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// RecordStore persists funding records keyed by article URL.
type RecordStore interface {
	// UpsertMany inserts records whose ArticleURL is new and returns the rows
	// actually inserted. Existing URLs are skipped without error.
	UpsertMany(ctx context.Context, records []FundingEventRecord) ([]FundingEventRecord, error)
	QueryAll(ctx context.Context) ([]FundingEventRecord, error)
}

// Publisher pushes events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
