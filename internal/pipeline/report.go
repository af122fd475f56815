package pipeline

import (
	"time"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// SourceReport summarizes one source within a run.
type SourceReport struct {
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Candidates     int               `json:"candidates"`
	Drafts         int               `json:"drafts"`
	Records        int               `json:"records"`
	Skipped        int               `json:"skipped"`
	Failures       []funding.Failure `json:"failures"`
	DiscoveryError string            `json:"discovery_error,omitempty"`
}

// Report is the JSON summary written at the end of every run.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DryRun     bool           `json:"dry_run"`
	Sources    []SourceReport `json:"sources"`
	// Offered counts records handed to dedup, Inserted those that were new.
	Offered   int                          `json:"offered"`
	Inserted  int                          `json:"inserted"`
	Published int                          `json:"published"`
	Records   []funding.FundingEventRecord `json:"inserted_records"`
	// Location is where the report was written, if anywhere.
	Location string `json:"-"`
}

// FailureCount totals per-item failures across sources.
func (r Report) FailureCount() int {
	n := 0
	for _, s := range r.Sources {
		n += len(s.Failures)
	}
	return n
}

// Event is the payload published for each inserted record.
type Event struct {
	EventID string                     `json:"event_id"`
	RunID   string                     `json:"run_id"`
	Record  funding.FundingEventRecord `json:"record"`
}
