package retry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// Fetcher retries a wrapped fetcher on transient errors and on 429/503 pages.
type Fetcher struct {
	next   funding.Fetcher
	policy *Policy
	logger *zap.Logger
}

// NewFetcher decorates next with policy.
func NewFetcher(next funding.Fetcher, policy *Policy, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewPolicy(Config{})
	}
	return &Fetcher{next: next, policy: policy, logger: logger}
}

// Fetch implements funding.Fetcher. When retries run out on a throttled
// status, the last page is returned without error so the caller can classify it.
func (f *Fetcher) Fetch(ctx context.Context, request funding.FetchRequest) (funding.RawPage, error) {
	var (
		last     funding.RawPage
		attempts int
	)
	err := Do(ctx, f.policy, func(ctx context.Context) error {
		attempts++
		page, err := f.next.Fetch(ctx, request)
		if err != nil {
			f.logger.Debug("fetch attempt failed",
				zap.String("url", request.URL),
				zap.Int("attempt", attempts),
				zap.Error(err),
			)
			return err
		}
		last = page
		if funding.IsTransientStatus(page.Status) {
			f.logger.Debug("fetch throttled",
				zap.String("url", request.URL),
				zap.Int("attempt", attempts),
				zap.Int("status", page.Status),
			)
			return &funding.TransientError{Op: "fetch", Status: page.Status}
		}
		return nil
	})
	if err == nil {
		return last, nil
	}
	var te *funding.TransientError
	if errors.As(err, &te) && te.Status != 0 && last.Status == te.Status {
		return last, nil
	}
	return funding.RawPage{}, err
}
