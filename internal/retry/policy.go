// Package retry holds the single backoff policy applied at fetch and
// collaborator boundaries.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"time"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// Config tunes the exponential policy. Zero values fall back to defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Policy implements exponential backoff with jitter.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewPolicy builds a Policy, filling unset fields with 3 attempts, 500ms base
// and 8s cap.
func NewPolicy(cfg Config) *Policy {
	p := &Policy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 3
	}
	if p.baseDelay <= 0 {
		p.baseDelay = 500 * time.Millisecond
	}
	if p.maxDelay <= 0 {
		p.maxDelay = 8 * time.Second
	}
	return p
}

// MaxAttempts returns the total number of attempts, including the first.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether the error is retryable after attempt attempts.
// Cancellation of the caller's context is handled by Do, so a deadline found
// in the error chain here is a per-request timeout.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if funding.IsTransient(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Backoff returns the wait duration before the next attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy
// gives up. The last error is returned.
func Do(ctx context.Context, p *Policy, op func(context.Context) error) error {
	if p == nil {
		p = NewPolicy(Config{})
	}
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if !p.ShouldRetry(err, attempt) {
			if attempt > 1 {
				return fmt.Errorf("after %d attempts: %w", attempt, err)
			}
			return err
		}
		timer := time.NewTimer(p.Backoff(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
