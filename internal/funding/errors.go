package funding

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoCandidates is wrapped by DiscoveryError when every strategy came back empty.
	ErrNoCandidates = errors.New("no discovery strategy produced candidates")
	// ErrStoreUnavailable marks a persistence failure that aborts the run.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// DiscoveryError reports a seed for which no strategy produced any link.
type DiscoveryError struct {
	Seed     string
	Attempts []string
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %s: %s (tried %s)", e.Seed, ErrNoCandidates, strings.Join(e.Attempts, ", "))
}

func (e *DiscoveryError) Unwrap() error {
	return ErrNoCandidates
}

// TransientError is a failure worth retrying: timeouts, 429/503, provider throttling.
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: transient status %d", e.Op, e.Status)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsTransientStatus reports whether an HTTP status should be retried.
func IsTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}
