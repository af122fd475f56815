// Package uuid generates crawl run IDs and stable event IDs.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// eventNamespace scopes event IDs derived from article URLs.
var eventNamespace = uuid.MustParse("6f1c0b9e-3d0a-4b8e-9a57-2f64a1f0c4d2")

// Generator creates UUIDv7 run IDs.
type Generator struct{}

// New returns a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a time-ordered UUIDv7 string.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}

// EventID derives a stable ID for the event reported at articleURL, so
// republishing the same record yields the same ID.
func EventID(articleURL string) string {
	return uuid.NewSHA1(eventNamespace, []byte(articleURL)).String()
}
