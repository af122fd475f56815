package normalize

import (
	"regexp"
	"strings"
	"time"
)

// ISODateLayout is the canonical date representation.
const ISODateLayout = "2006-01-02"

var (
	isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ordinalPattern = regexp.MustCompile(`(\d{1,2})(st|nd|rd|th)\b`)

	// First successful layout wins. Day-first numeric forms come before
	// month-first ones.
	dateLayouts = []string{
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"2 Jan 2006",
		"January 2 2006",
		"Jan 2 2006",
		"2006/01/02",
		"02/01/2006",
		"01/02/2006",
		"2/1/2006",
		"1/2/2006",
		"02-01-2006",
		"01-02-2006",
		"2006.01.02",
		"02.01.2006",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05-0700",
		time.RFC1123Z,
		time.RFC1123,
		"January 2006",
	}
)

// Date parses s with the default vocabulary.
func Date(s string) string {
	return defaultNormalizer.Date(s)
}

// Date converts a date string to YYYY-MM-DD. Input that is already canonical is
// returned as is; input that matches no known layout is returned unchanged.
func (n *Normalizer) Date(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	if IsISODate(trimmed) {
		return trimmed
	}
	cleaned := strings.Join(strings.Fields(ordinalPattern.ReplaceAllString(trimmed, "$1")), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format(ISODateLayout)
		}
	}
	return s
}

// IsISODate reports whether s is a valid YYYY-MM-DD date. Callers use it to
// tell a parsed date from a passed-through original.
func IsISODate(s string) bool {
	if !isoDatePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(ISODateLayout, s)
	return err == nil
}
