package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoAmount is returned when the text has no numeric literal.
var ErrNoAmount = errors.New("no numeric amount found")

// ErrAmountOutOfRange is returned when the value does not fit in an int64.
var ErrAmountOutOfRange = errors.New("amount out of range")

// DefaultCurrency is assumed when the text names none.
const DefaultCurrency = "USD"

var (
	amountPattern = regexp.MustCompile(
		`(\d[\d,]*(?:\.\d+)?)\s*(?:(thousand|million|billion|trillion|mn|bn|k|m|b|t)\b)?`)

	// Checked in order; multi-character symbols before the bare dollar sign.
	currencySymbols = []struct {
		symbol string
		code   string
	}{
		{"us$", "USD"},
		{"ca$", "CAD"},
		{"c$", "CAD"},
		{"au$", "AUD"},
		{"a$", "AUD"},
		{"s$", "SGD"},
		{"$", "USD"},
		{"€", "EUR"},
		{"£", "GBP"},
		{"¥", "JPY"},
		{"₹", "INR"},
	}

	currencyWords = []struct {
		pattern *regexp.Regexp
		code    string
	}{
		{regexp.MustCompile(`\b(usd|dollars?)\b`), "USD"},
		{regexp.MustCompile(`\b(eur|euros?)\b`), "EUR"},
		{regexp.MustCompile(`\b(gbp|pounds?|sterling)\b`), "GBP"},
		{regexp.MustCompile(`\b(jpy|yen)\b`), "JPY"},
		{regexp.MustCompile(`\b(inr|rupees?|crore|lakh)\b`), "INR"},
		{regexp.MustCompile(`\bcad\b`), "CAD"},
		{regexp.MustCompile(`\baud\b`), "AUD"},
		{regexp.MustCompile(`\bchf\b`), "CHF"},
		{regexp.MustCompile(`\bsgd\b`), "SGD"},
	}

	magnitudes = map[string]float64{
		"thousand": 1e3,
		"k":        1e3,
		"million":  1e6,
		"mn":       1e6,
		"m":        1e6,
		"billion":  1e9,
		"bn":       1e9,
		"b":        1e9,
		"trillion": 1e12,
		"t":        1e12,
	}
)

// Amount parses s with the default vocabulary.
func Amount(s string) (int64, string, error) {
	return defaultNormalizer.Amount(s)
}

// Amount parses a money expression such as "$1.5M" or "250 thousand euros" into
// an integer value in whole currency units and an ISO currency code.
func (n *Normalizer) Amount(s string) (int64, string, error) {
	text := strings.ToLower(strings.TrimSpace(s))
	if text == "" {
		return 0, "", ErrNoAmount
	}
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", fmt.Errorf("normalize amount %q: %w", s, ErrNoAmount)
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, "", fmt.Errorf("normalize amount %q: %w", s, ErrNoAmount)
	}
	if mult, ok := magnitudes[m[2]]; ok {
		value *= mult
	}
	// float64(math.MaxInt64) rounds up to 2^63, the first value that overflows.
	if math.Round(value) >= math.MaxInt64 {
		return 0, "", fmt.Errorf("normalize amount %q: %w", s, ErrAmountOutOfRange)
	}
	return int64(math.Round(value)), detectCurrency(text), nil
}

func detectCurrency(text string) string {
	for _, c := range currencySymbols {
		if strings.Contains(text, c.symbol) {
			return c.code
		}
	}
	for _, c := range currencyWords {
		if c.pattern.MatchString(text) {
			return c.code
		}
	}
	return DefaultCurrency
}
