// Package normalize canonicalizes company names, amounts, funding rounds and
// dates. Everything here is pure and deterministic.
package normalize

import (
	"strings"
	"unicode"
)

// Vocabulary holds the word lists the normalizer depends on. It is copied at
// construction and never mutated afterwards.
type Vocabulary struct {
	CompanySuffixes []string
	RoundAliases    map[string]string
}

// DefaultVocabulary returns the built-in word lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		CompanySuffixes: []string{
			"inc", "ltd", "corp", "co", "corporation", "limited", "llc", "plc",
			"group", "holdings", "holding", "company", "companies", "sas", "sa",
			"pte", "ventures", "solutions", "partners", "capital", "technologies",
			"tech", "systems", "labs", "gmbh", "ag", "bv",
		},
		RoundAliases: defaultRoundAliases(),
	}
}

// Normalizer applies a fixed Vocabulary.
type Normalizer struct {
	suffixes map[string]struct{}
	rounds   map[string]string
}

// New builds a Normalizer from vocab.
func New(vocab Vocabulary) *Normalizer {
	suffixes := make(map[string]struct{}, len(vocab.CompanySuffixes))
	for _, s := range vocab.CompanySuffixes {
		suffixes[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	rounds := make(map[string]string, len(vocab.RoundAliases))
	for k, v := range vocab.RoundAliases {
		rounds[roundKey(k)] = v
	}
	return &Normalizer{suffixes: suffixes, rounds: rounds}
}

var defaultNormalizer = New(DefaultVocabulary())

// Default returns the Normalizer backed by DefaultVocabulary.
func Default() *Normalizer {
	return defaultNormalizer
}

// CompanyName normalizes s with the default vocabulary.
func CompanyName(s string) string {
	return defaultNormalizer.CompanyName(s)
}

// CompanyName lowercases s, drops corporate suffixes as whole words and removes
// every non-alphanumeric character. The result is a fixed point: normalizing it
// again returns it unchanged.
func (n *Normalizer) CompanyName(s string) string {
	cur := s
	for i := 0; i < 8; i++ {
		next := n.stripSuffixes(cur)
		if next == cur {
			return cur
		}
		if next == "" {
			// The name is nothing but suffix words; keep them rather than return nothing.
			return alnumOnly(cur)
		}
		cur = next
	}
	return cur
}

func (n *Normalizer) stripSuffixes(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, w := range words {
		if _, ok := n.suffixes[w]; ok {
			continue
		}
		b.WriteString(w)
	}
	return b.String()
}

func alnumOnly(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
