package worker

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Vocabulary holds the term lists used by the keyword pre-filter. All matching
// is case-insensitive substring matching; each term counts once per page.
type Vocabulary struct {
	// FundingTerms must appear at least once for a page to be considered.
	FundingTerms []string
	// FalsePositiveTerms mark articles that mention money without being about a
	// raise (awards, deals, listings).
	FalsePositiveTerms []string
	// SpecificTerms are high-confidence raise phrases.
	SpecificTerms []string
	// ContextIndicators back up a specific term when a false-positive term is present.
	ContextIndicators []string
	// RelatedTerms are general funding words; enough of them pass without a specific term.
	RelatedTerms []string

	MinContextIndicators int
	MinRelatedTerms      int
}

// DefaultVocabulary returns the English vocabulary for startup funding news.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		FundingTerms: []string{
			"raises", "raised", "funding round", "investment round", "series a", "series b", "series c",
			"seed round", "angel round", "venture round", "fundraising", "capital raise",
			"venture capital", "angel investment", "angel investor", "angel funding",
			"backed by", "invested in", "led by", "co-led by",
			"closes funding", "announces funding", "secures funding", "receives investment",
			"funding", "investment", "capital", "financing",
			"seed funding", "venture funding", "equity funding", "debt funding", "convertible note",
			"pre-seed", "growth funding", "strategic investment",
			"million in funding", "billion in funding", "million raised", "billion raised",
			"investors", "venture capitalists", "vc firms", "private equity",
			"funded", "invested", "financed", "round of funding", "bridge round", "seed capital",
		},
		FalsePositiveTerms: []string{
			"competition", "challenge", "contest", "award", "grant", "prize",
			"million users", "billion users", "million downloads", "billion downloads",
			"million revenue", "billion revenue", "million valuation", "billion valuation",
			"partnership", "deal", "agreement", "contract", "service", "product launch",
			"acquisition", "merger", "ipo", "initial public offering", "public listing",
			"layoffs",
		},
		SpecificTerms: []string{
			"raises", "raised", "funding round", "investment round", "series a", "series b", "series c",
			"seed round", "angel round", "venture round", "fundraising", "capital raise",
			"venture capital", "angel investment", "backed by", "invested in", "led by",
		},
		ContextIndicators: []string{
			"raises", "raised", "funding", "investment", "venture capital", "angel investment",
			"series a", "series b", "series c", "seed round", "angel round", "led by",
		},
		RelatedTerms: []string{
			"funding", "investment", "capital", "financing", "venture capital", "angel investment",
			"investors", "venture capitalists", "vc firms", "angel investors",
		},
		MinContextIndicators: 2,
		MinRelatedTerms:      2,
	}
}

// term sets a vocabulary entry can belong to.
const (
	setFunding uint8 = 1 << iota
	setFalsePositive
	setSpecific
	setContext
	setRelated
)

// Prefilter is the cheap keyword check run before the classifier. All term
// lists are compiled into one Aho-Corasick automaton so a page is scanned once.
type Prefilter struct {
	vocab Vocabulary

	mu      sync.Mutex
	matcher *ahocorasick.Matcher
	sets    []uint8
}

// NewPrefilter lower-cases the vocabulary and builds the matcher.
func NewPrefilter(v Vocabulary) *Prefilter {
	if v.MinContextIndicators <= 0 {
		v.MinContextIndicators = 2
	}
	if v.MinRelatedTerms <= 0 {
		v.MinRelatedTerms = 2
	}
	var (
		terms []string
		sets  []uint8
		index = make(map[string]int)
	)
	add := func(list []string, set uint8) {
		for _, t := range lowerAll(list) {
			i, ok := index[t]
			if !ok {
				i = len(terms)
				index[t] = i
				terms = append(terms, t)
				sets = append(sets, 0)
			}
			sets[i] |= set
		}
	}
	add(v.FundingTerms, setFunding)
	add(v.FalsePositiveTerms, setFalsePositive)
	add(v.SpecificTerms, setSpecific)
	add(v.ContextIndicators, setContext)
	add(v.RelatedTerms, setRelated)

	p := &Prefilter{vocab: v, sets: sets}
	if len(terms) > 0 {
		p.matcher = ahocorasick.NewStringMatcher(terms)
	}
	return p
}

// Allow reports whether text is worth a classifier call. The reason names the
// rule that decided.
func (p *Prefilter) Allow(text string) (bool, string) {
	counts := p.count(strings.ToLower(text))
	if counts[setFunding] == 0 {
		return false, "no funding terms"
	}
	specific := counts[setSpecific] > 0
	if counts[setFalsePositive] > 0 {
		if !specific {
			return false, "false-positive context without a specific funding term"
		}
		if counts[setContext] < p.vocab.MinContextIndicators {
			return false, "false-positive context with too few funding indicators"
		}
		return true, "specific term with funding context"
	}
	if specific {
		return true, "specific funding term"
	}
	if counts[setRelated] >= p.vocab.MinRelatedTerms {
		return true, "related funding terms"
	}
	return false, "too few related funding terms"
}

// count returns, per term set, how many distinct terms of that set occur in lower.
func (p *Prefilter) count(lower string) map[uint8]int {
	counts := make(map[uint8]int, 5)
	if p.matcher == nil {
		return counts
	}
	// Match reuses internal state and is not safe for concurrent use.
	p.mu.Lock()
	hits := p.matcher.Match([]byte(lower))
	p.mu.Unlock()

	seen := make(map[int]struct{}, len(hits))
	for _, i := range hits {
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		for _, set := range []uint8{setFunding, setFalsePositive, setSpecific, setContext, setRelated} {
			if p.sets[i]&set != 0 {
				counts[set]++
			}
		}
	}
	return counts
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
