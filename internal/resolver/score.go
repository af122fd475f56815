package resolver

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/JakeFAU/funding-crawler/internal/extract"
	"github.com/JakeFAU/funding-crawler/internal/funding"
)

// matchScore scores a squashed candidate string against a normalized company
// name. Candidates much shorter than the name fall back to a full Ratio so that
// a tiny label cannot win a partial match by accident.
func matchScore(name, candidate string) int {
	if name == "" || candidate == "" {
		return 0
	}
	if 2*len([]rune(candidate)) < len([]rune(name)) {
		return Ratio(name, candidate)
	}
	return PartialRatio(name, candidate)
}

// registrableLabel returns the registrable domain label of rawURL, e.g.
// "acmerobotics" for https://www.acmerobotics.co.uk/about.
func registrableLabel(rawURL string) (host, label string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("url %q is not http(s)", rawURL)
	}
	host = strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", "", fmt.Errorf("url %q has no host", rawURL)
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", "", fmt.Errorf("registrable domain of %q: %w", host, err)
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	return host, strings.TrimSuffix(etld1, "."+suffix), nil
}

// profileSlug returns the company slug of a linkedin.com/company/ URL.
func profileSlug(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "company" || parts[1] == "" {
		return "", false
	}
	return strings.ToLower(parts[1]), true
}

// linkKind captures what differs between website and profile resolution.
type linkKind struct {
	name       string
	maxResults int
	queries    func(company string) []string
	guesses    func(g funding.LinkGuess) []string
	// locate returns the canonical URL and its structural score (domain label
	// or profile slug), or ok=false when the URL can never be this kind of link.
	locate func(r *Resolver, norm, rawURL string) (canonical string, score int, ok bool)
}

var websiteKind = linkKind{
	name:       "website",
	maxResults: 5,
	queries: func(company string) []string {
		return []string{
			fmt.Sprintf(`official website for "%s"`, company),
			fmt.Sprintf(`"%s" official site`, company),
			fmt.Sprintf(`"%s" homepage`, company),
			fmt.Sprintf(`"%s" company website`, company),
		}
	},
	guesses: func(g funding.LinkGuess) []string {
		return g.WebsiteGuesses
	},
	locate: func(r *Resolver, norm, rawURL string) (string, int, bool) {
		host, label, err := registrableLabel(rawURL)
		if err != nil || r.blocklist.IsBlocked(host) {
			return "", 0, false
		}
		origin, err := extract.Origin(rawURL)
		if err != nil {
			return "", 0, false
		}
		return strings.ToLower(origin), matchScore(norm, squash(label)), true
	},
}

var profileKind = linkKind{
	name:       "profile",
	maxResults: 3,
	queries: func(company string) []string {
		return []string{
			fmt.Sprintf(`"%s" site:linkedin.com/company`, company),
			fmt.Sprintf(`"%s" LinkedIn company page`, company),
			fmt.Sprintf(`"%s" official LinkedIn`, company),
		}
	},
	guesses: func(g funding.LinkGuess) []string {
		if strings.TrimSpace(g.ProfileGuess) == "" {
			return nil
		}
		return []string{g.ProfileGuess}
	},
	locate: func(r *Resolver, norm, rawURL string) (string, int, bool) {
		slug, ok := profileSlug(rawURL)
		if !ok {
			return "", 0, false
		}
		words := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
		return "https://www.linkedin.com/company/" + slug, matchScore(norm, r.normalizer.CompanyName(words)), true
	},
}

// candidateSet keeps the best score seen per canonical URL.
type candidateSet struct {
	byURL map[string]funding.EntityLinkCandidate
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byURL: make(map[string]funding.EntityLinkCandidate)}
}

func (s *candidateSet) add(c funding.EntityLinkCandidate) {
	if existing, ok := s.byURL[c.URL]; ok && existing.MatchScore >= c.MatchScore {
		return
	}
	s.byURL[c.URL] = c
}

func (s *candidateSet) best() int {
	best := 0
	for _, c := range s.byURL {
		if c.MatchScore > best {
			best = c.MatchScore
		}
	}
	return best
}

// ranked returns candidates by descending score, URL breaking ties.
func (s *candidateSet) ranked() []funding.EntityLinkCandidate {
	out := make([]funding.EntityLinkCandidate, 0, len(s.byURL))
	for _, c := range s.byURL {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// guessURL turns a bare guess such as "acme.ai" into an absolute URL.
func guessURL(guess string) string {
	guess = strings.TrimSpace(guess)
	if guess == "" {
		return ""
	}
	if !strings.Contains(guess, "://") {
		guess = "https://" + guess
	}
	return guess
}

// textEvidence scores a search hit's title and snippet. Text evidence alone
// never reaches the direct-accept threshold.
func textEvidence(norm string, hit funding.SearchResult, snippetChars, ceiling int) int {
	snippet := []rune(hit.Snippet)
	if len(snippet) > snippetChars {
		snippet = snippet[:snippetChars]
	}
	score := matchScore(norm, squash(hit.Title))
	if s := matchScore(norm, squash(string(snippet))); s > score {
		score = s
	}
	if score > ceiling {
		score = ceiling
	}
	return score
}
