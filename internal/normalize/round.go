package normalize

import (
	"strings"
	"unicode"
)

func defaultRoundAliases() map[string]string {
	aliases := map[string]string{
		"pre seed":                "Pre-Seed",
		"preseed":                 "Pre-Seed",
		"seed":                    "Seed",
		"seed plus":               "Seed",
		"angel":                   "Angel",
		"venture":                 "Venture",
		"growth":                  "Growth",
		"growth equity":           "Growth",
		"bridge":                  "Bridge",
		"extension":               "Extension",
		"follow on":               "Follow-on",
		"followon":                "Follow-on",
		"ipo":                     "IPO",
		"initial public offering": "IPO",
		"mezzanine":               "Mezzanine",
		"strategic":               "Strategic",
		"strategic investment":    "Strategic",
		"equity":                  "Equity",
		"debt":                    "Debt",
		"debt financing":          "Debt",
		"convertible note":        "Convertible Note",
		"grant":                   "Grant",
	}
	for _, letter := range []string{"a", "b", "c", "d", "e", "f"} {
		label := "Series " + strings.ToUpper(letter)
		aliases["series "+letter] = label
		aliases["series"+letter] = label
	}
	return aliases
}

// FundingRound maps s with the default vocabulary.
func FundingRound(s string) string {
	return defaultNormalizer.FundingRound(s)
}

// FundingRound maps a round label to its canonical form, case-insensitively.
// Unknown labels come back title-cased.
func (n *Normalizer) FundingRound(s string) string {
	key := roundKey(s)
	if key == "" {
		return ""
	}
	if label, ok := n.rounds[key]; ok {
		return label
	}
	for _, suffix := range []string{" round", " funding", " financing"} {
		if trimmed := strings.TrimSuffix(key, suffix); trimmed != key {
			if label, ok := n.rounds[trimmed]; ok {
				return label
			}
		}
	}
	return titleCase(strings.TrimSpace(s))
}

func roundKey(s string) string {
	replaced := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(replaced), " ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
