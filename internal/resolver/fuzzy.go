package resolver

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Ratio is a 0..100 similarity derived from the Levenshtein distance.
func Ratio(a, b string) int {
	if a == "" && b == "" {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * float64(longest-d) / float64(longest)))
}

// PartialRatio compares the shorter string against every window of the same
// length in the longer one and returns the best Ratio. Empty input scores 0.
func PartialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	short := string(ra)
	best := 0
	for i := 0; i+len(ra) <= len(rb); i++ {
		score := Ratio(short, string(rb[i:i+len(ra)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// squash lowercases s and drops everything that is not a letter or digit.
func squash(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
