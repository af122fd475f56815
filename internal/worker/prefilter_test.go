package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefilterAllow(t *testing.T) {
	t.Parallel()

	p := NewPrefilter(DefaultVocabulary())
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"no funding vocabulary", "The company unveiled a new phone with a bigger screen.", false},
		{"specific term", "Acme raises $5M to build warehouse robots.", true},
		{"related terms only", "The fund brings new capital and financing options to founders.", true},
		{"one related term", "The city approved new financing for the bridge.", false},
		{"award without specific term", "Acme won an award and a cash prize for its funding platform.", false},
		{"acquisition with strong context", "After the acquisition talks ended, Acme raised a Series A round led by Example Ventures.", true},
		{"partnership with weak context", "Acme raised eyebrows with a new partnership announcement.", false},
		{"case insensitive", "ACME RAISES SEED ROUND", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, reason := p.Allow(tc.text)
			assert.Equal(t, tc.want, got, reason)
		})
	}
}
