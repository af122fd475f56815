package resolver

import "testing"

func TestDomainBlocklist(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		bl := newDomainBlocklist([]string{"news.ycombinator.com"})
		if bl == nil {
			t.Fatalf("expected blocklist to be created")
		}
		if !bl.IsBlocked("news.ycombinator.com") {
			t.Fatalf("expected news.ycombinator.com to be blocked")
		}
		if bl.IsBlocked("ycombinator.com") {
			t.Fatalf("did not expect parent domain to match exact entry")
		}
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		bl := newDomainBlocklist(DefaultWebsiteBlocklist)
		cases := []struct {
			host    string
			blocked bool
		}{
			{"linkedin.com", true},
			{"www.linkedin.com", true},
			{"en.wikipedia.org", true},
			{"techcrunch.com.", true},
			{"acmerobotics.com", false},
			{"box.com", false},
		}
		for _, tc := range cases {
			if got := bl.IsBlocked(tc.host); got != tc.blocked {
				t.Fatalf("host %q blocked=%v, want %v", tc.host, got, tc.blocked)
			}
		}
	})

	t.Run("nil blocklist", func(t *testing.T) {
		var bl *domainBlocklist
		if bl.IsBlocked("anything") {
			t.Fatalf("nil blocklist should never block")
		}
		if newDomainBlocklist([]string{" ", ""}) != nil {
			t.Fatalf("expected nil blocklist for empty patterns")
		}
	})
}
