package resolver

import "strings"

// DefaultWebsiteBlocklist holds hosts that are never a company's own website:
// social platforms, databases and news outlets.
var DefaultWebsiteBlocklist = []string{
	"*.linkedin.com",
	"*.twitter.com",
	"*.x.com",
	"*.facebook.com",
	"*.instagram.com",
	"*.youtube.com",
	"*.crunchbase.com",
	"*.techcrunch.com",
	"*.finsmes.com",
	"*.reuters.com",
	"*.bloomberg.com",
	"*.forbes.com",
	"*.wsj.com",
	"*.nytimes.com",
	"*.medium.com",
	"*.substack.com",
	"news.ycombinator.com",
	"*.wikipedia.org",
}

// domainBlocklist stores exact hosts and suffix wildcards.
type domainBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newDomainBlocklist(patterns []string) *domainBlocklist {
	matcher := &domainBlocklist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		switch {
		case strings.HasPrefix(value, "*."):
			matcher.addSuffix(strings.TrimPrefix(value, "*."))
		case strings.HasPrefix(value, "."):
			matcher.addSuffix(strings.TrimPrefix(value, "."))
		default:
			matcher.exact[value] = struct{}{}
		}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 {
		return nil
	}
	return matcher
}

func (b *domainBlocklist) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, existing := range b.suffixes {
		if existing == suffix {
			return
		}
	}
	b.suffixes = append(b.suffixes, suffix)
}

// IsBlocked reports whether host matches an exact entry or a wildcard suffix.
// A wildcard also matches the bare suffix.
func (b *domainBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(host)), ".")
	if host == "" {
		return false
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
