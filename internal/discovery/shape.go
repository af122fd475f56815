package discovery

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	datePathPattern = regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/`)
	yearPattern     = regexp.MustCompile(`\d{4}`)
)

// Shape holds the path vocabularies used to tell articles from navigation.
type Shape struct {
	ArticleSegments      []string
	RelaxedSegments      []string
	NonArticleSegments   map[string]bool
	NonArticleExtensions map[string]bool
	NavigationExcludes   []string
	MinStrictPathChars   int
	MinRelaxedPathChars  int
	StrictSlugChars      int
	RelaxedSlugChars     int
}

// DefaultShape returns the built-in article heuristics.
func DefaultShape() Shape {
	return Shape{
		ArticleSegments: []string{
			"/article/", "/post/", "/news/", "/story/", "/blog/", "/content/", "/entry/", "/feature/",
		},
		RelaxedSegments: []string{"/read", "/view", "/detail"},
		NonArticleSegments: map[string]bool{
			"login": true, "signin": true, "signup": true, "register": true, "search": true,
			"contact": true, "about": true, "privacy": true, "terms": true, "tag": true,
			"tags": true, "category": true, "author": true, "page": true, "feed": true,
			"rss": true, "sitemap": true, "admin": true, "wp-admin": true, "account": true,
			"subscribe": true, "newsletter": true, "events": true, "jobs": true, "careers": true,
		},
		NonArticleExtensions: map[string]bool{
			".pdf": true, ".xml": true, ".json": true, ".css": true, ".js": true, ".png": true,
			".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true, ".webp": true,
			".woff": true, ".zip": true, ".mp3": true, ".mp4": true,
		},
		NavigationExcludes: []string{
			"/tag/", "/author/", "/page/", "/search", "/about", "/contact", "/privacy",
			"/terms", "/login", "?page=", "#",
		},
		MinStrictPathChars:  10,
		MinRelaxedPathChars: 5,
		StrictSlugChars:     20,
		RelaxedSlugChars:    15,
	}
}

// LooksLikeArticle applies the strict test: a long enough path plus a date
// segment, a known article segment, or a long final slug.
func (s Shape) LooksLikeArticle(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	trimmed := strings.Trim(p, "/")
	if len(trimmed) < s.MinStrictPathChars || s.isNonArticle(trimmed) {
		return false
	}
	if datePathPattern.MatchString(p + "/") {
		return true
	}
	for _, seg := range s.ArticleSegments {
		if strings.Contains(p+"/", seg) {
			return true
		}
	}
	parts := strings.Split(trimmed, "/")
	return len(parts) >= 2 && len(parts[len(parts)-1]) > s.StrictSlugChars
}

// LooksLikeArticleRelaxed is the deep-homepage fallback: any year, an article
// or detail segment, or a moderately long slug.
func (s Shape) LooksLikeArticleRelaxed(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	trimmed := strings.Trim(p, "/")
	if len(trimmed) < s.MinRelaxedPathChars || s.isNonArticle(trimmed) {
		return false
	}
	if yearPattern.MatchString(trimmed) {
		return true
	}
	for _, seg := range s.ArticleSegments {
		if strings.Contains(p+"/", seg) {
			return true
		}
	}
	for _, seg := range s.RelaxedSegments {
		if strings.Contains(p, seg) {
			return true
		}
	}
	parts := strings.Split(trimmed, "/")
	return len(parts[len(parts)-1]) > s.RelaxedSlugChars
}

// IsSectionLink reports whether a navigation link points at a section page
// worth crawling for articles.
func (s Shape) IsSectionLink(u *url.URL) bool {
	if strings.Trim(u.Path, "/") == "" {
		return false
	}
	full := strings.ToLower(u.RequestURI())
	if u.Fragment != "" {
		return false
	}
	for _, ex := range s.NavigationExcludes {
		if strings.Contains(full, ex) {
			return false
		}
	}
	return !s.NonArticleExtensions[path.Ext(strings.ToLower(u.Path))]
}

func (s Shape) isNonArticle(trimmedLowerPath string) bool {
	if s.NonArticleExtensions[path.Ext(trimmedLowerPath)] {
		return true
	}
	for _, seg := range strings.Split(trimmedLowerPath, "/") {
		if s.NonArticleSegments[seg] {
			return true
		}
	}
	return false
}
