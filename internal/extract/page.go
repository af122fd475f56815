package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/funding-crawler/internal/funding"
)

const contextWindow = 200

var (
	whitespace     = regexp.MustCompile(`\s+`)
	urlDatePattern = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)

	noiseSelectors = "script, style, noscript, nav, header, footer, aside, form, iframe, svg"
	bodySelectors  = []string{
		"[itemprop=articleBody]",
		"article",
		".article-body",
		".article-content",
		".post-content",
		".entry-content",
		".story-body",
		"main",
	}
)

// Parse builds a goquery document from raw HTML.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Links returns every http(s) anchor in or under sel resolved against base.
// Links are de-duplicated by normalized URL; the first occurrence wins.
func Links(sel *goquery.Selection, base *url.URL, kind funding.StrategyKind) []funding.CandidateLink {
	seen := make(map[string]struct{})
	var out []funding.CandidateLink
	sel.Filter("a[href]").AddSelection(sel.Find("a[href]")).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		link, ok := resolve(base, href)
		if !ok {
			return
		}
		norm, err := NormalizeURL(link)
		if err != nil {
			return
		}
		if _, dup := seen[norm]; dup {
			return
		}
		seen[norm] = struct{}{}
		anchor := collapse(a.Text())
		out = append(out, funding.CandidateLink{
			URL:          norm,
			AnchorText:   anchor,
			Context:      anchorContext(a, anchor),
			Domain:       Domain(norm),
			DiscoveredBy: kind,
		})
	})
	return out
}

// DocumentLinks is Links over the whole document.
func DocumentLinks(doc *goquery.Document, base *url.URL, kind funding.StrategyKind) []funding.CandidateLink {
	return Links(doc.Selection, base, kind)
}

func resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}

// anchorContext returns the sentence fragment around the anchor as
// "before [anchor] after".
func anchorContext(a *goquery.Selection, anchor string) string {
	if anchor == "" {
		return ""
	}
	block := a.Closest("p, li, td, blockquote, h1, h2, h3, h4, figcaption, div")
	if block.Length() == 0 {
		return "[" + anchor + "]"
	}
	text := collapse(block.Text())
	idx := strings.Index(text, anchor)
	if idx < 0 {
		return "[" + anchor + "]"
	}
	before := lastSentence(text[:idx])
	after := firstSentence(text[idx+len(anchor):])
	return strings.TrimSpace(fmt.Sprintf("%s [%s] %s", before, anchor, after))
}

func lastSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, ".!?"); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	if len(s) > contextWindow {
		s = s[len(s)-contextWindow:]
	}
	return strings.TrimSpace(s)
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		s = s[:i+1]
	}
	if len(s) > contextWindow {
		s = s[:contextWindow]
	}
	return strings.TrimSpace(s)
}

// MainText returns the readable article text with navigation and scripts removed.
func MainText(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find(noiseSelectors).Remove()

	container := clone.Find("body")
	for _, s := range bodySelectors {
		if found := clone.Find(s).First(); found.Length() > 0 {
			container = found
			break
		}
	}
	if container.Length() == 0 {
		container = clone
	}

	var paragraphs []string
	container.Find("p, h1, h2, h3, li").Each(func(_ int, p *goquery.Selection) {
		if t := collapse(p.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	joined := strings.Join(paragraphs, "\n")
	full := collapse(container.Text())
	if len(joined) < len(full)/2 {
		return full
	}
	return joined
}

// Title returns the og:title or <title> of the document.
func Title(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return collapse(og)
	}
	return collapse(doc.Find("title").First().Text())
}

// PublishedDate looks for a publication date in, in order: the
// article:published_time meta tag, a <time datetime> element, pubdate/date meta
// tags, and a /YYYY/MM/DD/ segment in pageURL. It returns "" when none is found.
func PublishedDate(doc *goquery.Document, pageURL string) string {
	if v, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	for _, sel := range []string{`meta[name="pubdate"]`, `meta[name="publishdate"]`, `meta[name="date"]`, `meta[itemprop="datePublished"]`} {
		if v, ok := doc.Find(sel).Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if m := urlDatePattern.FindStringSubmatch(pageURL); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
