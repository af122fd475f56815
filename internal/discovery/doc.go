// Package discovery finds candidate article URLs on a news site by trying a
// fixed chain of strategies: sitemaps, section pages linked from the
// navigation, a scan of homepage links, and a relaxed scan of the homepage.
package discovery
