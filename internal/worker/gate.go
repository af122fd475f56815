package worker

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/funding-crawler/internal/extract"
	"github.com/JakeFAU/funding-crawler/internal/funding"
	"github.com/JakeFAU/funding-crawler/internal/metrics"
)

// GateConfig decides which fetched pages are worth sending to the collaborators.
type GateConfig struct {
	MinBodyBytes int
	MinTextChars int
	// ShortTextChars bounds the main text length under which the text itself is
	// scanned for bot signatures. Longer articles are only checked by title.
	ShortTextChars int
	BotSignatures  []string
}

// DefaultBotSignatures are phrases served by bot walls and challenge pages.
var DefaultBotSignatures = []string{
	"access denied",
	"blocked",
	"forbidden",
	"bot detected",
	"captcha",
	"cloudflare",
	"security check",
	"rate limit",
	"temporarily blocked",
	"suspicious activity",
}

// DefaultGateConfig returns the gate thresholds used in production.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinBodyBytes:   500,
		MinTextChars:   200,
		ShortTextChars: 2000,
		BotSignatures:  DefaultBotSignatures,
	}
}

// inspected is a page that made it through the gate.
type inspected struct {
	doc   *goquery.Document
	title string
	text  string
}

type gate struct {
	cfg GateConfig
}

func newGate(cfg GateConfig) gate {
	sigs := make([]string, 0, len(cfg.BotSignatures))
	for _, s := range cfg.BotSignatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sigs = append(sigs, s)
		}
	}
	cfg.BotSignatures = sigs
	return gate{cfg: cfg}
}

// inspect parses the page and returns a failure when it must not reach the
// classifier.
func (g gate) inspect(page funding.RawPage) (inspected, *funding.Failure) {
	if f := statusFailure(page); f != nil {
		return inspected{}, f
	}
	if len(page.Body) < g.cfg.MinBodyBytes {
		return inspected{}, g.reject(page, funding.FailureContentQuality, "body_too_small",
			fmt.Sprintf("body %d bytes below %d", len(page.Body), g.cfg.MinBodyBytes))
	}
	doc, err := extract.Parse(page.Body)
	if err != nil {
		return inspected{}, g.reject(page, funding.FailureFatalItem, "parse_error", err.Error())
	}
	title := extract.Title(doc)
	text := extract.MainText(doc)

	if sig := g.botSignature(title, text); sig != "" {
		return inspected{}, g.reject(page, funding.FailureContentQuality, "bot_signature",
			fmt.Sprintf("bot wall detected: %q", sig))
	}
	if n := len([]rune(text)); n < g.cfg.MinTextChars {
		return inspected{}, g.reject(page, funding.FailureContentQuality, "text_too_short",
			fmt.Sprintf("main text %d chars below %d", n, g.cfg.MinTextChars))
	}
	return inspected{doc: doc, title: title, text: text}, nil
}

func (g gate) botSignature(title, text string) string {
	haystacks := []string{strings.ToLower(title)}
	if len([]rune(text)) < g.cfg.ShortTextChars {
		haystacks = append(haystacks, strings.ToLower(text))
	}
	for _, sig := range g.cfg.BotSignatures {
		for _, h := range haystacks {
			if strings.Contains(h, sig) {
				return sig
			}
		}
	}
	return ""
}

func (g gate) reject(page funding.RawPage, kind funding.FailureKind, reason, detail string) *funding.Failure {
	metrics.ObserveGateRejection(reason)
	return &funding.Failure{
		URL:    page.URL,
		Kind:   kind,
		Stage:  "gate",
		Reason: reason + ": " + detail,
		Status: page.Status,
	}
}

func statusFailure(page funding.RawPage) *funding.Failure {
	status := page.Status
	if status >= 200 && status < 300 {
		return nil
	}
	var (
		kind   funding.FailureKind
		reason string
	)
	switch {
	case status == http.StatusForbidden:
		kind, reason = funding.FailureContentQuality, "blocked"
	case funding.IsTransientStatus(status):
		kind, reason = funding.FailureTransient, "throttled"
	default:
		kind, reason = funding.FailureFatalItem, "http_status"
	}
	metrics.ObserveGateRejection(reason)
	return &funding.Failure{
		URL:    page.URL,
		Kind:   kind,
		Stage:  "gate",
		Reason: fmt.Sprintf("%s: HTTP %d", reason, status),
		Status: status,
	}
}
