package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"imovel-scraper/utils"
)

// Domains that never lead to listing pages: social networks, messaging,
// aggregator internals.
var blockedDomains = []string{
	"instagram.com",
	"facebook.com",
	"fb.com",
	"wa.me",
	"whatsapp.com",
	"api.whatsapp.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"youtu.be",
	"tiktok.com",
	"linkedin.com",
	"t.me",
	"telegram.me",
	"pinterest.com",
	"spotify.com",
}

var blockedPathHints = []string{
	"/sobre", "/about", "/contato", "/contact", "/login", "/cadastro",
	"/privacy", "/privacidade", "/termos", "/terms", "/cookie",
}

// Inline JSON link fields show up on pages that build their link lists in
// script: {"url":"https://..."} or {"link":"https://..."}.
var inlineJSONLinkRe = regexp.MustCompile(`"(?:url|link|href)"\s*:\s*"(https?://[^"\\]+)"`)

// Links discovers candidate listing URLs on an aggregator page. Relative
// URLs are resolved against baseURL, non-listing links are filtered out, and
// duplicates are suppressed via the run-scoped seen set. The result keeps
// discovery order and is capped at max entries.
func Links(html, baseURL string, seen *utils.URLSet, max int) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var candidates []string
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				candidates = append(candidates, href)
			}
		})
		doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
			rel, _ := sel.Attr("rel")
			if rel == "canonical" || rel == "alternate" {
				if href, ok := sel.Attr("href"); ok {
					candidates = append(candidates, href)
				}
			}
		})
	}
	for _, m := range inlineJSONLinkRe.FindAllStringSubmatch(html, -1) {
		candidates = append(candidates, m[1])
	}

	var out []string
	for _, raw := range candidates {
		abs, ok := normalizeLink(raw, base)
		if !ok {
			continue
		}
		if !seen.Add(abs) {
			continue
		}
		out = append(out, abs)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// normalizeLink resolves a candidate against the base URL and reports
// whether it can possibly be a listing link.
func normalizeLink(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "data:") {
		return "", false
	}

	u, err := base.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""

	host := strings.ToLower(u.Host)
	for _, blocked := range blockedDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return "", false
		}
	}
	path := strings.ToLower(u.Path)
	for _, hint := range blockedPathHints {
		if strings.HasPrefix(path, hint) {
			return "", false
		}
	}
	// The aggregator page itself is never a candidate.
	if u.Host == base.Host && (u.Path == base.Path || u.Path == "" || u.Path == "/") {
		return "", false
	}

	return u.String(), true
}
