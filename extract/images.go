package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Filename hints that mark an image as a logo/icon rather than a photo.
var nonPhotoHints = []string{
	"logo", "icon", "favicon", "sprite", "avatar", "placeholder",
	"banner", "badge", "pixel", "tracking",
}

var backgroundImageRe = regexp.MustCompile(`background(?:-image)?\s*:\s*url\(['"]?(https?://[^'")]+)['"]?\)`)

// Images harvests photo URLs from <img> tags and CSS background-image
// declarations, filters out logos/icons and non-raster schemes, and caps the
// deduplicated result.
func Images(doc *goquery.Document, html, baseURL string, max int) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var candidates []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if src, ok := sel.Attr(attr); ok && src != "" {
				candidates = append(candidates, src)
				break
			}
		}
	})
	for _, m := range backgroundImageRe.FindAllStringSubmatch(html, -1) {
		candidates = append(candidates, m[1])
	}

	seen := make(map[string]struct{})
	var out []string
	for _, raw := range candidates {
		abs, ok := normalizeImage(raw, base)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func normalizeImage(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:") || strings.HasSuffix(lower, ".svg") ||
		strings.HasSuffix(lower, ".gif") {
		return "", false
	}
	for _, hint := range nonPhotoHints {
		if strings.Contains(lower, hint) {
			return "", false
		}
	}

	u, err := base.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}
