package extract

import (
	"github.com/PuerkitoBio/goquery"

	"imovel-scraper/models"
)

// OpenGraph extracts social-preview metadata. It fills only title,
// description, image and price gaps; it never overrides structured data.
func OpenGraph(doc *goquery.Document) models.Partial {
	var p models.Partial

	meta := func(names ...string) string {
		for _, name := range names {
			var content string
			doc.Find(`meta[property="` + name + `"], meta[name="` + name + `"]`).
				EachWithBreak(func(_ int, sel *goquery.Selection) bool {
					if c, ok := sel.Attr("content"); ok && c != "" {
						content = c
						return false
					}
					return true
				})
			if content != "" {
				return normalizeSpace(content)
			}
		}
		return ""
	}

	p.Title = meta("og:title", "twitter:title")
	p.Description = meta("og:description", "twitter:description", "description")
	if img := meta("og:image", "twitter:image"); img != "" {
		p.Images = []string{img}
	}
	if raw := meta("product:price:amount", "og:price:amount"); raw != "" {
		if v, err := parseBRFloat(raw); err == nil && models.ValidPrice(v) {
			p.Price = &v
		}
	}

	return p
}
