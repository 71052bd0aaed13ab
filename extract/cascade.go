package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"imovel-scraper/models"
)

// Cascade runs the extraction strategies against one fetched listing page.
type Cascade struct {
	MaxImages int
}

// origin pairs a strategy's partial with its tag so the dominant origin can
// be recorded on the raw record.
type origin struct {
	tag     models.Origin
	partial models.Partial
}

// Run extracts a raw record from a listing page. Strategies are merged
// field-by-field in trust order (structured > opengraph > heuristics), so a
// record can take its title from metadata and its price from regex. Returns
// nil when no strategy produced a title: a record without a title is
// discarded, not stored.
func (c *Cascade) Run(html, pageURL string, linkID int64) *models.RawProperty {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	text := PageText(doc)

	origins := []origin{
		{models.OriginStructured, JSONLD(doc)},
		{models.OriginOpenGraph, OpenGraph(doc)},
		{models.OriginHeuristic, Heuristics(doc, text)},
	}

	partials := make([]models.Partial, len(origins))
	for i, o := range origins {
		partials[i] = o.partial
	}
	merged := Merge(partials...)
	if merged.Title == "" {
		return nil
	}

	merged.Type = PropertyTypeOf(text + " " + merged.Title)
	merged.Status = StatusOf(text)
	harvested := Images(doc, html, pageURL, c.MaxImages)
	merged.Images = dedupeStrings(append(merged.Images, harvested...), c.MaxImages)

	dominant := origins[0].tag
	best := -1
	for _, o := range origins {
		if n := o.partial.FieldCount(); n > best {
			best = n
			dominant = o.tag
		}
	}

	now := time.Now()
	return &models.RawProperty{
		ID:              uuid.NewString(),
		LinkID:          linkID,
		SourceURL:       pageURL,
		Title:           merged.Title,
		Description:     merged.Description,
		Price:           merged.Price,
		Area:            merged.Area,
		Bedrooms:        merged.Bedrooms,
		Suites:          merged.Suites,
		Bathrooms:       merged.Bathrooms,
		Parking:         merged.Parking,
		Address:         merged.Address,
		Neighborhood:    merged.Neighborhood,
		City:            merged.City,
		State:           merged.State,
		Furnished:       merged.Furnished,
		Features:        merged.Features,
		Images:          merged.Images,
		Origin:          dominant,
		Status:          models.RawPending,
		NeedsProcessing: true,
		ScrapedAt:       now,
		UpdatedAt:       now,
	}
}

// Heuristics is the lowest-trust strategy: regex families over the page text
// plus a title fallback from <title>/<h1>.
func Heuristics(doc *goquery.Document, text string) models.Partial {
	p := models.Partial{
		Price:        Price(text),
		Area:         Area(text),
		Bedrooms:     Bedrooms(text),
		Suites:       Suites(text),
		Bathrooms:    Bathrooms(text),
		Parking:      Parking(text),
		Address:      StreetAddress(text),
		Neighborhood: Neighborhood(text),
		Furnished:    Furnished(text),
		Features:     Features(text),
	}

	if h1 := normalizeSpace(doc.Find("h1").First().Text()); h1 != "" {
		p.Title = h1
	} else if title := normalizeSpace(doc.Find("title").First().Text()); title != "" {
		p.Title = title
	}

	return p
}

// Merge combines strategy outputs left-to-right: for every field the first
// partial that filled it wins.
func Merge(partials ...models.Partial) models.Partial {
	var out models.Partial
	for _, p := range partials {
		if out.Title == "" {
			out.Title = p.Title
		}
		if out.Description == "" {
			out.Description = p.Description
		}
		if out.Price == nil {
			out.Price = p.Price
		}
		if out.Area == nil {
			out.Area = p.Area
		}
		if out.Bedrooms == nil {
			out.Bedrooms = p.Bedrooms
		}
		if out.Suites == nil {
			out.Suites = p.Suites
		}
		if out.Bathrooms == nil {
			out.Bathrooms = p.Bathrooms
		}
		if out.Parking == nil {
			out.Parking = p.Parking
		}
		if out.Address == "" {
			out.Address = p.Address
		}
		if out.Neighborhood == "" {
			out.Neighborhood = p.Neighborhood
		}
		if out.City == "" {
			out.City = p.City
		}
		if out.State == "" {
			out.State = p.State
		}
		if out.Furnished == nil {
			out.Furnished = p.Furnished
		}
		if len(out.Features) == 0 {
			out.Features = p.Features
		}
		if len(out.Images) == 0 {
			out.Images = p.Images
		}
	}
	return out
}

// PageText extracts readable text from a document: script/style stripped,
// whitespace collapsed.
func PageText(doc *goquery.Document) string {
	clone := doc.Clone()
	clone.Find("script, style, noscript").Remove()
	return normalizeSpace(clone.Find("body").Text())
}

func dedupeStrings(in []string, max int) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
