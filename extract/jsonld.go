package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"imovel-scraper/models"
)

// jsonLDTypes we trust for listing data. Anything else in a ld+json block is
// ignored.
var jsonLDTypes = map[string]bool{
	"RealEstateListing": true,
	"Product":           true,
	"Offer":             true,
	"Residence":         true,
	"Apartment":         true,
	"House":             true,
	"Place":             true,
	"SingleFamilyResidence": true,
}

type jsonLDBlock struct {
	Type        any       `json:"@type"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       any       `json:"image"`
	URL         string    `json:"url"`
	Offers      *jsonLDOffer `json:"offers"`
	Price       any       `json:"price"`
	FloorSize   *jsonLDQuantity `json:"floorSize"`
	NumberOfRooms    any `json:"numberOfRooms"`
	NumberOfBedrooms any `json:"numberOfBedrooms"`
	NumberOfBathroomsTotal any `json:"numberOfBathroomsTotal"`
	Address     *jsonLDAddress `json:"address"`
	Graph       []jsonLDBlock  `json:"@graph"`
}

type jsonLDOffer struct {
	Price         any    `json:"price"`
	PriceCurrency string `json:"priceCurrency"`
}

type jsonLDQuantity struct {
	Value any `json:"value"`
}

type jsonLDAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	AddressCountry  any    `json:"addressCountry"`
	// Some sites put the neighborhood here.
	AddressNeighborhood string `json:"addressNeighborhood"`
}

// JSONLD extracts the highest-trust partial from embedded structured
// metadata. Fields are taken verbatim when their types match; anything
// unparsable is skipped at the field level.
func JSONLD(doc *goquery.Document) models.Partial {
	var p models.Partial

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}

		var block jsonLDBlock
		if err := json.Unmarshal([]byte(raw), &block); err != nil {
			// Some pages wrap several entities in a top-level array.
			var blocks []jsonLDBlock
			if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
				return true
			}
			block.Graph = blocks
		}

		for _, candidate := range flattenJSONLD(block) {
			if applyJSONLD(&p, candidate) && p.Title != "" {
				return false
			}
		}
		return true
	})

	return p
}

func flattenJSONLD(block jsonLDBlock) []jsonLDBlock {
	out := []jsonLDBlock{block}
	out = append(out, block.Graph...)
	return out
}

func applyJSONLD(p *models.Partial, block jsonLDBlock) bool {
	if !typeMatches(block.Type) {
		return false
	}

	if p.Title == "" {
		p.Title = normalizeSpace(block.Name)
	}
	if p.Description == "" {
		p.Description = normalizeSpace(block.Description)
	}
	if p.Price == nil {
		if v, ok := anyToFloat(block.Price); ok && models.ValidPrice(v) {
			p.Price = &v
		} else if block.Offers != nil {
			if v, ok := anyToFloat(block.Offers.Price); ok && models.ValidPrice(v) {
				p.Price = &v
			}
		}
	}
	if p.Area == nil && block.FloorSize != nil {
		if v, ok := anyToFloat(block.FloorSize.Value); ok && models.ValidArea(v) {
			p.Area = &v
		}
	}
	if p.Bedrooms == nil {
		for _, candidate := range []any{block.NumberOfBedrooms, block.NumberOfRooms} {
			if v, ok := anyToFloat(candidate); ok && models.ValidCount(int(v)) {
				n := int(v)
				p.Bedrooms = &n
				break
			}
		}
	}
	if p.Bathrooms == nil {
		if v, ok := anyToFloat(block.NumberOfBathroomsTotal); ok && models.ValidCount(int(v)) {
			n := int(v)
			p.Bathrooms = &n
		}
	}
	if block.Address != nil {
		if p.Address == "" {
			p.Address = normalizeSpace(block.Address.StreetAddress)
		}
		if p.Neighborhood == "" {
			p.Neighborhood = normalizeSpace(block.Address.AddressNeighborhood)
		}
		if p.City == "" {
			p.City = normalizeSpace(block.Address.AddressLocality)
		}
		if p.State == "" {
			p.State = normalizeSpace(block.Address.AddressRegion)
		}
	}
	for _, img := range imageList(block.Image) {
		p.Images = append(p.Images, img)
	}
	return true
}

func typeMatches(t any) bool {
	switch v := t.(type) {
	case string:
		return jsonLDTypes[v]
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && jsonLDTypes[s] {
				return true
			}
		}
	}
	return false
}

func anyToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := parseBRFloat(n)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func imageList(v any) []string {
	switch img := v.(type) {
	case string:
		if img != "" {
			return []string{img}
		}
	case []any:
		var out []string
		for _, item := range img {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
