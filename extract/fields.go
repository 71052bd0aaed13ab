// Package extract turns fetched pages into raw listing records using a
// priority-ordered cascade of strategies: embedded structured metadata,
// social-preview metadata, then regex heuristics over the page text.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"imovel-scraper/models"
)

// Each field has an ordered family of compiled patterns. The first pattern
// whose match passes the plausibility check wins; out-of-range matches are
// discarded, not clamped.

var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)R\$\s*([\d.]+(?:,\d{2})?)`),
	// Plain-dollar prices with strict thousands groups; the leading class
	// keeps this from re-matching the tail of an R$ amount.
	regexp.MustCompile(`(?i)(?:^|[^R$\d.,])\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`),
	regexp.MustCompile(`(?i)(?:valor|preço|price)[:\s]*R?\$?\s*([\d.]+(?:,\d{2})?)`),
}

var areaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m²`),
	regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*m2\b`),
	regexp.MustCompile(`(?i)(?:área|area)[:\s]*(\d+(?:[.,]\d+)?)`),
}

var bedroomPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(?:quartos?|dormitórios?|dorms?\.?)\b`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:bedrooms?|beds?)\b`),
	regexp.MustCompile(`(?i)(\d+)\s*qtos?\b`),
}

var suitePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*suítes?\b`),
	regexp.MustCompile(`(?i)(\d+)\s*suites?\b`),
}

var bathroomPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*banheiros?\b`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:bathrooms?|baths?)\b`),
	regexp.MustCompile(`(?i)(\d+)\s*wc\b`),
}

var parkingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(?:vagas?|garagens?)\b`),
	regexp.MustCompile(`(?i)(\d+)\s*(?:parking|garage)s?\b`),
}

var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:Rua|Av\.?|Avenida|Alameda|Travessa|Rodovia)\s+[^,\n.]{3,60}(?:,\s*\d+)?)`),
	regexp.MustCompile(`(?i)(?:endereço|address)[:\s]+([^\n]{5,80})`),
}

var neighborhoodPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:bairro|neighborhood)[:\s]+([A-Za-zÀ-ÿ' ]{3,40})`),
}

// Price extracts the first plausible price from text, nil when none matches.
func Price(text string) *float64 {
	for _, re := range pricePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v, err := parseBRFloat(m[1])
		if err != nil {
			continue
		}
		if models.ValidPrice(v) {
			return &v
		}
	}
	return nil
}

// Area extracts the first plausible area in m², nil when none matches.
func Area(text string) *float64 {
	for _, re := range areaPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v, err := parseBRFloat(m[1])
		if err != nil {
			continue
		}
		if models.ValidArea(v) {
			return &v
		}
	}
	return nil
}

// Bedrooms extracts a plausible bedroom count, nil when none matches.
func Bedrooms(text string) *int { return countField(text, bedroomPatterns) }

// Suites extracts a plausible suite count, nil when none matches.
func Suites(text string) *int { return countField(text, suitePatterns) }

// Bathrooms extracts a plausible bathroom count, nil when none matches.
func Bathrooms(text string) *int { return countField(text, bathroomPatterns) }

// Parking extracts a plausible parking-spot count, nil when none matches.
func Parking(text string) *int { return countField(text, parkingPatterns) }

func countField(text string, family []*regexp.Regexp) *int {
	for _, re := range family {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if models.ValidCount(v) {
			return &v
		}
	}
	return nil
}

// StreetAddress extracts a street-style address line, empty when none matches.
func StreetAddress(text string) string {
	for _, re := range addressPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) >= 2 {
			return normalizeSpace(m[1])
		}
	}
	return ""
}

// Neighborhood extracts an explicitly labelled neighborhood, empty when none
// matches.
func Neighborhood(text string) string {
	for _, re := range neighborhoodPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) >= 2 {
			return normalizeSpace(m[1])
		}
	}
	return ""
}

// Property type keyword sets, checked in fixed priority order. Penthouse
// keywords are checked before the generic house/apartment sets because
// "cobertura" pages usually also mention "apartamento".
var typeKeywords = []struct {
	t        models.PropertyType
	keywords []string
}{
	{models.TypePenthouse, []string{"cobertura", "penthouse"}},
	{models.TypeApartment, []string{"apartamento", "apto", "apartment", "flat", "studio", "kitnet"}},
	{models.TypeHouse, []string{"casa", "sobrado", "house", "residência"}},
	{models.TypeCommercial, []string{"comercial", "sala comercial", "loja", "galpão", "escritório", "commercial"}},
	{models.TypeLand, []string{"terreno", "lote", "land", "chácara"}},
}

// PropertyTypeOf infers the property type from keyword matching, defaulting
// to apartment when nothing matches.
func PropertyTypeOf(text string) models.PropertyType {
	lower := strings.ToLower(text)
	for _, set := range typeKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.t
			}
		}
	}
	return models.TypeApartment
}

var constructionHints = []string{
	"em construção", "na planta", "lançamento", "under construction", "pre-launch",
}

var availableHints = []string{
	"pronto para morar", "pronta entrega", "ready", "move-in ready",
}

// StatusOf infers availability from keyword hints, defaulting to available.
func StatusOf(text string) models.PropertyStatus {
	lower := strings.ToLower(text)
	for _, hint := range constructionHints {
		if strings.Contains(lower, hint) {
			return models.StatusConstruction
		}
	}
	for _, hint := range availableHints {
		if strings.Contains(lower, hint) {
			return models.StatusAvailable
		}
	}
	return models.StatusAvailable
}

var furnishedRe = regexp.MustCompile(`(?i)\b(mobiliad[oa]|furnished)\b`)
var unfurnishedRe = regexp.MustCompile(`(?i)\b(sem mobília|não mobiliad[oa]|unfurnished)\b`)

// Furnished infers the furnished flag, nil when the text says nothing.
func Furnished(text string) *bool {
	if unfurnishedRe.MatchString(text) {
		f := false
		return &f
	}
	if furnishedRe.MatchString(text) {
		t := true
		return &t
	}
	return nil
}

// featureKeywords maps raw-text keywords to the normalized feature tag.
// The table is ordered so the same page always yields tags in the same
// order, keeping stored feature arrays stable across runs.
var featureKeywords = []struct {
	keyword string
	tag     string
}{
	{"piscina", "piscina"},
	{"pool", "piscina"},
	{"academia", "academia"},
	{"gym", "academia"},
	{"churrasqueira", "churrasqueira"},
	{"portaria 24", "portaria 24h"},
	{"elevador", "elevador"},
	{"varanda", "varanda"},
	{"sacada", "varanda"},
	{"playground", "playground"},
	{"salão de festa", "salão de festas"},
	{"área gourmet", "área gourmet"},
	{"vista para o mar", "vista para o mar"},
	{"pet friendly", "aceita pets"},
	{"aceita pet", "aceita pets"},
}

// Features harvests normalized feature tags from keyword matches.
func Features(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	var out []string
	for _, fk := range featureKeywords {
		if strings.Contains(lower, fk.keyword) {
			if _, dup := seen[fk.tag]; dup {
				continue
			}
			seen[fk.tag] = struct{}{}
			out = append(out, fk.tag)
		}
	}
	return out
}

var brThousandsRe = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// parseBRFloat parses numbers in either Brazilian ("1.234.567,89") or plain
// ("1,234.56" / "1234.56") notation.
func parseBRFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, ",") && strings.LastIndex(s, ",") > strings.LastIndex(s, "."):
		// Brazilian notation: dots group thousands, comma is decimal.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case brThousandsRe.MatchString(s):
		// Brazilian thousands with no decimal part, e.g. "1.200.000".
		s = strings.ReplaceAll(s, ".", "")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	return strconv.ParseFloat(s, 64)
}

var spaceRe = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
