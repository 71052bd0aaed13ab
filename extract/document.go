package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"imovel-scraper/models"
)

// DocKind classifies a drive-hosted document by URL shape.
type DocKind string

const (
	DocPDF     DocKind = "pdf"
	DocSheet   DocKind = "sheet"
	DocSlides  DocKind = "slides"
	DocGeneric DocKind = "document"
)

var driveHosts = []string{
	"docs.google.com",
	"drive.google.com",
	"onedrive.live.com",
	"1drv.ms",
	"dropbox.com",
	"www.dropbox.com",
}

// IsDriveURL reports whether a discovered URL points at a recognized
// document-hosting domain rather than a normal web page.
func IsDriveURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, host := range driveHosts {
		if strings.Contains(lower, host+"/") || strings.HasSuffix(lower, host) {
			return true
		}
	}
	return false
}

// KindOf detects the document sub-type from the URL shape.
func KindOf(rawURL string) DocKind {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "/spreadsheets/"):
		return DocSheet
	case strings.Contains(lower, "/presentation/"):
		return DocSlides
	case strings.Contains(lower, ".pdf"), strings.Contains(lower, "/file/"):
		return DocPDF
	default:
		return DocGeneric
	}
}

// unitRowRe recognizes fixed-column unit rows in price tables rendered as
// text, e.g.:
//
//	101 A 65,5 2 quartos 1 250.000,00 230.000,00
//
// columns: unit, block, area m², typology, parking, list price, promo price
// (promo optional).
var unitRowRe = regexp.MustCompile(
	`(?m)^\s*(\d{1,4})\s+([A-Z]\d?|\d{1,2})\s+(\d{1,3}(?:[.,]\d{1,2})?)\s+` +
		`(\d\s*(?:quartos?|dorms?\.?|suítes?|qtos?))\s+(\d)\s+` +
		`([\d.]+,\d{2})(?:\s+([\d.]+,\d{2}))?\s*$`)

var typologyDigitRe = regexp.MustCompile(`\d`)

// Document extracts listing candidates from a rendered drive-document
// viewer. Tabular row parsing runs first; when the text has no recognizable
// unit table, it falls back to the same single-record heuristic extraction
// used for ordinary pages. This is the only path where one source page can
// yield multiple records.
func Document(html, docURL string, linkID int64, maxImages int) []*models.RawProperty {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if rows := parseUnitRows(documentText(doc), docURL, linkID); len(rows) > 0 {
		return rows
	}

	cascade := &Cascade{MaxImages: maxImages}
	raw := cascade.Run(html, docURL, linkID)
	if raw == nil {
		return nil
	}
	raw.Origin = models.OriginDocument
	raw.Documents = []string{docURL}
	return []*models.RawProperty{raw}
}

var intraLineSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
var blankLinesRe = regexp.MustCompile(`\n{2,}`)

// documentText extracts the viewer text with script/style stripped but line
// structure preserved, so row patterns keep their anchors.
func documentText(doc *goquery.Document) string {
	clone := doc.Clone()
	clone.Find("script, style, noscript").Remove()
	text := intraLineSpaceRe.ReplaceAllString(clone.Text(), " ")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n"))
}

// parseUnitRows produces one candidate per matched unit row. Rows failing
// the plausibility checks are silently dropped, not stored as errors.
func parseUnitRows(text, docURL string, linkID int64) []*models.RawProperty {
	projectTitle := documentTitle(text)
	var out []*models.RawProperty

	for _, m := range unitRowRe.FindAllStringSubmatch(text, -1) {
		unit, block := m[1], m[2]
		area, err := parseBRFloat(m[3])
		if err != nil || !models.ValidArea(area) {
			continue
		}

		bedrooms := typologyBedrooms(m[4])
		if !models.ValidCount(bedrooms) {
			continue
		}
		parking, err := parseIntField(m[5])
		if err != nil {
			continue
		}

		// Promotional price wins over list price when both are present.
		priceStr := m[6]
		if m[7] != "" {
			priceStr = m[7]
		}
		price, err := parseBRFloat(priceStr)
		if err != nil || !models.ValidPrice(price) {
			continue
		}

		bathrooms := bathroomsFor(bedrooms)
		now := time.Now()
		raw := &models.RawProperty{
			ID:        uuid.NewString(),
			LinkID:    linkID,
			SourceURL: docURL,
			Title:     fmt.Sprintf("%s — Unidade %s Bloco %s", projectTitle, unit, block),
			Price:     &price,
			Area:      &area,
			Bedrooms:  &bedrooms,
			Bathrooms: &bathrooms,
			Documents: []string{docURL},
			Origin:    models.OriginDocument,
			Status:    models.RawPending,
			NeedsProcessing: true,
			ScrapedAt: now,
			UpdatedAt: now,
		}
		if models.ValidCount(parking) {
			raw.Parking = &parking
		}
		out = append(out, raw)
	}
	return out
}

// typologyBedrooms derives the bedroom count from the typology column text
// ("2 quartos", "3 dorms").
func typologyBedrooms(typology string) int {
	digit := typologyDigitRe.FindString(typology)
	if digit == "" {
		return 0
	}
	return int(digit[0] - '0')
}

// bathroomsFor is the table heuristic: small units get one bathroom, larger
// typologies one fewer than the bedroom count.
func bathroomsFor(bedrooms int) int {
	if bedrooms <= 2 {
		return 1
	}
	return bedrooms - 1
}

func parseIntField(s string) (int, error) {
	v, err := parseBRFloat(s)
	return int(v), err
}

var titleLineRe = regexp.MustCompile(`(?i)(residencial|edifício|condomínio|empreendimento)\s+[A-Za-zÀ-ÿ0-9' ]{2,40}`)

// documentTitle pulls a project name out of the document text, falling back
// to a generic label.
func documentTitle(text string) string {
	if m := titleLineRe.FindString(text); m != "" {
		return normalizeSpace(m)
	}
	return "Tabela de unidades"
}
