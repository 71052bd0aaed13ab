package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"imovel-scraper/models"
)

const structuredPage = `<html><head>
<title>Apto 301 — Imobiliária</title>
<meta property="og:title" content="Apartamento OG Title">
<meta property="og:description" content="Descrição social do apartamento.">
<meta property="og:image" content="https://cdn.example.com/photos/apto-social.jpg">
<script type="application/ld+json">
{
  "@type": "RealEstateListing",
  "name": "Apartamento 3 quartos no Centro",
  "description": "Amplo apartamento estruturado.",
  "offers": {"price": "450000", "priceCurrency": "BRL"},
  "floorSize": {"value": 98},
  "numberOfBedrooms": 3,
  "address": {"streetAddress": "Rua das Flores, 45", "addressLocality": "Guarapari", "addressRegion": "ES"}
}
</script>
</head><body>
<h1>Apartamento heurístico</h1>
<p>Apartamento com 3 quartos, 2 banheiros, 1 vaga por R$ 999.000,00 em construção</p>
<img src="https://cdn.example.com/photos/sala.jpg">
<img src="https://cdn.example.com/img/logo.png">
</body></html>`

func TestCascadeStructuredBeatsHeuristics(t *testing.T) {
	c := &Cascade{MaxImages: 10}
	raw := c.Run(structuredPage, "https://imoveis.example.com/apto-301", 7)
	if raw == nil {
		t.Fatal("cascade returned nil for a page with structured data")
	}

	if raw.Title != "Apartamento 3 quartos no Centro" {
		t.Errorf("Title = %q, want structured title", raw.Title)
	}
	// Structured metadata price (450000) must win over the conflicting
	// heuristic price (999000).
	if raw.Price == nil || *raw.Price != 450000 {
		t.Errorf("Price = %v, want 450000 from structured metadata", raw.Price)
	}
	if raw.Area == nil || *raw.Area != 98 {
		t.Errorf("Area = %v, want 98", raw.Area)
	}
	if raw.Bedrooms == nil || *raw.Bedrooms != 3 {
		t.Errorf("Bedrooms = %v, want 3", raw.Bedrooms)
	}
	// Bathrooms only exist in the heuristic layer; the merge is
	// field-by-field, so they must still be filled.
	if raw.Bathrooms == nil || *raw.Bathrooms != 2 {
		t.Errorf("Bathrooms = %v, want 2 from heuristics", raw.Bathrooms)
	}
	if raw.Address != "Rua das Flores, 45" {
		t.Errorf("Address = %q", raw.Address)
	}
	if raw.Origin != models.OriginStructured {
		t.Errorf("Origin = %s, want structured", raw.Origin)
	}
	if raw.Status != models.RawPending {
		t.Errorf("Status = %s, want pending", raw.Status)
	}
	if !raw.NeedsProcessing {
		t.Error("NeedsProcessing should start true")
	}
}

func TestCascadeImagesFilterLogos(t *testing.T) {
	c := &Cascade{MaxImages: 10}
	raw := c.Run(structuredPage, "https://imoveis.example.com/apto-301", 7)
	if raw == nil {
		t.Fatal("cascade returned nil")
	}

	for _, img := range raw.Images {
		if strings.Contains(img, "logo") {
			t.Errorf("logo image should be filtered: %s", img)
		}
	}
	found := false
	for _, img := range raw.Images {
		if img == "https://cdn.example.com/photos/sala.jpg" {
			found = true
		}
	}
	if !found {
		t.Errorf("photo missing from images: %v", raw.Images)
	}
}

func TestCascadeOpenGraphFillsGaps(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="Casa na Praia do Morro">
<meta property="og:description" content="Casa com churrasqueira.">
</head><body><p>Casa com 2 quartos por R$ 320.000,00</p></body></html>`

	c := &Cascade{MaxImages: 5}
	raw := c.Run(page, "https://imoveis.example.com/casa-9", 1)
	if raw == nil {
		t.Fatal("cascade returned nil")
	}
	if raw.Title != "Casa na Praia do Morro" {
		t.Errorf("Title = %q, want OG title", raw.Title)
	}
	if raw.Price == nil || *raw.Price != 320000 {
		t.Errorf("Price = %v, want heuristic 320000", raw.Price)
	}
	if got := PropertyTypeOf(page); got != models.TypeHouse {
		t.Errorf("PropertyTypeOf = %s, want house", got)
	}
}

func TestCascadeNoTitleDiscarded(t *testing.T) {
	c := &Cascade{MaxImages: 5}
	if raw := c.Run("<html><body><p>R$ 100.000</p></body></html>", "https://x.example.com/p", 1); raw != nil {
		t.Errorf("record without title must be discarded, got %+v", raw)
	}
}

func TestMergePriority(t *testing.T) {
	p1, p2 := 100000.0, 200000.0
	merged := Merge(
		models.Partial{Price: &p1},
		models.Partial{Title: "segundo", Price: &p2, Description: "desc"},
	)
	if *merged.Price != p1 {
		t.Errorf("earlier partial's price must win, got %v", *merged.Price)
	}
	if merged.Title != "segundo" || merged.Description != "desc" {
		t.Error("later partial should fill gaps the earlier one left")
	}
}

func TestPageTextStripsScripts(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><script>var x=1;</script><p>visível</p><style>.a{}</style></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	text := PageText(doc)
	if text != "visível" {
		t.Errorf("PageText = %q, want %q", text, "visível")
	}
}
