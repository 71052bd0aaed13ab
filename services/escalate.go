package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"imovel-scraper/llm"
	"imovel-scraper/models"
)

// ErrNoMatch is returned when the model decides the page is not a property
// listing. Callers ignore the record instead of failing the batch.
var ErrNoMatch = errors.New("page is not a property listing")

// aiListing is the fixed response shape requested from the model. The prompt
// pins every field name so a parse failure means a malformed reply, not a
// schema drift.
type aiListing struct {
	Match        bool     `json:"match"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        *float64 `json:"price"`
	Area         *float64 `json:"area"`
	Bedrooms     *int     `json:"bedrooms"`
	Suites       *int     `json:"suites"`
	Bathrooms    *int     `json:"bathrooms"`
	Parking      *int     `json:"parking"`
	Address      string   `json:"address"`
	Neighborhood string   `json:"neighborhood"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Furnished    *bool    `json:"furnished"`
	Type         string   `json:"type"`
	Status       string   `json:"status"`
	Features     []string `json:"features"`
}

// Escalator extracts listing fields from page text with a language model.
// It is the last strategy in the cascade, used when the deterministic
// extractors came back thin.
type Escalator struct {
	client        *llm.Client
	neighborhoods []string
	textLimit     int
	logger        *slog.Logger
}

// NewEscalator creates an Escalator. neighborhoods is the allow-list handed
// to the model; textLimit caps the page text included in the prompt.
func NewEscalator(client *llm.Client, neighborhoods []string, textLimit int, logger *slog.Logger) *Escalator {
	return &Escalator{
		client:        client,
		neighborhoods: neighborhoods,
		textLimit:     textLimit,
		logger:        logger,
	}
}

// Available reports whether a model can serve escalation requests.
func (e *Escalator) Available() bool {
	return e.client != nil && e.client.Available()
}

// Extract asks the model for listing fields from the page text. Returns
// ErrNoMatch when the model reports the page is not a listing or the reply
// cannot be parsed; transport errors are returned as-is.
func (e *Escalator) Extract(ctx context.Context, pageText, sourceURL string) (*models.Partial, error) {
	if !e.Available() {
		return nil, llm.ErrNoProvider
	}

	reply, err := e.client.Complete(ctx, e.prompt(pageText, sourceURL))
	if err != nil {
		return nil, fmt.Errorf("escalation request: %w", err)
	}

	var parsed aiListing
	if err := json.Unmarshal([]byte(llm.StripFences(reply)), &parsed); err != nil {
		e.logger.Warn("unparsable model reply treated as no match", "url", sourceURL, "error", err)
		return nil, ErrNoMatch
	}
	if !parsed.Match || parsed.Title == "" {
		return nil, ErrNoMatch
	}

	return e.toPartial(parsed), nil
}

func (e *Escalator) prompt(pageText, sourceURL string) string {
	text := pageText
	if e.textLimit > 0 && len(text) > e.textLimit {
		text = text[:e.textLimit]
	}

	var b strings.Builder
	b.WriteString("Você é um extrator de anúncios imobiliários. Analise o texto da página abaixo.\n")
	b.WriteString("Responda SOMENTE com um objeto JSON, sem markdown, neste formato exato:\n")
	b.WriteString(`{"match": true, "title": "", "description": "", "price": 0, "area": 0, "bedrooms": 0, "suites": 0, "bathrooms": 0, "parking": 0, "address": "", "neighborhood": "", "city": "", "state": "", "furnished": false, "type": "", "status": "", "features": []}` + "\n")
	b.WriteString("Se a página NÃO for um anúncio de imóvel, responda {\"match\": false}.\n")
	b.WriteString("Campos desconhecidos devem ser null. Preço em reais, área em m².\n")
	b.WriteString("\"type\" deve ser um de: apartment, house, penthouse, commercial, land.\n")
	b.WriteString("\"status\" deve ser um de: available, construction.\n")
	if len(e.neighborhoods) > 0 {
		b.WriteString("\"neighborhood\" deve ser um de: ")
		b.WriteString(strings.Join(e.neighborhoods, ", "))
		b.WriteString(" (ou null se nenhum se aplicar).\n")
	}
	fmt.Fprintf(&b, "\nURL: %s\n\nTexto da página:\n%s\n", sourceURL, text)
	return b.String()
}

// toPartial converts a model reply into a Partial, applying the same
// plausibility bounds as the deterministic extractors.
func (e *Escalator) toPartial(in aiListing) *models.Partial {
	p := &models.Partial{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Address:      strings.TrimSpace(in.Address),
		Neighborhood: e.allowedNeighborhood(in.Neighborhood),
		City:         strings.TrimSpace(in.City),
		State:        strings.TrimSpace(in.State),
		Furnished:    in.Furnished,
		Features:     in.Features,
	}
	if in.Price != nil {
		p.Price = models.FloatPtr(*in.Price, models.ValidPrice)
	}
	if in.Area != nil {
		p.Area = models.FloatPtr(*in.Area, models.ValidArea)
	}
	if in.Bedrooms != nil {
		p.Bedrooms = models.IntPtr(*in.Bedrooms)
	}
	if in.Suites != nil {
		p.Suites = models.IntPtr(*in.Suites)
	}
	if in.Bathrooms != nil {
		p.Bathrooms = models.IntPtr(*in.Bathrooms)
	}
	if in.Parking != nil {
		p.Parking = models.IntPtr(*in.Parking)
	}
	switch models.PropertyType(in.Type) {
	case models.TypeApartment, models.TypeHouse, models.TypePenthouse, models.TypeCommercial, models.TypeLand:
		p.Type = models.PropertyType(in.Type)
	}
	switch models.PropertyStatus(in.Status) {
	case models.StatusAvailable, models.StatusConstruction:
		p.Status = models.PropertyStatus(in.Status)
	}
	return p
}

// allowedNeighborhood drops model answers outside the configured allow-list.
func (e *Escalator) allowedNeighborhood(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || len(e.neighborhoods) == 0 {
		return name
	}
	for _, n := range e.neighborhoods {
		if strings.EqualFold(n, name) {
			return n
		}
	}
	return ""
}
