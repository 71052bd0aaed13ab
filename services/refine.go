package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"imovel-scraper/llm"
	"imovel-scraper/models"
)

// Refiner improves an already-extracted raw record before promotion. It also
// double-checks the record really is a property listing, which catches
// aggregator pages the cascade mistook for listings.
type Refiner struct {
	client    *llm.Client
	textLimit int
	logger    *slog.Logger
}

// NewRefiner creates a Refiner.
func NewRefiner(client *llm.Client, textLimit int, logger *slog.Logger) *Refiner {
	return &Refiner{client: client, textLimit: textLimit, logger: logger}
}

// Available reports whether a model can serve refinement requests.
func (r *Refiner) Available() bool {
	return r.client != nil && r.client.Available()
}

// refinement is the response shape for a refine pass. Only presentation
// fields and gaps are touched; extracted numerics are never overwritten.
type refinement struct {
	Match        bool     `json:"match"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Neighborhood string   `json:"neighborhood"`
	City         string   `json:"city"`
	State        string   `json:"state"`
	Features     []string `json:"features"`
}

// Refine rewrites the record's title and description and fills location
// gaps. Returns ErrNoMatch when the model says the record is not a listing.
// Any other failure leaves the record exactly as it was and returns nil:
// refinement is best-effort and never blocks promotion.
func (r *Refiner) Refine(ctx context.Context, raw *models.RawProperty) error {
	if !r.Available() {
		return nil
	}

	reply, err := r.client.Complete(ctx, r.prompt(raw))
	if err != nil {
		r.logger.Warn("refinement skipped", "raw_id", raw.ID, "error", err)
		return nil
	}

	var parsed refinement
	if err := json.Unmarshal([]byte(llm.StripFences(reply)), &parsed); err != nil {
		r.logger.Warn("refinement reply unparsable, keeping original", "raw_id", raw.ID, "error", err)
		return nil
	}
	if !parsed.Match {
		return ErrNoMatch
	}

	if t := strings.TrimSpace(parsed.Title); t != "" {
		raw.Title = t
	}
	if d := strings.TrimSpace(parsed.Description); d != "" {
		raw.Description = d
	}
	if raw.Neighborhood == "" {
		raw.Neighborhood = strings.TrimSpace(parsed.Neighborhood)
	}
	if raw.City == "" {
		raw.City = strings.TrimSpace(parsed.City)
	}
	if raw.State == "" {
		raw.State = strings.TrimSpace(parsed.State)
	}
	if len(raw.Features) == 0 && len(parsed.Features) > 0 {
		raw.Features = parsed.Features
	}
	return nil
}

func (r *Refiner) prompt(raw *models.RawProperty) string {
	desc := raw.Description
	if r.textLimit > 0 && len(desc) > r.textLimit {
		desc = desc[:r.textLimit]
	}

	var b strings.Builder
	b.WriteString("Você revisa anúncios de imóveis antes da publicação.\n")
	b.WriteString("Se os dados abaixo NÃO descrevem um imóvel, responda {\"match\": false}.\n")
	b.WriteString("Caso contrário, responda SOMENTE com JSON neste formato:\n")
	b.WriteString(`{"match": true, "title": "", "description": "", "neighborhood": "", "city": "", "state": "", "features": []}` + "\n")
	b.WriteString("Melhore o título (curto, sem CAPS) e a descrição (português claro, sem repetição). Não invente números.\n\n")
	b.WriteString("Título: " + raw.Title + "\n")
	b.WriteString("Descrição: " + desc + "\n")
	if raw.Address != "" {
		b.WriteString("Endereço: " + raw.Address + "\n")
	}
	if raw.Neighborhood != "" {
		b.WriteString("Bairro: " + raw.Neighborhood + "\n")
	}
	b.WriteString("URL: " + raw.SourceURL + "\n")
	return b.String()
}
