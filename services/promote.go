package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"imovel-scraper/extract"
	"imovel-scraper/models"
	"imovel-scraper/storage"
)

// Promoter turns a processed raw record into a canonical listing with an
// allocated code. Promotion is at-most-once: a record that already carries a
// code is returned unchanged.
type Promoter struct {
	props  storage.PropertyStore
	raws   storage.RawStore
	logger *slog.Logger
}

// NewPromoter creates a Promoter.
func NewPromoter(props storage.PropertyStore, raws storage.RawStore, logger *slog.Logger) *Promoter {
	return &Promoter{props: props, raws: raws, logger: logger}
}

// Promote allocates a code, inserts the canonical listing and marks the raw
// record completed. Re-running on an already promoted record is a no-op that
// returns the existing code.
func (p *Promoter) Promote(ctx context.Context, raw *models.RawProperty) (string, error) {
	if raw.PropertyCode != "" || raw.Status == models.RawCompleted {
		p.logger.Debug("already promoted", "raw_id", raw.ID, "code", raw.PropertyCode)
		return raw.PropertyCode, nil
	}

	// The canonical store is the source of truth: a listing may exist even
	// when the raw record missed the completion write (e.g. a crash between
	// the two). Re-runs repair the raw record instead of inserting again.
	existing, err := p.props.CodeForRaw(ctx, raw.ID)
	if err != nil {
		return "", fmt.Errorf("check existing promotion: %w", err)
	}
	if existing != "" {
		if err := p.raws.Complete(ctx, raw.ID, existing); err != nil {
			return "", fmt.Errorf("complete raw %s: %w", raw.ID, err)
		}
		raw.PropertyCode = existing
		raw.Status = models.RawCompleted
		p.logger.Info("promotion repaired", "code", existing, "raw_id", raw.ID)
		return existing, nil
	}

	code, err := p.props.NextCode(ctx)
	if err != nil {
		return "", fmt.Errorf("allocate code: %w", err)
	}

	if err := p.props.InsertProperty(ctx, p.build(raw, code)); err != nil {
		return "", fmt.Errorf("insert property %s: %w", code, err)
	}

	if err := p.raws.Complete(ctx, raw.ID, code); err != nil {
		return "", fmt.Errorf("complete raw %s: %w", raw.ID, err)
	}
	raw.PropertyCode = code
	raw.Status = models.RawCompleted

	p.logger.Info("property promoted", "code", code, "raw_id", raw.ID, "title", raw.Title)
	return code, nil
}

// build assembles the canonical record. Missing numerics become zero here:
// the raw record keeps nil as "unknown", the published listing does not.
func (p *Promoter) build(raw *models.RawProperty, code string) *models.Property {
	text := raw.Title + " " + raw.Description
	now := time.Now()

	prop := &models.Property{
		Code:        code,
		Title:       raw.Title,
		Description: raw.Description,
		Address: models.Address{
			Street:       raw.Address,
			Neighborhood: raw.Neighborhood,
			City:         raw.City,
			State:        raw.State,
			Country:      "Brasil",
		},
		Type:      extract.PropertyTypeOf(text),
		Status:    extract.StatusOf(text),
		Features:  raw.Features,
		Images:    raw.Images,
		RawID:     raw.ID,
		Source:    raw.SourceURL,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if raw.Price != nil {
		prop.Price = *raw.Price
	}
	if raw.Area != nil {
		prop.Area = *raw.Area
	}
	if raw.Bedrooms != nil {
		prop.Bedrooms = *raw.Bedrooms
	}
	if raw.Suites != nil {
		prop.Suites = *raw.Suites
	}
	if raw.Bathrooms != nil {
		prop.Bathrooms = *raw.Bathrooms
	}
	if raw.Parking != nil {
		prop.Parking = *raw.Parking
	}
	if raw.Furnished != nil {
		prop.Furnished = *raw.Furnished
	}
	return prop
}
