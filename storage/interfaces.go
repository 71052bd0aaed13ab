package storage

import (
	"context"
	"errors"

	"imovel-scraper/models"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("storage: not found")

// LinkStore manages source links. Every status transition is persisted
// immediately and independently of the rest of the pipeline, so partial
// failures stay observable per link.
type LinkStore interface {
	// NextBatch returns up to limit links with status pending.
	NextBatch(ctx context.Context, limit int) ([]*models.SourceLink, error)

	// MarkStatus persists a status transition. found is the number of
	// listings the crawl produced; errMsg is stored on error status.
	MarkStatus(ctx context.Context, id int64, status models.LinkStatus, errMsg string, found int) error

	// Seed inserts the given links, skipping URLs that already exist.
	Seed(ctx context.Context, links []*models.SourceLink) error

	// ResetAll sets every link back to pending for a new crawl pass.
	ResetAll(ctx context.Context) error

	// CountPending reports how many links still await processing.
	CountPending(ctx context.Context) (int, error)
}

// RawStore manages raw extraction records and their processing state
// machine: pending → processing → {completed, ignored, error}.
type RawStore interface {
	InsertRaw(ctx context.Context, raw *models.RawProperty) error

	// PendingBatch returns up to limit records awaiting promotion.
	PendingBatch(ctx context.Context, limit int) ([]*models.RawProperty, error)

	// MarkProcessing is set immediately before refinement work begins, so a
	// crash leaves a visible stuck marker instead of silent loss.
	MarkProcessing(ctx context.Context, id string) error

	// Complete stores the promoted canonical code and clears
	// needsProcessing, guaranteeing at-most-once promotion.
	Complete(ctx context.Context, id, propertyCode string) error

	// Ignore marks content confirmed not to be a qualifying listing.
	Ignore(ctx context.Context, id string) error

	// Fail records the message and keeps needsProcessing true so the record
	// stays eligible for a later manual re-run.
	Fail(ctx context.Context, id, errMsg string) error
}

// PropertyStore persists canonical listings and allocates their codes.
type PropertyStore interface {
	InsertProperty(ctx context.Context, p *models.Property) error

	// CodeForRaw returns the code of the canonical listing created from the
	// given raw record, or "" when none exists. Promotion checks this before
	// allocating a code so a raw record never produces two listings.
	CodeForRaw(ctx context.Context, rawID string) (string, error)

	// NextCode allocates the next IMV code. Allocation is serialized across
	// concurrent writers.
	NextCode(ctx context.Context) (string, error)
}
