// Package pipeline orchestrates the crawl and processing stages: it walks
// source links, fans out to candidate listing pages, runs the extraction
// cascade and drives raw records through refinement and promotion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"imovel-scraper/config"
	"imovel-scraper/extract"
	"imovel-scraper/fetch"
	"imovel-scraper/models"
	"imovel-scraper/services"
	"imovel-scraper/storage"
	"imovel-scraper/utils"
)

// Deps collects the runner's collaborators. Browser, Escalator and Refiner
// are optional; the runner degrades to static fetching and deterministic
// extraction when they are absent.
type Deps struct {
	Links     storage.LinkStore
	Raws      storage.RawStore
	Static    fetch.Fetcher
	Browser   fetch.Fetcher
	Pacer     utils.Pacer
	Escalator *services.Escalator
	Refiner   *services.Refiner
	Promoter  *services.Promoter
	Logger    *slog.Logger
}

// Summary counts the outcomes of one run. Crawl and process stages fill
// disjoint fields.
type Summary struct {
	LinksProcessed int
	LinksFailed    int
	RawsInserted   int

	Processed int
	Promoted  int
	Ignored   int
	Errors    int
}

// Runner executes pipeline stages sequentially. Per-URL failures are logged
// and counted but never abort a batch.
type Runner struct {
	cfg       *config.Config
	links     storage.LinkStore
	raws      storage.RawStore
	static    fetch.Fetcher
	browser   fetch.Fetcher
	pacer     utils.Pacer
	cascade   *extract.Cascade
	escalator *services.Escalator
	refiner   *services.Refiner
	promoter  *services.Promoter
	logger    *slog.Logger
}

// NewRunner wires a Runner from its dependencies.
func NewRunner(cfg *config.Config, deps Deps) *Runner {
	return &Runner{
		cfg:       cfg,
		links:     deps.Links,
		raws:      deps.Raws,
		static:    deps.Static,
		browser:   deps.Browser,
		pacer:     deps.Pacer,
		cascade:   &extract.Cascade{MaxImages: cfg.MaxImages},
		escalator: deps.Escalator,
		refiner:   deps.Refiner,
		promoter:  deps.Promoter,
		logger:    deps.Logger,
	}
}

// Run executes one crawl pass: claim a batch of pending links and walk each
// one sequentially. limit <= 0 uses the configured batch size.
func (r *Runner) Run(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = r.cfg.LinkBatchSize
	}
	summary := &Summary{}

	if err := r.prepareLinks(ctx); err != nil {
		return nil, err
	}

	batch, err := r.links.NextBatch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch link batch: %w", err)
	}
	if len(batch) == 0 {
		r.logger.Info("no pending links, nothing to crawl")
		return summary, nil
	}

	// Candidate dedup is scoped to the run so two aggregators pointing at
	// the same listing produce one record.
	seen := utils.NewURLSet()

	for _, link := range batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.crawlLink(ctx, link, seen, summary)
	}

	r.logger.Info("crawl finished",
		"links", summary.LinksProcessed,
		"failed", summary.LinksFailed,
		"raws", summary.RawsInserted)
	return summary, nil
}

// prepareLinks seeds the default sources when the table is empty and
// optionally resets a fully crawled table for a fresh pass.
func (r *Runner) prepareLinks(ctx context.Context) error {
	pending, err := r.links.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending links: %w", err)
	}
	if pending > 0 {
		return nil
	}

	if r.cfg.SeedIfEmpty {
		if err := r.links.Seed(ctx, DefaultSeeds()); err != nil {
			return fmt.Errorf("seed links: %w", err)
		}
		if pending, err = r.links.CountPending(ctx); err != nil {
			return fmt.Errorf("count pending links: %w", err)
		}
		if pending > 0 {
			r.logger.Info("seeded default source links", "pending", pending)
			return nil
		}
	}

	if r.cfg.ResetIfDone {
		if err := r.links.ResetAll(ctx); err != nil {
			return fmt.Errorf("reset links: %w", err)
		}
		r.logger.Info("all links crawled, reset for a new pass")
	}
	return nil
}

func (r *Runner) crawlLink(ctx context.Context, link *models.SourceLink, seen *utils.URLSet, summary *Summary) {
	log := r.logger.With("link_id", link.ID, "url", link.URL)

	if err := r.links.MarkStatus(ctx, link.ID, models.LinkProcessing, "", 0); err != nil {
		log.Error("mark link processing", "error", err)
		summary.LinksFailed++
		return
	}

	fetcher := r.fetcherFor(link)
	res, err := fetcher.Fetch(ctx, link.URL)
	if err != nil {
		log.Warn("link fetch failed", "error", err)
		r.markLink(ctx, link.ID, models.LinkError, err.Error(), 0)
		summary.LinksFailed++
		return
	}

	var found int
	if extract.IsDriveURL(link.URL) {
		found = r.storeRaws(ctx, extract.Document(res.HTML, link.URL, link.ID, r.cfg.MaxImages), log)
		summary.RawsInserted += found
	} else {
		found = r.crawlCandidates(ctx, link, res, seen, fetcher, summary, log)
	}

	summary.LinksProcessed++
	r.markLink(ctx, link.ID, models.LinkCompleted, "", found)
	log.Info("link crawled", "properties_found", found)
}

// crawlCandidates extracts listing candidates from an aggregator page and
// scrapes each one. A page with no outgoing candidates is treated as a
// direct listing and scraped itself. Returns the number of promotable
// records; ignored records are stored but not counted.
func (r *Runner) crawlCandidates(ctx context.Context, link *models.SourceLink, res *fetch.Result, seen *utils.URLSet, fetcher fetch.Fetcher, summary *Summary, log *slog.Logger) int {
	candidates := extract.Links(res.HTML, res.FinalURL, seen, r.cfg.MaxLinksPerPage)
	if len(candidates) == 0 {
		raw := r.extractOne(ctx, res.HTML, res.FinalURL, link.ID, log)
		return r.storeOne(ctx, raw, summary, log)
	}

	var found int
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		r.pacer.Wait(candidate)

		page, err := fetcher.Fetch(ctx, candidate)
		if err != nil {
			log.Warn("candidate fetch failed", "candidate", candidate, "error", err)
			continue
		}

		// A discovered document link gets the tabular path, same as a
		// seeded one.
		if extract.IsDriveURL(candidate) {
			n := r.storeRaws(ctx, extract.Document(page.HTML, candidate, link.ID, r.cfg.MaxImages), log)
			summary.RawsInserted += n
			found += n
			continue
		}

		raw := r.extractOne(ctx, page.HTML, page.FinalURL, link.ID, log)
		found += r.storeOne(ctx, raw, summary, log)
	}
	return found
}

// storeOne persists a single extracted record. Returns 1 only for records
// that still await promotion, so confirmed non-listings are kept for audit
// without inflating the link's listing count.
func (r *Runner) storeOne(ctx context.Context, raw *models.RawProperty, summary *Summary, log *slog.Logger) int {
	if raw == nil {
		return 0
	}
	if r.storeRaws(ctx, []*models.RawProperty{raw}, log) == 0 {
		return 0
	}
	summary.RawsInserted++
	if raw.Status == models.RawIgnored {
		return 0
	}
	return 1
}

// extractOne runs the cascade over a candidate page, escalating to the model
// when the deterministic strategies came back thin. Returns nil when the
// page yields no usable record.
func (r *Runner) extractOne(ctx context.Context, html, pageURL string, linkID int64, log *slog.Logger) *models.RawProperty {
	raw := r.cascade.Run(html, pageURL, linkID)
	if !r.needsEscalation(raw) {
		return raw
	}
	if r.escalator == nil || !r.escalator.Available() {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return raw
	}

	partial, err := r.escalator.Extract(ctx, extract.PageText(doc), pageURL)
	switch {
	case errors.Is(err, services.ErrNoMatch):
		if raw == nil {
			log.Debug("escalation: not a listing", "candidate", pageURL)
			return nil
		}
		// The cascade found a title but the model says this is not a
		// listing: keep the record as a confirmed non-listing.
		raw.Status = models.RawIgnored
		raw.NeedsProcessing = false
		log.Debug("escalation: titled page confirmed non-listing", "candidate", pageURL)
		return raw
	case err != nil:
		log.Warn("escalation failed, keeping cascade result", "candidate", pageURL, "error", err)
		return raw
	}

	if raw == nil {
		return newRawFromPartial(partial, pageURL, linkID)
	}
	fillFromPartial(raw, partial)
	return raw
}

// needsEscalation reports whether a cascade result is too thin to publish
// without help: no record at all, or neither price nor area extracted.
func (r *Runner) needsEscalation(raw *models.RawProperty) bool {
	return raw == nil || (raw.Price == nil && raw.Area == nil)
}

func (r *Runner) storeRaws(ctx context.Context, raws []*models.RawProperty, log *slog.Logger) int {
	var stored int
	for _, raw := range raws {
		if err := r.raws.InsertRaw(ctx, raw); err != nil {
			log.Warn("insert raw record", "raw_id", raw.ID, "error", err)
			continue
		}
		stored++
	}
	return stored
}

// Process executes one processing pass over pending raw records: refine,
// then promote or ignore. limit <= 0 uses the configured batch size.
func (r *Runner) Process(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = r.cfg.LinkBatchSize
	}
	summary := &Summary{}

	batch, err := r.raws.PendingBatch(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch raw batch: %w", err)
	}
	if len(batch) == 0 {
		r.logger.Info("no pending raw records, nothing to process")
		return summary, nil
	}

	for _, raw := range batch {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r.processRaw(ctx, raw, summary)
	}

	r.logger.Info("processing finished",
		"processed", summary.Processed,
		"promoted", summary.Promoted,
		"ignored", summary.Ignored,
		"errors", summary.Errors)
	return summary, nil
}

func (r *Runner) processRaw(ctx context.Context, raw *models.RawProperty, summary *Summary) {
	log := r.logger.With("raw_id", raw.ID, "title", raw.Title)
	summary.Processed++

	if err := r.raws.MarkProcessing(ctx, raw.ID); err != nil {
		log.Error("mark raw processing", "error", err)
		summary.Errors++
		return
	}

	if r.cfg.RefineWithAI && r.refiner != nil {
		if err := r.refiner.Refine(ctx, raw); errors.Is(err, services.ErrNoMatch) {
			if err := r.raws.Ignore(ctx, raw.ID); err != nil {
				log.Error("mark raw ignored", "error", err)
			}
			summary.Ignored++
			log.Info("raw record ignored, not a listing")
			return
		}
	}

	code, err := r.promoter.Promote(ctx, raw)
	if err != nil {
		log.Warn("promotion failed", "error", err)
		if err := r.raws.Fail(ctx, raw.ID, err.Error()); err != nil {
			log.Error("mark raw failed", "error", err)
		}
		summary.Errors++
		return
	}

	summary.Promoted++
	log.Info("raw record promoted", "code", code)
}

func (r *Runner) fetcherFor(link *models.SourceLink) fetch.Fetcher {
	if link.UseBrowser && r.browser != nil {
		return r.browser
	}
	return r.static
}

func (r *Runner) markLink(ctx context.Context, id int64, status models.LinkStatus, errMsg string, found int) {
	if err := r.links.MarkStatus(ctx, id, status, errMsg, found); err != nil {
		r.logger.Error("mark link status", "link_id", id, "status", status, "error", err)
	}
}

// newRawFromPartial builds a raw record entirely from a model extraction.
func newRawFromPartial(p *models.Partial, pageURL string, linkID int64) *models.RawProperty {
	now := time.Now()
	return &models.RawProperty{
		ID:              uuid.NewString(),
		LinkID:          linkID,
		SourceURL:       pageURL,
		Title:           p.Title,
		Description:     p.Description,
		Price:           p.Price,
		Area:            p.Area,
		Bedrooms:        p.Bedrooms,
		Suites:          p.Suites,
		Bathrooms:       p.Bathrooms,
		Parking:         p.Parking,
		Address:         p.Address,
		Neighborhood:    p.Neighborhood,
		City:            p.City,
		State:           p.State,
		Furnished:       p.Furnished,
		Features:        p.Features,
		Images:          p.Images,
		Origin:          models.OriginAI,
		Status:          models.RawPending,
		NeedsProcessing: true,
		ScrapedAt:       now,
		UpdatedAt:       now,
	}
}

// fillFromPartial fills only the gaps of an existing record; deterministic
// extractions always win over the model.
func fillFromPartial(raw *models.RawProperty, p *models.Partial) {
	if raw.Description == "" {
		raw.Description = p.Description
	}
	if raw.Price == nil {
		raw.Price = p.Price
	}
	if raw.Area == nil {
		raw.Area = p.Area
	}
	if raw.Bedrooms == nil {
		raw.Bedrooms = p.Bedrooms
	}
	if raw.Suites == nil {
		raw.Suites = p.Suites
	}
	if raw.Bathrooms == nil {
		raw.Bathrooms = p.Bathrooms
	}
	if raw.Parking == nil {
		raw.Parking = p.Parking
	}
	if raw.Address == "" {
		raw.Address = p.Address
	}
	if raw.Neighborhood == "" {
		raw.Neighborhood = p.Neighborhood
	}
	if raw.City == "" {
		raw.City = p.City
	}
	if raw.State == "" {
		raw.State = p.State
	}
	if raw.Furnished == nil {
		raw.Furnished = p.Furnished
	}
	if len(raw.Features) == 0 {
		raw.Features = p.Features
	}
}
