package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"imovel-scraper/config"
	"imovel-scraper/fetch"
	"imovel-scraper/llm"
	"imovel-scraper/models"
	"imovel-scraper/services"
	"imovel-scraper/storage"
	"imovel-scraper/utils"
)

type fakeFetcher struct {
	pages map[string]string
	fail  map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Result, error) {
	f.calls = append(f.calls, url)
	if f.fail[url] {
		return nil, errors.New("connection refused")
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return &fetch.Result{HTML: html, StatusCode: 200, FinalURL: url}, nil
}

func (f *fakeFetcher) Close() error { return nil }

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Name() string    { return "fake" }
func (f *fakeProvider) Available() bool { return true }

func (f *fakeProvider) Complete(_ context.Context, _ string) (string, error) {
	return f.reply, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		LinkBatchSize:   10,
		MaxLinksPerPage: 10,
		MaxImages:       5,
		AITextLimit:     12000,
		RefineWithAI:    true,
	}
}

func testRunner(store *storage.MemoryStore, fetcher fetch.Fetcher, deps Deps) *Runner {
	logger := testLogger()
	deps.Links = store
	deps.Raws = store
	deps.Static = fetcher
	deps.Pacer = utils.NopPacer{}
	deps.Promoter = services.NewPromoter(store, store, logger)
	deps.Logger = logger
	return NewRunner(testConfig(), deps)
}

func listingPage(title, price string) string {
	return `<html><head><title>` + title + `</title></head><body><h1>` + title +
		`</h1><p>Apartamento à venda por ` + price + ` no bairro Centro, 2 quartos.</p></body></html>`
}

const aggregatorHTML = `<html><body>
<a href="https://imoveis.example.com/a">A</a>
<a href="https://imoveis.example.com/b">B</a>
<a href="https://imoveis.example.com/c">C</a>
</body></html>`

func seedOne(t *testing.T, store *storage.MemoryStore, url string) *models.SourceLink {
	t.Helper()
	if err := store.Seed(context.Background(), []*models.SourceLink{{URL: url, Category: "aggregator"}}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return store.Links()[0]
}

func TestRunCrawlsAggregator(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://agg.example.com/perfil":  aggregatorHTML,
		"https://imoveis.example.com/a":   listingPage("Apto Centro 101", "R$ 250.000,00"),
		"https://imoveis.example.com/b":   listingPage("Casa Jardim", "R$ 480.000,00"),
		"https://imoveis.example.com/c":   listingPage("Cobertura Vista Mar", "R$ 1.200.000,00"),
	}}

	summary, err := testRunner(store, fetcher, Deps{}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.LinksProcessed != 1 || summary.RawsInserted != 3 {
		t.Errorf("summary = %+v, want 1 link / 3 raws", summary)
	}

	raws := store.Raws()
	if len(raws) != 3 {
		t.Fatalf("stored %d raws, want 3", len(raws))
	}
	if raws[0].Title != "Apto Centro 101" {
		t.Errorf("raws[0].Title = %q", raws[0].Title)
	}
	if raws[0].Price == nil || *raws[0].Price != 250000 {
		t.Errorf("raws[0].Price = %v, want 250000", raws[0].Price)
	}
	if raws[0].Status != models.RawPending || !raws[0].NeedsProcessing {
		t.Errorf("raw not queued for processing: %+v", raws[0])
	}

	link := store.Links()[0]
	if link.Status != models.LinkCompleted || link.PropertiesFound != 3 {
		t.Errorf("link = status %s found %d, want completed/3", link.Status, link.PropertiesFound)
	}
	if link.LastCrawledAt == nil {
		t.Error("LastCrawledAt not set")
	}
}

func TestRunCandidateFailureDoesNotFailLink(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://agg.example.com/perfil": aggregatorHTML,
			"https://imoveis.example.com/a":  listingPage("Apto A", "R$ 250.000,00"),
			"https://imoveis.example.com/c":  listingPage("Apto C", "R$ 300.000,00"),
		},
		fail: map[string]bool{"https://imoveis.example.com/b": true},
	}

	summary, err := testRunner(store, fetcher, Deps{}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RawsInserted != 2 {
		t.Errorf("RawsInserted = %d, want 2", summary.RawsInserted)
	}

	link := store.Links()[0]
	if link.Status != models.LinkCompleted || link.PropertiesFound != 2 {
		t.Errorf("link = status %s found %d, want completed/2", link.Status, link.PropertiesFound)
	}
}

func TestRunLinkFetchFailureMarksError(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	fetcher := &fakeFetcher{fail: map[string]bool{"https://agg.example.com/perfil": true}}

	summary, err := testRunner(store, fetcher, Deps{}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run must not propagate per-link failures: %v", err)
	}
	if summary.LinksFailed != 1 || summary.LinksProcessed != 0 {
		t.Errorf("summary = %+v", summary)
	}

	link := store.Links()[0]
	if link.Status != models.LinkError || link.LastError == "" {
		t.Errorf("link = status %s error %q, want error status with message", link.Status, link.LastError)
	}
}

func TestRunEscalatesThinPages(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	// The candidate page has no title and no extractable fields, so the
	// cascade alone produces nothing.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://agg.example.com/perfil": `<html><body><a href="https://imoveis.example.com/a">A</a></body></html>`,
		"https://imoveis.example.com/a":  `<html><body><div>Oportunidade única, me chame no direct!</div></body></html>`,
	}}

	reply := `{"match": true, "title": "Apartamento 2 quartos na Praia do Morro", "price": 310000, "bedrooms": 2}`
	escalator := services.NewEscalator(llm.NewClient(&fakeProvider{reply: reply}), nil, 12000, testLogger())

	summary, err := testRunner(store, fetcher, Deps{Escalator: escalator}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RawsInserted != 1 {
		t.Fatalf("RawsInserted = %d, want 1", summary.RawsInserted)
	}

	raw := store.Raws()[0]
	if raw.Origin != models.OriginAI {
		t.Errorf("Origin = %s, want ai", raw.Origin)
	}
	if raw.Title != "Apartamento 2 quartos na Praia do Morro" {
		t.Errorf("Title = %q", raw.Title)
	}
	if raw.Price == nil || *raw.Price != 310000 {
		t.Errorf("Price = %v, want 310000", raw.Price)
	}
}

func TestRunEscalationNoMatchSkipsPage(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://agg.example.com/perfil": `<html><body><a href="https://imoveis.example.com/a">A</a></body></html>`,
		"https://imoveis.example.com/a":  `<html><body><div>Cardápio do restaurante</div></body></html>`,
	}}

	escalator := services.NewEscalator(llm.NewClient(&fakeProvider{reply: `{"match": false}`}), nil, 0, testLogger())

	summary, err := testRunner(store, fetcher, Deps{Escalator: escalator}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RawsInserted != 0 {
		t.Errorf("RawsInserted = %d, want 0", summary.RawsInserted)
	}
	if link := store.Links()[0]; link.Status != models.LinkCompleted {
		t.Errorf("link status = %s, want completed", link.Status)
	}
}

func TestRunEscalationNoMatchKeepsTitledPageIgnored(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	// The page has a title but no price or area, so it escalates; the model
	// confirms it is not a listing.
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://agg.example.com/perfil": `<html><body><a href="https://imoveis.example.com/a">A</a></body></html>`,
		"https://imoveis.example.com/a":  `<html><body><h1>Sobre nossa imobiliária</h1><p>Atendemos Guarapari desde 1998.</p></body></html>`,
	}}

	escalator := services.NewEscalator(llm.NewClient(&fakeProvider{reply: `{"match": false}`}), nil, 0, testLogger())

	summary, err := testRunner(store, fetcher, Deps{Escalator: escalator}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RawsInserted != 1 {
		t.Fatalf("RawsInserted = %d, want 1 (ignored record is still stored)", summary.RawsInserted)
	}

	raws := store.Raws()
	if len(raws) != 1 {
		t.Fatalf("stored %d raws, want 1", len(raws))
	}
	if raws[0].Status != models.RawIgnored || raws[0].NeedsProcessing {
		t.Errorf("raw = status %s needs %v, want ignored/false", raws[0].Status, raws[0].NeedsProcessing)
	}
	if raws[0].Title != "Sobre nossa imobiliária" {
		t.Errorf("Title = %q", raws[0].Title)
	}

	// A confirmed non-listing does not count as a found property.
	if link := store.Links()[0]; link.Status != models.LinkCompleted || link.PropertiesFound != 0 {
		t.Errorf("link = %s/%d, want completed/0", link.Status, link.PropertiesFound)
	}
	if batch, _ := store.PendingBatch(context.Background(), 10); len(batch) != 0 {
		t.Errorf("ignored record showed up in the pending batch: %d", len(batch))
	}
}

const driveTableHTML = `<html><body><div class="viewer">
<p>Residencial Costa Azul — Tabela de vendas</p>
<pre>
101 A 65,5 2 quartos 1 250.000,00 230.000,00
201 B 110 3 quartos 2 420.000,00
</pre>
</div></body></html>`

func TestRunDriveDocumentLink(t *testing.T) {
	store := storage.NewMemoryStore()
	driveURL := "https://drive.google.com/file/d/tabela/view"
	seedOne(t, store, driveURL)

	fetcher := &fakeFetcher{pages: map[string]string{driveURL: driveTableHTML}}

	summary, err := testRunner(store, fetcher, Deps{}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RawsInserted != 2 {
		t.Fatalf("RawsInserted = %d, want 2 (one per table row)", summary.RawsInserted)
	}

	for _, raw := range store.Raws() {
		if raw.Origin != models.OriginDocument {
			t.Errorf("Origin = %s, want document", raw.Origin)
		}
		if len(raw.Documents) == 0 || raw.Documents[0] != driveURL {
			t.Errorf("Documents = %v, want source doc URL", raw.Documents)
		}
	}

	if link := store.Links()[0]; link.PropertiesFound != 2 {
		t.Errorf("PropertiesFound = %d, want 2", link.PropertiesFound)
	}
}

func TestRunDiscoveredDriveCandidate(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	driveURL := "https://drive.google.com/file/d/tabela/view"
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://agg.example.com/perfil": `<html><body>
<a href="https://imoveis.example.com/a">A</a>
<a href="` + driveURL + `">Tabela de unidades</a>
</body></html>`,
		"https://imoveis.example.com/a": listingPage("Apto Centro 101", "R$ 250.000,00"),
		driveURL:                        driveTableHTML,
	}}

	summary, err := testRunner(store, fetcher, Deps{}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// One cascade record plus one per unit row of the linked table.
	if summary.RawsInserted != 3 {
		t.Fatalf("RawsInserted = %d, want 3", summary.RawsInserted)
	}

	var docRecords int
	for _, raw := range store.Raws() {
		if raw.Origin == models.OriginDocument {
			docRecords++
			if len(raw.Documents) == 0 || raw.Documents[0] != driveURL {
				t.Errorf("Documents = %v, want source doc URL", raw.Documents)
			}
		}
	}
	if docRecords != 2 {
		t.Errorf("got %d document records, want 2 (one per table row)", docRecords)
	}

	if link := store.Links()[0]; link.PropertiesFound != 3 {
		t.Errorf("PropertiesFound = %d, want 3", link.PropertiesFound)
	}
}

func TestRunNothingPending(t *testing.T) {
	store := storage.NewMemoryStore()
	summary, err := testRunner(store, &fakeFetcher{}, Deps{}).Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run on empty table: %v", err)
	}
	if summary.LinksProcessed != 0 || summary.RawsInserted != 0 {
		t.Errorf("summary = %+v, want zero work", summary)
	}
}

func TestRunSeedsWhenEmpty(t *testing.T) {
	store := storage.NewMemoryStore()
	runner := testRunner(store, &fakeFetcher{}, Deps{})
	runner.cfg.SeedIfEmpty = true

	if _, err := runner.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := len(store.Links()), len(DefaultSeeds()); got != want {
		t.Errorf("seeded %d links, want %d", got, want)
	}
}

func TestProcessPromotesPendingRaws(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	price := 250000.0
	for _, id := range []string{"r1", "r2", "r3"} {
		raw := &models.RawProperty{
			ID: id, Title: "Apartamento " + id, Price: &price,
			Status: models.RawPending, NeedsProcessing: true,
		}
		if err := store.InsertRaw(ctx, raw); err != nil {
			t.Fatalf("InsertRaw: %v", err)
		}
	}

	runner := testRunner(store, &fakeFetcher{}, Deps{})
	summary, err := runner.Process(ctx, 0)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Processed != 3 || summary.Promoted != 3 || summary.Errors != 0 {
		t.Errorf("summary = %+v, want 3 promoted", summary)
	}

	props := store.Properties()
	if len(props) != 3 {
		t.Fatalf("got %d properties, want 3", len(props))
	}
	want := []string{"IMV000001", "IMV000002", "IMV000003"}
	for i, p := range props {
		if p.Code != want[i] {
			t.Errorf("props[%d].Code = %q, want %q", i, p.Code, want[i])
		}
	}

	// Second pass finds nothing to do.
	again, err := runner.Process(ctx, 0)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if again.Processed != 0 {
		t.Errorf("second pass processed %d records, want 0", again.Processed)
	}
}

func TestCrawlThenProcessEndToEnd(t *testing.T) {
	store := storage.NewMemoryStore()
	seedOne(t, store, "https://agg.example.com/perfil")

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://agg.example.com/perfil": aggregatorHTML,
		"https://imoveis.example.com/a":  listingPage("Apto Centro 101", "R$ 250.000,00"),
		"https://imoveis.example.com/b":  listingPage("Casa Jardim", "R$ 480.000,00"),
		"https://imoveis.example.com/c":  listingPage("Cobertura Vista Mar", "R$ 1.200.000,00"),
	}}
	runner := testRunner(store, fetcher, Deps{})
	ctx := context.Background()

	if _, err := runner.Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	summary, err := runner.Process(ctx, 0)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Promoted != 3 {
		t.Fatalf("Promoted = %d, want 3", summary.Promoted)
	}

	props := store.Properties()
	want := []string{"IMV000001", "IMV000002", "IMV000003"}
	for i, p := range props {
		if p.Code != want[i] {
			t.Errorf("props[%d].Code = %q, want %q", i, p.Code, want[i])
		}
	}

	for _, raw := range store.Raws() {
		if raw.Status != models.RawCompleted || raw.PropertyCode == "" {
			t.Errorf("raw %s = status %s code %q, want completed with code", raw.ID, raw.Status, raw.PropertyCode)
		}
	}
	if link := store.Links()[0]; link.Status != models.LinkCompleted || link.PropertiesFound != 3 {
		t.Errorf("link = %s/%d, want completed/3", link.Status, link.PropertiesFound)
	}
}

func TestProcessIgnoresNonListings(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	raw := &models.RawProperty{
		ID: "r1", Title: "Sorteio de prêmios",
		Status: models.RawPending, NeedsProcessing: true,
	}
	if err := store.InsertRaw(ctx, raw); err != nil {
		t.Fatalf("InsertRaw: %v", err)
	}

	refiner := services.NewRefiner(llm.NewClient(&fakeProvider{reply: `{"match": false}`}), 0, testLogger())
	summary, err := testRunner(store, &fakeFetcher{}, Deps{Refiner: refiner}).Process(ctx, 0)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Ignored != 1 || summary.Promoted != 0 {
		t.Errorf("summary = %+v, want 1 ignored", summary)
	}

	stored, _ := store.Raw("r1")
	if stored.Status != models.RawIgnored || stored.NeedsProcessing {
		t.Errorf("raw = status %s needs %v, want ignored/false", stored.Status, stored.NeedsProcessing)
	}
	if len(store.Properties()) != 0 {
		t.Error("ignored record must not be promoted")
	}
}

func TestProcessPromotesWhenRefinerFails(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	raw := &models.RawProperty{
		ID: "r1", Title: "Casa na Enseada Azul",
		Status: models.RawPending, NeedsProcessing: true,
	}
	if err := store.InsertRaw(ctx, raw); err != nil {
		t.Fatalf("InsertRaw: %v", err)
	}

	refiner := services.NewRefiner(llm.NewClient(&fakeProvider{err: errors.New("quota")}), 0, testLogger())
	summary, err := testRunner(store, &fakeFetcher{}, Deps{Refiner: refiner}).Process(ctx, 0)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if summary.Promoted != 1 {
		t.Errorf("summary = %+v, want promotion despite refiner failure", summary)
	}

	stored, _ := store.Raw("r1")
	if stored.Title != "Casa na Enseada Azul" {
		t.Errorf("title changed on refiner failure: %q", stored.Title)
	}
}
