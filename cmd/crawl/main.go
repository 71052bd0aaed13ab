package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"imovel-scraper/config"
	"imovel-scraper/fetch"
	"imovel-scraper/llm"
	"imovel-scraper/pipeline"
	"imovel-scraper/services"
	"imovel-scraper/storage"
	"imovel-scraper/utils"
)

func main() {
	limit := flag.Int("limit", 0, "max links to crawl this run (0 = configured batch size)")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()
	ctx := context.Background()

	logger.Info("crawl starting",
		"batch", cfg.LinkBatchSize,
		"links_per_page", cfg.MaxLinksPerPage,
		"rate_ms", cfg.RateIntervalMs)

	store, err := storage.NewStore(cfg.DSN())
	if err != nil {
		logger.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	static := fetch.NewStatic(timeout, cfg.MaxRetries, logger)
	defer static.Close()

	// The browser is optional: links flagged use_browser fall back to the
	// static fetcher when Chrome is not installed.
	var browser fetch.Fetcher
	settle := time.Duration(cfg.SettleDelayMs) * time.Millisecond
	if b, err := fetch.NewBrowser(timeout, settle, cfg.MaxRetries, cfg.ChromeBin, logger); err != nil {
		logger.Warn("headless browser unavailable, using static fetch only", "error", err)
	} else {
		browser = b
		defer b.Close()
	}

	var escalator *services.Escalator
	if cfg.GeminiAPIKey != "" {
		client := llm.NewClient(llm.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel))
		escalator = services.NewEscalator(client, cfg.Neighborhoods, cfg.AITextLimit, logger)
	} else {
		logger.Warn("GEMINI_API_KEY not set, thin pages will not be escalated")
	}

	runner := pipeline.NewRunner(cfg, pipeline.Deps{
		Links:     store,
		Raws:      store,
		Static:    static,
		Browser:   browser,
		Pacer:     utils.NewHostPacer(time.Duration(cfg.RateIntervalMs) * time.Millisecond),
		Escalator: escalator,
		Promoter:  services.NewPromoter(store, store, logger),
		Logger:    logger,
	})

	summary, err := runner.Run(ctx, *limit)
	if err != nil {
		logger.Error("crawl failed", "error", err)
		os.Exit(1)
	}

	if cfg.CSVOutputPath != "" && summary.RawsInserted > 0 {
		exportCSV(ctx, cfg.CSVOutputPath, store, logger)
	}

	logger.Info("crawl done",
		"links", summary.LinksProcessed,
		"failed", summary.LinksFailed,
		"raws", summary.RawsInserted)
}

// exportCSV snapshots the raw records still awaiting processing. Export
// failures are logged only; the crawl itself already succeeded.
func exportCSV(ctx context.Context, path string, store *storage.Store, logger *slog.Logger) {
	raws, err := store.PendingBatch(ctx, 10000)
	if err != nil {
		logger.Warn("csv export: fetch raw records", "error", err)
		return
	}

	w, err := storage.NewCSVWriter(path)
	if err != nil {
		logger.Warn("csv export: create writer", "error", err)
		return
	}
	defer w.Close()

	if err := w.WriteRaw(raws); err != nil {
		logger.Warn("csv export: write", "error", err)
		return
	}
	logger.Info("raw records exported", "path", path, "records", len(raws))
}
