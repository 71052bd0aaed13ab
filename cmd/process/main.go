package main

import (
	"context"
	"flag"
	"os"

	"imovel-scraper/config"
	"imovel-scraper/llm"
	"imovel-scraper/pipeline"
	"imovel-scraper/services"
	"imovel-scraper/storage"
	"imovel-scraper/utils"
)

func main() {
	limit := flag.Int("limit", 0, "max raw records to process this run (0 = configured batch size)")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()
	ctx := context.Background()

	store, err := storage.NewStore(cfg.DSN())
	if err != nil {
		logger.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var refiner *services.Refiner
	if cfg.GeminiAPIKey != "" && cfg.RefineWithAI {
		client := llm.NewClient(llm.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel))
		refiner = services.NewRefiner(client, cfg.AITextLimit, logger)
	} else {
		logger.Warn("AI refinement disabled, promoting records as extracted")
	}

	runner := pipeline.NewRunner(cfg, pipeline.Deps{
		Links:    store,
		Raws:     store,
		Refiner:  refiner,
		Promoter: services.NewPromoter(store, store, logger),
		Logger:   logger,
	})

	summary, err := runner.Process(ctx, *limit)
	if err != nil {
		logger.Error("processing failed", "error", err)
		os.Exit(1)
	}

	logger.Info("processing done",
		"processed", summary.Processed,
		"promoted", summary.Promoted,
		"ignored", summary.Ignored,
		"errors", summary.Errors)

	props, err := store.ActiveProperties(ctx)
	if err != nil {
		logger.Warn("skipping report", "error", err)
		return
	}
	services.BuildReport(props).Print()
}
