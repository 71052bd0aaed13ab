package main

import (
	"context"
	"os"

	"imovel-scraper/config"
	"imovel-scraper/pipeline"
	"imovel-scraper/storage"
	"imovel-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	ctx := context.Background()

	store, err := storage.NewStore(cfg.DSN())
	if err != nil {
		logger.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	seeds := pipeline.DefaultSeeds()
	if err := store.Seed(ctx, seeds); err != nil {
		logger.Error("seed links", "error", err)
		os.Exit(1)
	}

	pending, err := store.CountPending(ctx)
	if err != nil {
		logger.Error("count pending links", "error", err)
		os.Exit(1)
	}
	logger.Info("seed finished", "seeds", len(seeds), "pending", pending)
}
