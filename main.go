package main

import (
	"net/http"
	"os"
	"time"

	"gmaps-store-scraper/config"
	"gmaps-store-scraper/scraper/gmaps"
	"gmaps-store-scraper/server"
	"gmaps-store-scraper/services"
	"gmaps-store-scraper/storage"
	"gmaps-store-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Google Maps Store Scraper starting ===")
	logger.Info("Config — port: %s | max scrolls: %d | stale rounds: %d | settle: %dms",
		cfg.Port, cfg.MaxScrolls, cfg.StaleRounds, cfg.SettleMs)

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("Failed to create %s: %v", dir, err)
			os.Exit(1)
		}
	}

	jobs := services.NewJobStore(cfg.JobRetention)
	stop := make(chan struct{})
	defer close(stop)
	jobs.StartReaper(10*time.Minute, stop)

	srv := server.New(
		cfg,
		logger,
		gmaps.New(cfg, logger),
		services.NewGeocodeClient(cfg.PostcodesAPIBase),
		storage.NewExcelLoader(),
		storage.NewExcelReporter(),
		jobs,
		services.NewUploadStore(),
	)

	addr := ":" + cfg.Port
	logger.Info("Listening on %s", addr)
	if err := http.ListenAndServe(addr, srv.Router()); err != nil {
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}
