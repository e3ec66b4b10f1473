package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gmaps-store-scraper/config"
	"gmaps-store-scraper/dedup"
	"gmaps-store-scraper/models"
	"gmaps-store-scraper/services"
	"gmaps-store-scraper/storage"
	"gmaps-store-scraper/utils"
)

// ScrapeRunner is the seam between the HTTP layer and the browser
// pipeline, so handlers can be tested without a browser.
type ScrapeRunner interface {
	Run(ctx context.Context, query, location string, postcodes []string,
		existingKeys *dedup.KeySet,
		onProgress func(string), onStore func(*models.Store)) ([]*models.Store, map[string]*models.PostcodeSummary, error)
}

// Geocoder resolves a free-text location into postcode outcodes.
type Geocoder interface {
	Outcodes(ctx context.Context, location string) ([]*models.Outcode, error)
}

// Server wires the HTTP API over the scraping, storage and job layers.
type Server struct {
	cfg      *config.Config
	logger   *utils.Logger
	runner   ScrapeRunner
	geocoder Geocoder
	loader   storage.ReportLoader
	reporter storage.ReportWriter
	jobs     *services.JobStore
	uploads  *services.UploadStore
}

// New creates a Server with all collaborators injected.
func New(cfg *config.Config, logger *utils.Logger, runner ScrapeRunner,
	geocoder Geocoder, loader storage.ReportLoader, reporter storage.ReportWriter,
	jobs *services.JobStore, uploads *services.UploadStore) *Server {

	return &Server{
		cfg:      cfg,
		logger:   logger,
		runner:   runner,
		geocoder: geocoder,
		loader:   loader,
		reporter: reporter,
		jobs:     jobs,
		uploads:  uploads,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/postcodes", s.handlePostcodes)
		r.Post("/upload", s.handleUpload)
		r.Post("/upload/remove", s.handleUploadRemove)
		r.Post("/scrape", s.handleScrape)
		r.Get("/progress/{jobID}", s.handleProgress)
		r.Get("/download/{filename}", s.handleDownload)
		r.Post("/cleanup", s.handleCleanup)
		r.Get("/cleanup/info", s.handleCleanupInfo)
	})
	return r
}
