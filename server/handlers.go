package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gmaps-store-scraper/dedup"
	"gmaps-store-scraper/models"
	"gmaps-store-scraper/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// handlePostcodes resolves a location into candidate outcodes.
func (s *Server) handlePostcodes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		writeError(w, http.StatusBadRequest, "Location is required")
		return
	}

	outcodes, err := s.geocoder.Outcodes(r.Context(), location)
	if err != nil {
		s.logger.Warn("[server] postcode lookup failed for %q: %v", location, err)
		writeError(w, http.StatusBadGateway, "postcode lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"postcodes": outcodes,
		"location":  location,
	})
}

// handleUpload accepts a previously generated report, parses it, and
// keeps the (stores, keys) pair for a later merged scrape.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		writeError(w, http.StatusBadRequest, "Only .xlsx or .xls files are supported")
		return
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	savePath := filepath.Join(s.cfg.UploadDir,
		fmt.Sprintf("upload_%d%s", time.Now().UnixMilli(), ext))

	dst, err := os.Create(savePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(savePath)
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	dst.Close()

	stores, keys, err := s.loader.LoadReport(savePath)
	if err != nil {
		os.Remove(savePath)
		writeError(w, http.StatusBadRequest, "Could not parse file: %v", err)
		return
	}

	up := s.uploads.Put(header.Filename, savePath, stores, keys)

	postcodeSet := make(map[string]struct{})
	withPhone := 0
	for _, st := range stores {
		if st.Postcode != models.SentinelPostcode {
			postcodeSet[st.Postcode] = struct{}{}
		}
		if st.HasPhone() {
			withPhone++
		}
	}
	postcodes := make([]string, 0, len(postcodeSet))
	for pc := range postcodeSet {
		postcodes = append(postcodes, pc)
	}

	sample := make([]map[string]string, 0, 5)
	for _, st := range stores {
		if len(sample) == 5 {
			break
		}
		sample = append(sample, map[string]string{
			"name":    st.Name,
			"address": st.Address,
			"phone":   st.Phone,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      up.ID,
		"filename":        header.Filename,
		"total_stores":    len(stores),
		"with_phone":      withPhone,
		"postcodes_found": postcodes,
		"sample":          sample,
	})
}

func (s *Server) handleUploadRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.uploads.Remove(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleScrape starts a scraping job, optionally merging with an upload.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query           string   `json:"query"`
		Location        string   `json:"location"`
		Postcodes       []string `json:"postcodes"`
		UploadSessionID string   `json:"upload_session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	if len(req.Postcodes) == 0 {
		writeError(w, http.StatusBadRequest, "Select at least one postcode")
		return
	}

	var existingStores []*models.Store
	var existingKeys *dedup.KeySet
	if req.UploadSessionID != "" {
		if up, ok := s.uploads.Get(req.UploadSessionID); ok {
			existingStores = up.Stores
			existingKeys = up.Keys
		}
	}

	job := s.jobs.Create()

	if len(existingStores) > 0 {
		job.Publish(services.Event{
			Type: services.EventProgress,
			Message: fmt.Sprintf(
				"Loaded %d existing stores from uploaded file — these will be skipped during scraping",
				len(existingStores)),
		})
	}

	go s.runJob(job, req.Query, req.Location, req.Postcodes, existingStores, existingKeys)

	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

// runJob is the background execution unit for one scrape: sequential
// inside, one per job.
func (s *Server) runJob(job *services.Job, query, location string, postcodes []string,
	existingStores []*models.Store, existingKeys *dedup.KeySet) {

	// Jobs run to completion independent of any request lifetime.
	newStores, summaries, err := s.runner.Run(context.Background(), query, location, postcodes, existingKeys,
		func(msg string) {
			job.Publish(services.Event{Type: services.EventProgress, Message: msg})
		},
		func(store *models.Store) {
			job.Publish(services.Event{Type: services.EventStore, Store: store})
		},
	)
	if err != nil {
		s.logger.Error("[server] job %s failed: %v", job.ID, err)
		job.Publish(services.Event{Type: services.EventError, Message: err.Error()})
		return
	}

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		job.Publish(services.Event{Type: services.EventError, Message: err.Error()})
		return
	}
	outputFile := fmt.Sprintf("output_%s.xlsx", job.ID)
	outputPath := filepath.Join(s.cfg.OutputDir, outputFile)

	// The report is always written, even with zero new stores: an
	// upload-only merge is a valid run.
	if err := s.reporter.BuildReport(outputPath, newStores, summaries, existingStores, query); err != nil {
		s.logger.Error("[server] job %s report failed: %v", job.ID, err)
		job.Publish(services.Event{Type: services.EventError, Message: err.Error()})
		return
	}
	job.OutputFile = outputPath

	withPhone := 0
	for _, st := range newStores {
		if st.HasPhone() {
			withPhone++
		}
	}
	for _, st := range existingStores {
		if st.HasPhone() {
			withPhone++
		}
	}

	job.Publish(services.Event{
		Type:           services.EventComplete,
		TotalStores:    len(existingStores) + len(newStores),
		NewStores:      len(newStores),
		ExistingStores: len(existingStores),
		TotalWithPhone: withPhone,
		File:           outputFile,
	})
}

// handleProgress streams a job's events as Server-Sent Events until the
// stream closes or the subscriber disconnects.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.jobs.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	send := func(v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if !send(map[string]string{"type": "heartbeat"}) {
				return
			}
		case ev, open := <-job.Events():
			if !open {
				return
			}
			if !send(ev) {
				return
			}
		}
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	// Reject traversal; only bare generated filenames are valid.
	if filename == "" || filename != filepath.Base(filename) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(s.cfg.OutputDir, filename)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="scraped_stores.xlsx"`)
	http.ServeFile(w, r, path)
}

// handleCleanup deletes every generated and uploaded file and clears the
// upload sessions.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	deleted := map[string]int{"static": 0, "uploads": 0}
	var files []string

	for dir, key := range map[string]string{s.cfg.OutputDir: "static", s.cfg.UploadDir: "uploads"} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				deleted[key]++
				files = append(files, key+"/"+entry.Name())
			}
		}
	}

	s.uploads.Clear()

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"total_deleted":   deleted["static"] + deleted["uploads"],
		"static_deleted":  deleted["static"],
		"uploads_deleted": deleted["uploads"],
		"files":           files,
	})
}

func (s *Server) handleCleanupInfo(w http.ResponseWriter, r *http.Request) {
	totalFiles := 0
	var totalSize int64

	for _, dir := range []string{s.cfg.OutputDir, s.cfg.UploadDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil || entry.IsDir() {
				continue
			}
			totalFiles++
			totalSize += info.Size()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_files":      totalFiles,
		"total_size_bytes": totalSize,
		"total_size_mb":    float64(totalSize) / (1024 * 1024),
	})
}
