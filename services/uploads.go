package services

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gmaps-store-scraper/dedup"
	"gmaps-store-scraper/models"
)

// Upload holds one parsed report between upload and scrape.
type Upload struct {
	ID       string
	Filename string
	Path     string
	Stores   []*models.Store
	Keys     *dedup.KeySet
}

// UploadStore is the registry of parsed uploads keyed by session id.
type UploadStore struct {
	mu      sync.RWMutex
	uploads map[string]*Upload
}

// NewUploadStore creates an empty UploadStore.
func NewUploadStore() *UploadStore {
	return &UploadStore{uploads: make(map[string]*Upload)}
}

// Put registers a parsed upload and returns its session id.
func (s *UploadStore) Put(filename, path string, stores []*models.Store, keys *dedup.KeySet) *Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	up := &Upload{
		ID:       fmt.Sprintf("upload_%d", time.Now().UnixMilli()),
		Filename: filename,
		Path:     path,
		Stores:   stores,
		Keys:     keys,
	}
	for {
		if _, exists := s.uploads[up.ID]; !exists {
			break
		}
		up.ID += "x"
	}
	s.uploads[up.ID] = up
	return up
}

// Get looks up an upload by session id.
func (s *UploadStore) Get(id string) (*Upload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	up, ok := s.uploads[id]
	return up, ok
}

// Remove deletes the upload and its file on disk, if either exists.
func (s *UploadStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if up, ok := s.uploads[id]; ok {
		if up.Path != "" {
			os.Remove(up.Path)
		}
		delete(s.uploads, id)
	}
}

// Clear drops every upload session, returning how many were held. Files
// on disk are the caller's concern (cleanup removes whole directories).
func (s *UploadStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.uploads)
	s.uploads = make(map[string]*Upload)
	return n
}
