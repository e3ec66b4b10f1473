package storage

import (
	"gmaps-store-scraper/dedup"
	"gmaps-store-scraper/models"
)

// ReportLoader parses a previously generated workbook into stores plus
// their dedup keys.
type ReportLoader interface {
	LoadReport(path string) ([]*models.Store, *dedup.KeySet, error)
}

// ReportWriter builds the merged output workbook.
type ReportWriter interface {
	BuildReport(path string, newStores []*models.Store,
		summaries map[string]*models.PostcodeSummary,
		existingStores []*models.Store, query string) error
}
