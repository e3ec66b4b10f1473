package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gmaps-store-scraper/dedup"
	"gmaps-store-scraper/models"
)

// headerScanRows is how many leading rows may precede the header (some
// files carry a title row or two above it).
const headerScanRows = 5

// fieldAliases is the ordered table of acceptable header names per
// canonical field. A header cell matches an alias by exact equality or by
// containing it as a substring, case-insensitively; the first header cell
// satisfying any alias wins that field's column.
var fieldAliases = []struct {
	field   string
	aliases []string
}{
	{"name", []string{"store name", "name", "shop name", "business name", "store"}},
	{"address", []string{"address", "formatted address", "location", "full address"}},
	{"phone", []string{"phone", "phone number", "telephone", "tel", "phone no", "contact"}},
	{"rating", []string{"rating", "stars", "google rating"}},
	{"total_reviews", []string{"reviews", "total reviews", "review count", "no of reviews", "ratings count"}},
	{"category", []string{"category", "type", "primary type", "business type", "store type"}},
	{"website", []string{"website", "web", "url", "site", "website url"}},
	{"opening_hours", []string{"opening hours", "hours", "open hours", "timings"}},
	{"postcode", []string{"postcode", "postcode area", "post code", "zip", "outcode"}},
	{"latitude", []string{"latitude", "lat"}},
	{"longitude", []string{"longitude", "lng", "lon", "long"}},
	{"google_maps_url", []string{"google maps url", "google maps", "maps url", "maps link", "google maps link"}},
}

// columnMap maps canonical field names to source-sheet column indices.
// Built once per loaded file, read-only afterwards.
type columnMap map[string]int

// buildColumnMap resolves the alias table against a header row. Fields
// with no matching header are simply absent.
func buildColumnMap(headers []string) columnMap {
	normalised := make([]string, len(headers))
	for i, h := range headers {
		normalised[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cm := make(columnMap)
	for _, fa := range fieldAliases {
		for i, h := range normalised {
			if h == "" {
				continue
			}
			matched := false
			for _, alias := range fa.aliases {
				if alias == h || strings.Contains(h, alias) {
					matched = true
					break
				}
			}
			if matched {
				cm[fa.field] = i
				break
			}
		}
	}
	return cm
}

// ExcelLoader reads previously generated reports back in so a scrape can
// merge against them instead of overwriting.
type ExcelLoader struct{}

// NewExcelLoader creates a ready-to-use ExcelLoader.
func NewExcelLoader() *ExcelLoader {
	return &ExcelLoader{}
}

// LoadReport parses the workbook at path into stores and their dedup keys.
// The returned slice keeps the sheet's row order and is internally
// duplicate-free; the key set exactly covers the returned stores.
func (l *ExcelLoader) LoadReport(path string) ([]*models.Store, *dedup.KeySet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheet := pickSheet(f.GetSheetList())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyFile
	}

	headerIdx := -1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		for _, cell := range rows[i] {
			if strings.Contains(strings.ToLower(strings.TrimSpace(cell)), "name") {
				headerIdx = i
				break
			}
		}
		if headerIdx >= 0 {
			break
		}
	}
	if headerIdx < 0 {
		return nil, nil, ErrHeaderNotFound
	}

	cm := buildColumnMap(rows[headerIdx])
	if _, ok := cm["name"]; !ok {
		return nil, nil, ErrNameColumnMissing
	}

	var stores []*models.Store
	keys := dedup.NewKeySet()

	for _, row := range rows[headerIdx+1:] {
		if blankRow(row) {
			continue
		}

		name := cellText(row, cm, "name", "")
		if name == "" || name == models.SentinelNA {
			continue
		}

		store := &models.Store{
			Name:          name,
			Address:       cellText(row, cm, "address", models.SentinelNA),
			Phone:         cellText(row, cm, "phone", models.SentinelNA),
			Rating:        cellNumber(row, cm, "rating"),
			TotalReviews:  cellInt(row, cm, "total_reviews"),
			Category:      cellText(row, cm, "category", models.SentinelNA),
			Website:       cellText(row, cm, "website", models.SentinelNA),
			OpeningHours:  cellText(row, cm, "opening_hours", models.SentinelNA),
			Postcode:      cellText(row, cm, "postcode", models.SentinelPostcode),
			Latitude:      cellCoord(row, cm, "latitude"),
			Longitude:     cellCoord(row, cm, "longitude"),
			GoogleMapsURL: cellText(row, cm, "google_maps_url", models.SentinelNA),
			Source:        models.SourceExisting,
		}

		// Rows already present earlier in the sheet, and rows with no
		// identity data at all, are silently skipped.
		if keys.Add(dedup.Key(store.Name, store.Address)) {
			stores = append(stores, store)
		}
	}

	return stores, keys, nil
}

// pickSheet prefers a sheet named like the main listing over whatever
// happens to be first.
func pickSheet(names []string) string {
	for _, n := range names {
		lower := strings.ToLower(n)
		if strings.Contains(lower, "store") || strings.Contains(lower, "all") {
			return n
		}
	}
	return names[0]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellText(row []string, cm columnMap, field, def string) string {
	idx, ok := cm[field]
	if !ok || idx >= len(row) {
		return def
	}
	val := strings.TrimSpace(row[idx])
	if val == "" {
		return def
	}
	return val
}

// cellNumber keeps numeric cells in canonical decimal form and falls back
// to the sentinel for anything unparseable.
func cellNumber(row []string, cm columnMap, field string) string {
	raw := cellText(row, cm, field, "")
	if raw == "" {
		return models.SentinelNA
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return models.SentinelNA
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// cellCoord is like cellNumber but uses the empty-string sentinel used
// for latitude/longitude.
func cellCoord(row []string, cm columnMap, field string) string {
	raw := cellText(row, cm, field, "")
	if raw == "" {
		return ""
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cellInt(row []string, cm columnMap, field string) int {
	raw := cellText(row, cm, field, "")
	if raw == "" {
		return 0
	}
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return int(v)
}
