package models

import (
	"strconv"
	"strings"
)

// Source tags where a Store record came from: a previously uploaded
// report or this run's scrape.
type Source string

const (
	SourceExisting Source = "existing"
	SourceNew      Source = "new"
)

// Sentinel values used when a field could not be determined. They are
// written into the report verbatim, so a missing field is distinguishable
// from a missing record.
const (
	SentinelNA       = "N/A"
	SentinelPostcode = "—"
)

// Store is one discovered or previously recorded business listing.
// Rating, Latitude and Longitude are kept as strings so the "unknown"
// sentinels survive a load/write round trip unchanged.
type Store struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Rating        string `json:"rating"`
	TotalReviews  int    `json:"total_reviews"`
	Category      string `json:"category"`
	Website       string `json:"website"`
	OpeningHours  string `json:"opening_hours"`
	Postcode      string `json:"postcode"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	GoogleMapsURL string `json:"google_maps_url"`
	Source        Source `json:"source"`
}

// NewStore returns a Store with every field set to its sentinel default.
func NewStore() *Store {
	return &Store{
		Name:          SentinelNA,
		Address:       SentinelNA,
		Phone:         SentinelNA,
		Rating:        SentinelNA,
		Category:      SentinelNA,
		Website:       SentinelNA,
		OpeningHours:  SentinelNA,
		Postcode:      SentinelPostcode,
		GoogleMapsURL: SentinelNA,
	}
}

// HasPhone reports whether a phone number was found for the listing.
func (s *Store) HasPhone() bool {
	return s.Phone != "" && s.Phone != SentinelNA
}

// RatingValue parses the rating field, returning ok=false for the sentinel
// or anything else that is not a number.
func (s *Store) RatingValue() (float64, bool) {
	return parseFloat(s.Rating)
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == SentinelNA {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PostcodeSummary aggregates one postcode's newly scraped stores.
// AvgRating is meaningless when HasRating is false.
type PostcodeSummary struct {
	Count      int     `json:"count"`
	PhoneCount int     `json:"phone_count"`
	AvgRating  float64 `json:"avg_rating"`
	HasRating  bool    `json:"has_rating"`
}

// Outcode is one postcode-area result from the geography lookup.
type Outcode struct {
	Outcode       string  `json:"outcode"`
	AdminDistrict string  `json:"admin_district"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}
