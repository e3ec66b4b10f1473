package gmaps

import (
	"testing"

	"gmaps-store-scraper/dedup"
	"gmaps-store-scraper/models"
)

func foundStore(name, address, phone, rating string) *models.Store {
	s := models.NewStore()
	s.Name = name
	s.Address = address
	s.Phone = phone
	s.Rating = rating
	return s
}

func TestCollectSkipsExistingKeys(t *testing.T) {
	seen := dedup.NewKeySet()
	seen.Add(dedup.Key("Acme Store", "1 Main St"))

	found := []*models.Store{
		foundStore("ACME STORE", "1 Main St", models.SentinelNA, models.SentinelNA),
		foundStore("Bravo Bakery", "2 South Rd", "0123 456789", "4.2"),
	}

	var reported []*models.Store
	accepted, summary, skipped := collect(found, "SW1", seen, func(s *models.Store) {
		reported = append(reported, s)
	})

	if skipped != 1 {
		t.Errorf("skipped: got %d, want 1", skipped)
	}
	if len(accepted) != 1 || accepted[0].Name != "Bravo Bakery" {
		t.Fatalf("accepted: %+v", accepted)
	}
	if accepted[0].Postcode != "SW1" {
		t.Errorf("postcode stamp: got %q", accepted[0].Postcode)
	}
	if accepted[0].Source != models.SourceNew {
		t.Errorf("provenance stamp: got %q", accepted[0].Source)
	}
	if summary.Count != 1 || summary.PhoneCount != 1 {
		t.Errorf("summary: %+v", summary)
	}
	if len(reported) != 1 || reported[0] != accepted[0] {
		t.Errorf("store hook should fire once per accepted store, got %d", len(reported))
	}
}

func TestCollectSummaryAverageIgnoresUnknownRatings(t *testing.T) {
	seen := dedup.NewKeySet()
	found := []*models.Store{
		foundStore("A", "1 St", models.SentinelNA, "4.0"),
		foundStore("B", "2 St", models.SentinelNA, "5.0"),
		foundStore("C", "3 St", models.SentinelNA, models.SentinelNA),
	}

	_, summary, _ := collect(found, "SW1", seen, nil)

	if summary.Count != 3 {
		t.Errorf("count: got %d, want 3", summary.Count)
	}
	if !summary.HasRating {
		t.Fatal("summary should have a rating average")
	}
	if summary.AvgRating != 4.5 {
		t.Errorf("avg rating: got %v, want 4.5", summary.AvgRating)
	}
}

func TestCollectNoRatings(t *testing.T) {
	seen := dedup.NewKeySet()
	found := []*models.Store{
		foundStore("A", "1 St", models.SentinelNA, models.SentinelNA),
	}

	_, summary, _ := collect(found, "SW1", seen, nil)

	if summary.HasRating {
		t.Error("average of zero ratings must be undefined")
	}
}

func TestCollectDuplicateWithinPostcode(t *testing.T) {
	seen := dedup.NewKeySet()
	found := []*models.Store{
		foundStore("Acme Store", "1 Main St", models.SentinelNA, models.SentinelNA),
		foundStore("Acme Store.", "1 Main St!", models.SentinelNA, models.SentinelNA),
	}

	accepted, summary, skipped := collect(found, "SW1", seen, nil)

	if len(accepted) != 1 || skipped != 1 {
		t.Errorf("got %d accepted / %d skipped, want 1 / 1", len(accepted), skipped)
	}
	if summary.Count != 1 {
		t.Errorf("summary should only count accepted stores, got %d", summary.Count)
	}
}

func TestBuildSearchURL(t *testing.T) {
	got := buildSearchURL("coffee shop", "SW1", "London")
	want := "https://www.google.com/maps/search/coffee%20shop%20near%20SW1%20London"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestIsResultsHeading(t *testing.T) {
	if !isResultsHeading("Results") {
		t.Error("a results banner must not be treated as a place")
	}
	if isResultsHeading("Acme Store") {
		t.Error("a place name must pass the fallback check")
	}
}

func TestParseRatingLabel(t *testing.T) {
	tests := []struct {
		label string
		want  string
		ok    bool
	}{
		{"4.5 stars", "4.5", true},
		{"5 stars", "5", true},
		{"", "", false},
		{"no rating here", "", false},
	}
	for _, tt := range tests {
		got, ok := parseRatingLabel(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseRatingLabel(%q) = (%q, %v), want (%q, %v)",
				tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseReviewLabel(t *testing.T) {
	if got := parseReviewLabel("1,234 reviews"); got != 1234 {
		t.Errorf("got %d, want 1234", got)
	}
	if got := parseReviewLabel("1 review"); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
	if got := parseReviewLabel("no reviews yet"); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestParseCoords(t *testing.T) {
	lat, lon := parseCoords("https://www.google.com/maps/place/Acme/@51.5012,-0.1225,17z/data=x")
	if lat != "51.5012" || lon != "-0.1225" {
		t.Errorf("got (%q, %q)", lat, lon)
	}

	lat, lon = parseCoords("https://www.google.com/maps/place/Acme")
	if lat != "" || lon != "" {
		t.Errorf("expected empty coords, got (%q, %q)", lat, lon)
	}
}

func TestSplitOpeningHours(t *testing.T) {
	label := "Hours Monday, 9 am to 5 pm; Tuesday, 9 am to 5 pm; Sunday, Closed. Hide open hours for the week"
	got := splitOpeningHours(label)
	want := "Monday, 9 am to 5 pm\nTuesday, 9 am to 5 pm\nSunday, Closed"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if splitOpeningHours("") != "" {
		t.Error("empty label should produce no hours")
	}
	if splitOpeningHours("open late") != "" {
		t.Error("label without weekdays should produce no hours")
	}
}
