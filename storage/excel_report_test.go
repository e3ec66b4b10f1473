package storage

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"gmaps-store-scraper/models"
)

func testStore(name, address, postcode string, src models.Source) *models.Store {
	s := models.NewStore()
	s.Name = name
	s.Address = address
	s.Postcode = postcode
	s.Source = src
	return s
}

func TestMergeStoresSortsAndTags(t *testing.T) {
	existing := []*models.Store{
		testStore("Zulu Shop", "9 End Rd", "SW2", ""),
	}
	fresh := []*models.Store{
		testStore("Bravo Bakery", "2 South Rd", "SW1", ""),
		testStore("Acme Store", "1 Main St", "SW1", ""),
		testStore("Lost Store", "Nowhere", models.SentinelPostcode, ""),
	}

	combined := mergeStores(existing, fresh)

	wantOrder := []string{"Acme Store", "Bravo Bakery", "Zulu Shop", "Lost Store"}
	for i, name := range wantOrder {
		if combined[i].Name != name {
			t.Fatalf("position %d: got %q, want %q", i, combined[i].Name, name)
		}
	}
	if combined[2].Source != models.SourceExisting {
		t.Errorf("existing store source defaulted to %q", combined[2].Source)
	}
	if combined[0].Source != models.SourceNew {
		t.Errorf("new store source defaulted to %q", combined[0].Source)
	}
}

func TestMergeStoresIdempotentForExistingOnly(t *testing.T) {
	existing := []*models.Store{
		testStore("Bravo Bakery", "2 South Rd", "SW2", models.SourceExisting),
		testStore("Acme Store", "1 Main St", "SW1", models.SourceExisting),
	}

	combined := mergeStores(existing, nil)

	if len(combined) != 2 {
		t.Fatalf("got %d stores, want 2", len(combined))
	}
	if combined[0].Name != "Acme Store" || combined[1].Name != "Bravo Bakery" {
		t.Errorf("expected re-sort by (postcode, name): %q, %q",
			combined[0].Name, combined[1].Name)
	}
	for _, s := range combined {
		if s.Source != models.SourceExisting {
			t.Errorf("store %q source: got %q, want existing", s.Name, s.Source)
		}
	}
}

func TestBuildReportEmptyInputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")

	err := NewExcelReporter().BuildReport(path, nil, nil, nil, "coffee")
	if err != nil {
		t.Fatalf("BuildReport with no stores: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen artifact: %v", err)
	}
	defer f.Close()

	wantSheets := []string{"All Stores", "Postcode Summary", "Scrape Info"}
	got := f.GetSheetList()
	if len(got) != len(wantSheets) {
		t.Fatalf("sheets: got %v, want %v", got, wantSheets)
	}
	for i, name := range wantSheets {
		if got[i] != name {
			t.Errorf("sheet %d: got %q, want %q", i, got[i], name)
		}
	}

	rows, err := f.GetRows("All Stores")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected title + header rows only, got %d rows", len(rows))
	}
	if rows[1][3] != "Store Name" {
		t.Errorf("header row wrong: %v", rows[1])
	}
}

func TestBuildReportSummarySheet(t *testing.T) {
	summaries := map[string]*models.PostcodeSummary{
		"SW1": {Count: 3, PhoneCount: 2, AvgRating: 4.5, HasRating: true},
		"SW2": {Count: 0, PhoneCount: 0},
	}
	path := filepath.Join(t.TempDir(), "summary.xlsx")

	if err := NewExcelReporter().BuildReport(path, nil, summaries, nil, "coffee"); err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("Postcode Summary")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("summary rows: got %d, want 4", len(rows))
	}
	if rows[2][0] != "SW1" || rows[2][1] != "3" || rows[2][2] != "2" || rows[2][3] != "4.5" {
		t.Errorf("SW1 row: %v", rows[2])
	}
	if rows[3][0] != "SW2" || rows[3][3] != models.SentinelPostcode {
		t.Errorf("SW2 row should flag undefined rating: %v", rows[3])
	}
}

func TestReportRoundTrip(t *testing.T) {
	fresh := []*models.Store{
		{
			Name: "Acme Store", Address: "1 Main St", Phone: "0123 456789",
			Rating: "4.5", TotalReviews: 120, Category: "Hardware store",
			Website: "https://acme.example", OpeningHours: "Monday 9 am–5 pm\nTuesday 9 am–5 pm",
			Postcode: "SW1", Latitude: "51.5",
			Longitude: "-0.12", GoogleMapsURL: "https://www.google.com/maps/place/acme",
			Source: models.SourceNew,
		},
		{
			Name: "Bravo Bakery", Address: "2 South Rd", Phone: models.SentinelNA,
			Rating: models.SentinelNA, Category: models.SentinelNA,
			Website: models.SentinelNA, OpeningHours: models.SentinelNA,
			Postcode: "SW2", GoogleMapsURL: "https://www.google.com/maps/place/bravo",
			Source: models.SourceNew,
		},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := NewExcelReporter().BuildReport(path, fresh, nil, nil, "coffee"); err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	loaded, keys, err := NewExcelLoader().LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport on generated report: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d stores, want 2", len(loaded))
	}

	got := loaded[0]
	want := fresh[0]
	if got.Name != want.Name || got.Address != want.Address || got.Phone != want.Phone {
		t.Errorf("identity fields lost: %+v", got)
	}
	if got.Rating != want.Rating {
		t.Errorf("rating: got %q, want %q", got.Rating, want.Rating)
	}
	if got.TotalReviews != want.TotalReviews {
		t.Errorf("reviews: got %d, want %d", got.TotalReviews, want.TotalReviews)
	}
	if got.Category != want.Category || got.Website != want.Website {
		t.Errorf("category/website lost: %+v", got)
	}
	if got.OpeningHours != want.OpeningHours {
		t.Errorf("opening hours: got %q, want %q", got.OpeningHours, want.OpeningHours)
	}
	if got.Postcode != want.Postcode {
		t.Errorf("postcode: got %q, want %q", got.Postcode, want.Postcode)
	}
	if got.Latitude != want.Latitude || got.Longitude != want.Longitude {
		t.Errorf("coordinates: got (%q, %q), want (%q, %q)",
			got.Latitude, got.Longitude, want.Latitude, want.Longitude)
	}
	if got.GoogleMapsURL != want.GoogleMapsURL {
		t.Errorf("maps url: got %q, want %q", got.GoogleMapsURL, want.GoogleMapsURL)
	}

	if !keys.Contains("acmestore|1mainst") {
		t.Error("dedup key not recomputed identically at load time")
	}
}
