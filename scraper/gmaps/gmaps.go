package gmaps

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"gmaps-store-scraper/config"
	"gmaps-store-scraper/dedup"
	"gmaps-store-scraper/models"
	"gmaps-store-scraper/utils"
)

const (
	mapsHome      = "https://www.google.com/maps"
	searchURLBase = "https://www.google.com/maps/search/"
)

// Scraper drives a headless browser against Google Maps, one postcode at
// a time. The whole pipeline is deliberately sequential: one session, one
// page, visited postcode-by-postcode and listing-by-listing.
type Scraper struct {
	cfg    *config.Config
	logger *utils.Logger
}

// New creates a ready-to-use Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{cfg: cfg, logger: logger}
}

// Run scrapes every postcode in order, skipping stores whose dedup key is
// already in existingKeys, and returns the newly accepted stores plus a
// per-postcode summary. Accepted stores are also reported immediately via
// onStore, and human-readable progress via onProgress; either hook may be
// nil. Only a session-level failure is returned as an error; per-postcode
// and per-listing failures degrade to empty results.
func (s *Scraper) Run(ctx context.Context, query, location string, postcodes []string,
	existingKeys *dedup.KeySet,
	onProgress func(string), onStore func(*models.Store)) ([]*models.Store, map[string]*models.PostcodeSummary, error) {

	progress := func(format string, args ...any) {
		if onProgress != nil {
			onProgress(fmt.Sprintf(format, args...))
		}
	}

	seen := dedup.NewKeySet()
	if existingKeys != nil {
		seen = existingKeys.Clone()
	}

	progress("Launching browser...")

	chromeBin := s.cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 900),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	// The session must come up before any postcode work; failure here is
	// fatal to the whole job.
	if err := s.navigate(browserCtx, mapsHome); err != nil {
		return nil, nil, fmt.Errorf("browser session failed to start: %w", err)
	}
	s.sleep(browserCtx, 2000)
	s.acceptCookies(browserCtx)
	s.sleep(browserCtx, 1000)

	var newStores []*models.Store
	summaries := make(map[string]*models.PostcodeSummary, len(postcodes))

	for i, postcode := range postcodes {
		progress("[%d/%d] Scraping postcode: %s", i+1, len(postcodes), postcode)

		found := s.scrapePostcode(browserCtx, query, postcode, location)
		accepted, summary, skipped := collect(found, postcode, seen, onStore)

		newStores = append(newStores, accepted...)
		summaries[postcode] = summary

		skipMsg := ""
		if skipped > 0 {
			skipMsg = fmt.Sprintf(", %d already in sheet", skipped)
		}
		progress("[%d/%d] %s: %d found, %d new%s — Total new: %d",
			i+1, len(postcodes), postcode, len(found), summary.Count, skipMsg, len(newStores))

		// Politeness pause between areas, not a correctness requirement.
		if i < len(postcodes)-1 {
			s.sleep(browserCtx, s.cfg.PostcodeGapMs)
		}
	}

	return newStores, summaries, nil
}

// collect applies the acceptance rule to one postcode's raw finds: stores
// whose key is already accepted are skipped, the rest are stamped with the
// postcode and provenance, reported, and rolled into the summary.
func collect(found []*models.Store, postcode string, seen *dedup.KeySet,
	onStore func(*models.Store)) ([]*models.Store, *models.PostcodeSummary, int) {

	summary := &models.PostcodeSummary{}
	var accepted []*models.Store
	skipped := 0
	ratingSum := 0.0
	ratingCount := 0

	for _, store := range found {
		if !seen.Add(dedup.Key(store.Name, store.Address)) {
			skipped++
			continue
		}

		store.Postcode = postcode
		store.Source = models.SourceNew
		accepted = append(accepted, store)
		summary.Count++

		if store.HasPhone() {
			summary.PhoneCount++
		}
		if v, ok := store.RatingValue(); ok {
			ratingSum += v
			ratingCount++
		}

		if onStore != nil {
			onStore(store)
		}
	}

	if ratingCount > 0 {
		summary.AvgRating = ratingSum / float64(ratingCount)
		summary.HasRating = true
	}
	return accepted, summary, skipped
}

// scrapePostcode runs the per-postcode state machine: navigate, settle,
// exhaust the results feed, then visit each listing. Navigation failure
// means zero results for this postcode, never a job failure.
func (s *Scraper) scrapePostcode(ctx context.Context, query, postcode, location string) []*models.Store {
	searchURL := buildSearchURL(query, postcode, location)

	if err := s.navigate(ctx, searchURL); err != nil {
		s.logger.Warn("[gmaps] %s: navigation failed, treating as no results: %v", postcode, err)
		return nil
	}
	s.sleep(ctx, s.cfg.SettleMs)

	s.exhaustScroll(ctx)
	links := s.listingLinks(ctx)

	if len(links) == 0 {
		if store := s.singleResultFallback(ctx); store != nil {
			return []*models.Store{store}
		}
		return nil
	}

	var stores []*models.Store
	for _, link := range links {
		if err := s.navigate(ctx, link); err != nil {
			s.logger.Debug("[gmaps] listing skipped (%s): %v", link, err)
			continue
		}
		s.sleep(ctx, s.cfg.DetailPauseMs)

		store := s.extractDetails(ctx)
		store.GoogleMapsURL = link
		stores = append(stores, store)
	}
	return stores
}

// singleResultFallback handles searches that jump straight to a place
// page: no listing links, but a detail heading that is not a results
// banner means the current page is itself the one listing.
func (s *Scraper) singleResultFallback(ctx context.Context) *models.Store {
	heading, err := s.headingText(ctx)
	if err != nil || heading == "" {
		return nil
	}
	if isResultsHeading(heading) {
		return nil
	}

	store := s.extractDetails(ctx)
	if loc, err := s.currentURL(ctx); err == nil {
		store.GoogleMapsURL = loc
	}
	return store
}

// buildSearchURL composes the maps search path for one postcode area.
func buildSearchURL(query, postcode, location string) string {
	full := fmt.Sprintf("%s near %s %s", query, postcode, location)
	return searchURLBase + url.PathEscape(full)
}

func (s *Scraper) navigate(ctx context.Context, target string) error {
	tctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.NavTimeoutMs)*time.Millisecond)
	defer cancel()
	return chromedp.Run(tctx, chromedp.Navigate(target))
}

func (s *Scraper) sleep(ctx context.Context, ms int) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
