package gmaps

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"gmaps-store-scraper/models"
)

var (
	// ratingRe matches "4.5 stars" style accessibility labels.
	ratingRe = regexp.MustCompile(`([\d.]+)\s*star`)
	// reviewsRe matches "1,234 reviews" style labels.
	reviewsRe = regexp.MustCompile(`([\d,]+)\s*review`)
	// coordRe matches the "@lat,lon" pair embedded in a place URL.
	coordRe = regexp.MustCompile(`@(-?[\d.]+),(-?[\d.]+)`)
	// weekdayRe marks the split points of an opening-hours label.
	weekdayRe = regexp.MustCompile(`Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday`)
)

// endOfListMarker is rendered at the bottom of a fully loaded results feed.
const endOfListMarker = "You've reached the end of the list"

// acceptCookies performs the one-time consent dismissal. Best effort: a
// missing banner or failed click never fails the session.
func (s *Scraper) acceptCookies(ctx context.Context) {
	var clicked bool
	err := s.evaluate(ctx, `
		(function() {
			var labels = ['Accept all', 'Reject all'];
			var buttons = document.querySelectorAll('button');
			for (var i = 0; i < buttons.length; i++) {
				var text = (buttons[i].innerText || '').trim();
				for (var j = 0; j < labels.length; j++) {
					if (text === labels[j] || text.indexOf(labels[j]) === 0) {
						buttons[i].click();
						return true;
					}
				}
			}
			return false;
		})()
	`, &clicked)
	if err == nil && clicked {
		s.sleep(ctx, 1000)
	}
}

// exhaustScroll scrolls the results feed to its bottom until the end
// marker shows, the link count goes stale, or the round limit is hit. A
// page with no feed container (single-result page) is left alone.
func (s *Scraper) exhaustScroll(ctx context.Context) {
	if !s.waitForFeed(ctx) {
		return
	}

	prevCount := 0
	staleRounds := 0

	for i := 0; i < s.cfg.MaxScrolls; i++ {
		s.evaluate(ctx, `
			(function() {
				var feed = document.querySelector('div[role="feed"]');
				if (feed) feed.scrollTop = feed.scrollHeight;
				return true;
			})()
		`, nil)
		s.sleep(ctx, s.cfg.ScrollPauseMs)

		var done bool
		s.evaluate(ctx, `document.body.innerText.indexOf(`+strconv.Quote(endOfListMarker)+`) !== -1`, &done)
		if done {
			break
		}

		var count int
		if err := s.evaluate(ctx, `
			document.querySelectorAll('div[role="feed"] a[href*="/maps/place/"]').length
		`, &count); err != nil {
			break
		}

		if count == prevCount {
			staleRounds++
			if staleRounds >= s.cfg.StaleRounds {
				break
			}
		} else {
			staleRounds = 0
		}
		prevCount = count
	}
}

// waitForFeed polls for the results feed container until it appears or
// the feed timeout elapses.
func (s *Scraper) waitForFeed(ctx context.Context) bool {
	deadline := time.Now().Add(time.Duration(s.cfg.FeedTimeoutMs) * time.Millisecond)
	for time.Now().Before(deadline) {
		var present bool
		if err := s.evaluate(ctx, `!!document.querySelector('div[role="feed"]')`, &present); err != nil {
			return false
		}
		if present {
			return true
		}
		s.sleep(ctx, 250)
	}
	return false
}

// listingLinks gathers the de-duplicated set of place-detail URLs visible
// in the DOM.
func (s *Scraper) listingLinks(ctx context.Context) []string {
	var links []string
	err := s.evaluate(ctx, `
		(function() {
			var anchors = document.querySelectorAll('a[href*="/maps/place/"]');
			var seen = {};
			var urls = [];
			for (var i = 0; i < anchors.length; i++) {
				var href = anchors[i].href;
				if (href && href.indexOf('/maps/place/') !== -1 && !seen[href]) {
					seen[href] = true;
					urls.push(href);
				}
			}
			return urls;
		})()
	`, &links)
	if err != nil {
		s.logger.Debug("[gmaps] link collection failed: %v", err)
		return nil
	}
	return links
}

// placeDetails is the raw DOM snapshot of one rendered place page. Labels
// are parsed on the Go side so the heuristics stay testable.
type placeDetails struct {
	Name        string `json:"name"`
	RatingLabel string `json:"ratingLabel"`
	ReviewLabel string `json:"reviewLabel"`
	Category    string `json:"category"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	HoursLabel  string `json:"hoursLabel"`
}

// extractDetails scrapes the currently rendered place page into a Store.
// Every field is independently best-effort: a missing control leaves its
// sentinel default in place.
func (s *Scraper) extractDetails(ctx context.Context) *models.Store {
	store := models.NewStore()

	var d placeDetails
	err := s.evaluate(ctx, `
		(function() {
			var out = {
				name: '', ratingLabel: '', reviewLabel: '', category: '',
				address: '', phone: '', website: '', hoursLabel: ''
			};

			try {
				var h1 = document.querySelector('h1');
				if (h1) out.name = h1.innerText.trim();
			} catch (e) {}

			try {
				var rating = document.querySelector('div[role="img"][aria-label*="star"]');
				if (rating) out.ratingLabel = rating.getAttribute('aria-label') || '';
			} catch (e) {}

			try {
				var reviews = document.querySelector('button[aria-label*="review"]');
				if (reviews) {
					out.reviewLabel = reviews.getAttribute('aria-label') || reviews.innerText || '';
				}
			} catch (e) {}

			try {
				var cat = document.querySelector('button[jsaction*="category"]');
				if (cat) out.category = cat.innerText.trim();
			} catch (e) {}

			try {
				var items = document.querySelectorAll('button[data-item-id], a[data-item-id]');
				for (var i = 0; i < items.length; i++) {
					var item = items[i];
					var id = item.getAttribute('data-item-id') || '';
					var aria = item.getAttribute('aria-label') || '';
					var text = aria || (item.innerText || '').trim();

					if (id.indexOf('address') === 0) {
						out.address = text.replace('Address: ', '');
					} else if (id.indexOf('phone') === 0) {
						out.phone = text.replace('Phone: ', '');
					} else if (id.indexOf('authority') === 0) {
						out.website = item.getAttribute('href') || text.replace('Website: ', '');
					}
				}
			} catch (e) {}

			if (!out.phone) {
				try {
					var phoneBtn = document.querySelector('button[aria-label^="Phone:"]');
					if (phoneBtn) {
						out.phone = (phoneBtn.getAttribute('aria-label') || '').replace('Phone: ', '').trim();
					}
				} catch (e) {}
			}

			try {
				var hours = document.querySelector(
					'div[aria-label*="Monday"], div[aria-label*="Sunday"], ' +
					'button[aria-label*="hours"], div[aria-label*="hour"]');
				if (hours) out.hoursLabel = hours.getAttribute('aria-label') || '';
			} catch (e) {}

			return out;
		})()
	`, &d)
	if err != nil {
		s.logger.Debug("[gmaps] detail extraction failed: %v", err)
		return store
	}

	if d.Name != "" {
		store.Name = d.Name
	}
	if rating, ok := parseRatingLabel(d.RatingLabel); ok {
		store.Rating = rating
	}
	store.TotalReviews = parseReviewLabel(d.ReviewLabel)
	if d.Category != "" {
		store.Category = d.Category
	}
	if d.Address != "" {
		store.Address = d.Address
	}
	if d.Phone != "" {
		store.Phone = d.Phone
	}
	if d.Website != "" {
		store.Website = d.Website
	}
	if hours := splitOpeningHours(d.HoursLabel); hours != "" {
		store.OpeningHours = hours
	}

	if loc, err := s.currentURL(ctx); err == nil {
		store.GoogleMapsURL = loc
		store.Latitude, store.Longitude = parseCoords(loc)
	}
	return store
}

func (s *Scraper) headingText(ctx context.Context) (string, error) {
	var text string
	err := s.evaluate(ctx, `
		(function() {
			var h1 = document.querySelector('h1');
			return h1 ? h1.innerText.trim() : '';
		})()
	`, &text)
	return text, err
}

func (s *Scraper) currentURL(ctx context.Context) (string, error) {
	var loc string
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := chromedp.Run(tctx, chromedp.Location(&loc))
	return loc, err
}

// evaluate runs a JS expression with a short timeout so one stuck field
// never blocks the rest of the pipeline.
func (s *Scraper) evaluate(ctx context.Context, expr string, out any) error {
	tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if out == nil {
		return chromedp.Run(tctx, chromedp.Evaluate(expr, nil))
	}
	return chromedp.Run(tctx, chromedp.Evaluate(expr, out))
}

// isResultsHeading reports whether a page heading reads as a results
// banner rather than a place name.
func isResultsHeading(heading string) bool {
	return strings.Contains(strings.ToLower(heading), "results")
}

// parseRatingLabel pulls the numeric rating out of a "<n> stars" label.
func parseRatingLabel(label string) (string, bool) {
	m := ratingRe.FindStringSubmatch(label)
	if len(m) < 2 {
		return "", false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatFloat(v, 'f', -1, 64), true
}

// parseReviewLabel pulls the review count out of a "<n> reviews" label,
// commas stripped.
func parseReviewLabel(label string) int {
	m := reviewsRe.FindStringSubmatch(label)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// parseCoords extracts "@lat,lon" from a place URL; both values are empty
// when the URL carries no coordinates.
func parseCoords(pageURL string) (lat, lon string) {
	m := coordRe.FindStringSubmatch(pageURL)
	if len(m) < 3 {
		return "", ""
	}
	return m[1], m[2]
}

// splitOpeningHours turns the one-line accessibility label into one line
// per weekday, with the trailing boilerplate stripped.
func splitOpeningHours(label string) string {
	if label == "" {
		return ""
	}
	text := strings.TrimPrefix(label, "Hours ")
	text = strings.ReplaceAll(text, ". Hide open hours for the week", "")

	starts := weekdayRe.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return ""
	}

	var days []string
	for i, span := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		day := strings.TrimRight(strings.TrimSpace(text[span[0]:end]), ";., ")
		if day != "" {
			days = append(days, day)
		}
	}
	return strings.Join(days, "\n")
}
