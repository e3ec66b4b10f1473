package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gmaps-store-scraper/models"
)

// GeocodeClient resolves free-text location input into postcode outcodes
// via the postcodes.io API.
type GeocodeClient struct {
	baseURL string
	http    *http.Client
}

// NewGeocodeClient creates a client against the given API base URL.
func NewGeocodeClient(baseURL string) *GeocodeClient {
	return &GeocodeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type placesResponse struct {
	Result []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"result"`
}

type outcodeRecord struct {
	Outcode       string   `json:"outcode"`
	AdminDistrict []string `json:"admin_district"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
}

type outcodesResponse struct {
	Result []outcodeRecord `json:"result"`
}

type outcodeResponse struct {
	Result outcodeRecord `json:"result"`
}

// Outcodes finds postcode areas around the named location: place search
// first, then nearby outcodes per place, plus a direct outcode lookup
// when the input itself looks like one. Results are deduplicated and
// sorted by (alpha prefix, numeric part).
func (c *GeocodeClient) Outcodes(ctx context.Context, location string) ([]*models.Outcode, error) {
	seen := make(map[string]struct{})
	var results []*models.Outcode

	var places placesResponse
	err := c.getJSON(ctx, fmt.Sprintf("/places?q=%s&limit=5", url.QueryEscape(location)), &places)
	if err == nil {
		for _, place := range places.Result {
			if place.Latitude == 0 && place.Longitude == 0 {
				continue
			}
			var nearby outcodesResponse
			path := fmt.Sprintf("/outcodes?lon=%f&lat=%f&limit=100&radius=25000",
				place.Longitude, place.Latitude)
			if err := c.getJSON(ctx, path, &nearby); err != nil {
				continue
			}
			for _, oc := range nearby.Result {
				appendOutcode(&results, seen, oc)
			}
		}
	}

	// Short alphanumeric input may itself be an outcode ("SW1", "M4").
	upper := strings.ToUpper(strings.TrimSpace(location))
	if len(upper) > 0 && len(upper) <= 4 && unicode.IsLetter(rune(upper[0])) {
		var direct outcodeResponse
		if err := c.getJSON(ctx, "/outcodes/"+url.PathEscape(upper), &direct); err == nil {
			appendOutcode(&results, seen, direct.Result)
		}
	}

	if len(results) == 0 && err != nil {
		return nil, fmt.Errorf("place search: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		ai, ni := splitOutcode(results[i].Outcode)
		aj, nj := splitOutcode(results[j].Outcode)
		if ai != aj {
			return ai < aj
		}
		return ni < nj
	})
	return results, nil
}

func appendOutcode(results *[]*models.Outcode, seen map[string]struct{}, oc outcodeRecord) {
	if oc.Outcode == "" {
		return
	}
	if _, dup := seen[oc.Outcode]; dup {
		return
	}
	seen[oc.Outcode] = struct{}{}
	*results = append(*results, &models.Outcode{
		Outcode:       oc.Outcode,
		AdminDistrict: strings.Join(oc.AdminDistrict, ", "),
		Latitude:      oc.Latitude,
		Longitude:     oc.Longitude,
	})
}

// splitOutcode separates "SW19" into ("SW", 19) for natural sorting.
func splitOutcode(oc string) (string, int) {
	var alpha, num strings.Builder
	for _, r := range oc {
		if unicode.IsLetter(r) {
			alpha.WriteRune(r)
		} else if unicode.IsDigit(r) {
			num.WriteRune(r)
		}
	}
	n := 0
	if num.Len() > 0 {
		n, _ = strconv.Atoi(num.String())
	}
	return alpha.String(), n
}

func (c *GeocodeClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
