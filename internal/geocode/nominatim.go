package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"

	"github.com/i474232898/mapsi/internal/geo"
	"github.com/i474232898/mapsi/internal/resilient"
)

const defaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimOptions configures the OSM Nominatim client.
type NominatimOptions struct {
	BaseURL   string
	UserAgent string
	// RequestsPerSecond caps outbound calls; the public instance allows 1.
	RequestsPerSecond float64
	Backoff           resilient.BackoffConfig
}

// Nominatim implements Geocoder against the OSM Nominatim API.
type Nominatim struct {
	name      string
	baseURL   string
	userAgent string
	doer      *resilient.Doer
}

func NewNominatim(client *http.Client, opts NominatimOptions) *Nominatim {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultNominatimURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mapsi/1.0"
	}
	if opts.Backoff.InitialInterval == 0 {
		opts.Backoff = resilient.DefaultBackoff
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Nominatim{
		name:      "nominatim",
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		doer: resilient.New("nominatim", resilient.Config{
			Client:  client,
			Backoff: opts.Backoff,
			Limiter: limiter,
		}),
	}
}

func (n *Nominatim) Name() string {
	return n.name
}

// nominatimPlace mirrors the relevant parts of the search/reverse payloads.
// Coordinates arrive as strings.
type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Class       string  `json:"class"`
	Category    string  `json:"category"`
	Importance  float64 `json:"importance"`
	Error       string  `json:"error"`
}

func (p nominatimPlace) class() string {
	// format=jsonv2 reports the class as "category".
	if p.Class != "" {
		return p.Class
	}
	return p.Category
}

func (p nominatimPlace) point() (orb.Point, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}
	return geo.LatLng(lat, lon), nil
}

func (n *Nominatim) Search(ctx context.Context, query string) (Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Place{}, ErrNotFound
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	var results []nominatimPlace
	if err := n.get(ctx, "/search", params, &results); err != nil {
		return Place{}, err
	}
	if len(results) == 0 {
		return Place{}, ErrNotFound
	}

	top := results[0]
	pt, err := top.point()
	if err != nil {
		return Place{}, transportError(n.name, err)
	}

	return Place{
		Point:       pt,
		DisplayName: top.DisplayName,
		Class:       top.class(),
		Importance:  top.Importance,
		Provider:    n.name,
	}, nil
}

func (n *Nominatim) Reverse(ctx context.Context, p orb.Point, zoom int) (Place, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(p.Lat(), 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(p.Lon(), 'f', -1, 64))
	params.Set("zoom", strconv.Itoa(zoom))

	var result nominatimPlace
	if err := n.get(ctx, "/reverse", params, &result); err != nil {
		return Place{}, err
	}
	if result.Error != "" || result.DisplayName == "" {
		return Place{}, ErrNotFound
	}

	place := Place{
		Point:       p,
		DisplayName: result.DisplayName,
		Class:       result.class(),
		Importance:  result.Importance,
		Provider:    n.name,
	}
	if pt, err := result.point(); err == nil {
		place.Point = pt
	}
	return place, nil
}

func (n *Nominatim) get(ctx context.Context, path string, params url.Values, out any) error {
	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", n.baseURL, path, params.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", n.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := n.doer.Do(ctx, buildRequest)
	if err != nil {
		return transportError(n.name, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportError(n.name, fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}
