// Package geo resolves event locations to map positions through a
// Nominatim-compatible search endpoint.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"eventcal/internal/event"
	"eventcal/internal/ids"
	appLog "eventcal/internal/log"
)

const DefaultSearchURL = "https://nominatim.openstreetmap.org/search"

var ErrNotFound = errors.New("geo: location not found")

// Geocoder looks up free-text addresses. Results, including misses, are
// cached for the process lifetime.
type Geocoder struct {
	SearchURL string
	UserAgent string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]result
}

type result struct {
	p   event.Point
	err error
}

func NewGeocoder(searchURL string, timeout time.Duration) *Geocoder {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Geocoder{
		SearchURL: searchURL,
		UserAgent: "eventcal/1.0",
		client:    &http.Client{Timeout: timeout},
		cache:     map[string]result{},
	}
}

type place struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup returns the best match for location.
func (g *Geocoder) Lookup(ctx context.Context, location string) (event.Point, error) {
	q := strings.TrimSpace(location)
	if q == "" {
		return event.Point{}, ErrNotFound
	}
	key := strings.ToLower(q)

	g.mu.Lock()
	if r, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return r.p, r.err
	}
	g.mu.Unlock()

	p, err := g.search(ctx, q)
	if err != nil && !errors.Is(err, ErrNotFound) {
		// Transport errors are not cached; the next open retries.
		return p, err
	}
	g.mu.Lock()
	g.cache[key] = result{p: p, err: err}
	g.mu.Unlock()
	return p, err
}

func (g *Geocoder) search(ctx context.Context, q string) (event.Point, error) {
	u, err := url.Parse(g.SearchURL)
	if err != nil {
		return event.Point{}, fmt.Errorf("geo: search URL: %w", err)
	}
	v := u.Query()
	v.Set("q", q)
	v.Set("format", "json")
	v.Set("limit", "1")
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return event.Point{}, err
	}
	req.Header.Set("User-Agent", g.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return event.Point{}, fmt.Errorf("geo: search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return event.Point{}, fmt.Errorf("geo: search: %s", resp.Status)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return event.Point{}, fmt.Errorf("geo: decode: %w", err)
	}
	if len(places) == 0 {
		return event.Point{}, ErrNotFound
	}
	lat, err1 := strconv.ParseFloat(places[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(places[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return event.Point{}, fmt.Errorf("geo: bad coordinates %q,%q", places[0].Lat, places[0].Lon)
	}
	appLog.Debug("geocoded", "q", q, "lat", lat, "lon", lon)
	return event.Point{Lat: lat, Lon: lon}, nil
}

// Strategy gives records with a location a map panel backed by a Geocoder.
type Strategy struct {
	Geocoder *Geocoder
	StyleURL string
	Zoom     int
}

var _ event.MapStrategy = (*Strategy)(nil)

func NewStrategy(g *Geocoder, styleURL string, zoom int) *Strategy {
	if zoom <= 0 {
		zoom = 15
	}
	return &Strategy{Geocoder: g, StyleURL: styleURL, Zoom: zoom}
}

func (s *Strategy) NewMap(r *event.Record) *event.MapView {
	if r.Location == "" {
		return nil
	}
	return &event.MapView{
		ID:       ids.Next("map"),
		StyleURL: s.StyleURL,
		Zoom:     s.Zoom,
	}
}

func (s *Strategy) Geocode(ctx context.Context, location string) (event.Point, error) {
	if s.Geocoder == nil {
		return event.Point{}, event.ErrNoMaps
	}
	return s.Geocoder.Lookup(ctx, location)
}
