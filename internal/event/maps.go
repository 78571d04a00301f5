package event

import (
	"context"
	"errors"

	appLog "eventcal/internal/log"
)

// Point is a geocoded map position.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MapView is the per-record map panel. It is created on the first ShowMap
// and reused afterwards.
type MapView struct {
	ID       string `json:"id"`
	StyleURL string `json:"style_url,omitempty"`
	Zoom     int    `json:"zoom"`
	Open     bool   `json:"open"`
	// Center is nil until a geocode succeeds.
	Center *Point `json:"center,omitempty"`
}

// MapStrategy supplies the map capability of a record. Records without a
// location capability use NoMaps.
type MapStrategy interface {
	NewMap(r *Record) *MapView
	Geocode(ctx context.Context, location string) (Point, error)
}

var ErrNoMaps = errors.New("event: maps not configured")

// NoMaps is the strategy for calendars without map support.
type NoMaps struct{}

func (NoMaps) NewMap(*Record) *MapView { return nil }

func (NoMaps) Geocode(context.Context, string) (Point, error) {
	return Point{}, ErrNoMaps
}

// HasMap reports whether the record can show a map at all.
func (r *Record) HasMap() bool {
	if r.Location == "" {
		return false
	}
	_, none := r.maps.(NoMaps)
	return !none
}

// ShowMap toggles the record's map view and geocodes when it opens. It
// returns a copy of the view, nil when the record has no map capability.
func (r *Record) ShowMap(ctx context.Context) *MapView {
	if !r.HasMap() {
		return nil
	}
	r.mapMu.Lock()
	defer r.mapMu.Unlock()
	if r.mapView == nil {
		r.mapView = r.maps.NewMap(r)
		if r.mapView == nil {
			return nil
		}
	}
	r.mapView.Open = !r.mapView.Open
	if r.mapView.Open && r.mapView.Center == nil {
		r.geocode(ctx)
	}
	v := *r.mapView
	return &v
}

// MapView returns a copy of the cached map view, nil before the first
// ShowMap.
func (r *Record) MapView() *MapView {
	r.mapMu.Lock()
	defer r.mapMu.Unlock()
	if r.mapView == nil {
		return nil
	}
	v := *r.mapView
	return &v
}

// Geocode centers the record's map on its location. Failures are logged
// and leave the map uncentered.
func (r *Record) Geocode(ctx context.Context) {
	r.mapMu.Lock()
	defer r.mapMu.Unlock()
	r.geocode(ctx)
}

func (r *Record) geocode(ctx context.Context) {
	if r.mapView == nil || r.Location == "" {
		return
	}
	p, err := r.maps.Geocode(ctx, r.Location)
	if err != nil {
		appLog.Error("geocode failed", err, "location", r.Location, "event", r.Name)
		return
	}
	r.mapView.Center = &p
}
