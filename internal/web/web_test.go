package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"eventcal/internal/config"
	"eventcal/internal/event"
	"eventcal/internal/feed"
)

var testRows = []feed.Row{
	{"date": "2024-03-10", "name": "Brunch", "start": "11:00 AM", "end": "1:00 PM", "location": "Main St"},
	{"date": "2024-03-12", "name": "Gala", "start": "7:00 PM", "location": "City Hall"},
	{"date": "2024-03-12", "name": "Gallery walk", "start": "5:00 PM"},
}

type fakeMaps struct{}

func (fakeMaps) NewMap(*event.Record) *event.MapView {
	return &event.MapView{ID: "map-1", Zoom: 15}
}

func (fakeMaps) Geocode(context.Context, string) (event.Point, error) {
	return event.Point{Lat: 1, Lon: 2}, nil
}

func newTestServer(t *testing.T, mut func(*config.Config, *Options)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Feed.URL = "https://example.com/events.csv"
	cfg.ViewerTimezone = "America/New_York"
	now := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	opts := Options{Now: func() time.Time { return now }}
	if mut != nil {
		mut(cfg, &opts)
	}
	return NewServer(cfg, opts)
}

func get(t *testing.T, h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type statePayload struct {
	Fragment string `json:"fragment"`
	Page     struct {
		Ready      bool   `json:"ready"`
		View       string `json:"view"`
		ViewerZone string `json:"viewer_zone"`
		Alert      *struct {
			Kind string `json:"kind"`
		} `json:"alert"`
	} `json:"page"`
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) statePayload {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var p statePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := get(t, h, "/health")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestPageBeforeLoad(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `data-ready="false"`) {
		t.Fatalf("expected not-ready page:\n%s", rec.Body.String())
	}
}

func TestPageAndActions(t *testing.T) {
	s := newTestServer(t, nil)
	s.Swap(testRows)
	h := s.Handler()

	rec := get(t, h, "/?h="+url.QueryEscape("#calendar/month/2024-03-01"))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `data-ready="true"`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "March 2024") {
		t.Fatalf("missing month title")
	}

	tcs := []struct {
		name  string
		query string
		want  string
	}{
		{"pick", "a=pick&pick=2024-03-10", "#calendar/day/2024-03-10"},
		{"search exact", "a=search&q=gala", "#calendar/day/2024-03-12"},
		{"week", "h=" + url.QueryEscape("#calendar/day/2024-03-12") + "&a=view&view=week", "#calendar/week/2024-03-12"},
		{"escape", "h=" + url.QueryEscape("#calendar/day/2024-03-12") + "&a=escape", "#calendar/month/2024-03-12"},
	}
	for _, tc := range tcs {
		p := decodeState(t, get(t, h, "/api/state?"+tc.query))
		if p.Fragment != tc.want {
			t.Fatalf("%s: fragment=%q want %q", tc.name, p.Fragment, tc.want)
		}
	}

	if rec := get(t, h, "/api/state?a=pick&pick=someday+maybe+never"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unreadable date status=%d", rec.Code)
	}
	if rec := get(t, h, "/api/state?a=jump"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action status=%d", rec.Code)
	}
}

func TestZoneMismatchAnswer(t *testing.T) {
	s := newTestServer(t, nil)
	s.Swap(testRows)
	h := s.Handler()

	p := decodeState(t, get(t, h, "/api/state?tz=Europe/Berlin"))
	if p.Page.Ready || p.Page.Alert == nil || p.Page.Alert.Kind != "zone-mismatch" {
		t.Fatalf("first visit = %+v", p)
	}

	rec := get(t, h, "/api/state?tz=Europe/Berlin&a=answer&choice=viewer")
	p = decodeState(t, rec)
	if !p.Page.Ready || p.Page.Alert != nil || p.Page.ViewerZone != "Europe/Berlin" {
		t.Fatalf("after answer = %+v", p)
	}

	var cookies []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == zoneCookie || c.Name == tzCookie {
			cookies = append(cookies, c)
		}
	}
	if len(cookies) != 2 {
		t.Fatalf("cookies = %v", rec.Result().Cookies())
	}

	p = decodeState(t, get(t, h, "/api/state", cookies...))
	if !p.Page.Ready || p.Page.Alert != nil || p.Page.ViewerZone != "Europe/Berlin" {
		t.Fatalf("remembered = %+v", p)
	}
}

func TestEventsAndSearch(t *testing.T) {
	s := newTestServer(t, nil)
	s.Swap(testRows)
	h := s.Handler()

	rec := get(t, h, "/api/events?date=2024-03-12")
	var events []eventDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 2 || events[0].Name != "Gallery walk" || events[1].Name != "Gala" {
		t.Fatalf("events = %+v", events)
	}
	if rec := get(t, h, "/api/events?date=March"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d", rec.Code)
	}

	rec = get(t, h, "/api/search?q=ga")
	var cands []struct {
		Date string `json:"date"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cands); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("candidates = %+v", cands)
	}
}

func TestICSDownload(t *testing.T) {
	s := newTestServer(t, nil)
	s.Swap(testRows)
	rec := get(t, s.Handler(), "/api/ics?date=2024-03-10&i=0")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "brunch-2024-03-10.ics") {
		t.Fatalf("Content-Disposition=%q", cd)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") || !strings.Contains(rec.Body.String(), "BEGIN:VEVENT") {
		t.Fatalf("body=%s", rec.Body.String())
	}
	if rec := get(t, s.Handler(), "/api/ics?date=2024-03-10&i=5"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing event status=%d", rec.Code)
	}
}

func TestMap(t *testing.T) {
	s := newTestServer(t, nil)
	s.Swap(testRows)
	if rec := get(t, s.Handler(), "/api/map?date=2024-03-10&i=0"); rec.Code != http.StatusNotFound {
		t.Fatalf("without maps status=%d", rec.Code)
	}

	s = newTestServer(t, func(_ *config.Config, o *Options) { o.Maps = fakeMaps{} })
	s.Swap(testRows)
	h := s.Handler()
	for range 2 {
		rec := get(t, h, "/api/map?date=2024-03-10&i=0")
		var view event.MapView
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			t.Fatalf("decode: %v (%s)", err, rec.Body.String())
		}
		if !view.Open || view.Center == nil || view.Center.Lat != 1 {
			t.Fatalf("view = %+v", view)
		}
	}
}

func TestPreview(t *testing.T) {
	calls := 0
	var gotURL string
	s := newTestServer(t, func(c *config.Config, o *Options) {
		c.Listen = ":9999"
		c.Preview.Enabled = true
		o.Preview = func(_ context.Context, u string) ([]byte, error) {
			calls++
			gotURL = u
			return []byte("png"), nil
		}
	})
	h := s.Handler()
	for range 2 {
		rec := get(t, h, "/preview.png")
		if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" || rec.Body.String() != "png" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
	}
	if calls != 1 || gotURL != "http://127.0.0.1:9999/" {
		t.Fatalf("calls=%d url=%q", calls, gotURL)
	}

	disabled := newTestServer(t, nil)
	if rec := get(t, disabled.Handler(), "/preview.png"); rec.Code != http.StatusNotFound {
		t.Fatalf("disabled status=%d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config, _ *Options) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})
	h := s.Handler()
	if rec := get(t, h, "/"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status=%d", rec.Code)
	}
	if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health status=%d", rec.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/static/calendar.css", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status=%d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil).Handler()
	get(t, h, "/health")
	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "eventcal_http_requests_total") {
		t.Fatalf("metrics status=%d", rec.Code)
	}
}

func TestRefreshKeepsRowsOnFailure(t *testing.T) {
	s := newTestServer(t, nil)
	ok := feed.SourceFunc(func(context.Context, string) ([]feed.Row, error) { return testRows, nil })
	if err := s.Refresh(context.Background(), ok); err != nil {
		t.Fatal(err)
	}
	bad := feed.SourceFunc(func(context.Context, string) ([]feed.Row, error) { return nil, errors.New("offline") })
	if err := s.Refresh(context.Background(), bad); err == nil {
		t.Fatal("expected error")
	}
	p := decodeState(t, get(t, s.Handler(), "/api/state"))
	if !p.Page.Ready {
		t.Fatalf("rows lost after failed refresh: %+v", p)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("a", "a") || secureCompare("a", "b") || secureCompare("a", "ab") {
		t.Fatal("secureCompare")
	}
}
