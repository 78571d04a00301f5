package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"eventcal/internal/calendar"
	"eventcal/internal/capture"
	"eventcal/internal/config"
	"eventcal/internal/datekey"
	"eventcal/internal/event"
	"eventcal/internal/feed"
	"eventcal/internal/index"
	appLog "eventcal/internal/log"
	"eventcal/internal/metric"
	"eventcal/internal/render"
	"eventcal/internal/state"
)

const (
	tzCookie   = "eventcal_tz"
	zoneCookie = "eventcal_zone"

	previewTTL = time.Minute
)

var errNotLoaded = errors.New("web: feed not loaded yet")

// PreviewFunc captures url as a PNG.
type PreviewFunc func(ctx context.Context, url string) ([]byte, error)

// Options carries the collaborators of a Server. Zero values pick the
// production implementations.
type Options struct {
	Maps    event.MapStrategy
	Preview PreviewFunc
	Now     func() time.Time
}

// Server serves the calendar as HTML and JSON. Feed rows are shared; every
// request builds its own calendar on top of a per-zone index cache.
type Server struct {
	cfg     *config.Config
	mux     *http.ServeMux
	calZone *time.Location
	viewer  *time.Location
	min     datekey.Key
	max     datekey.Key
	maps    event.MapStrategy
	preview PreviewFunc
	now     func() time.Time

	mu      sync.RWMutex
	rows    []feed.Row
	loaded  bool
	indexes map[string]*index.Index

	previewMu  sync.Mutex
	previewPNG []byte
	previewAt  time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, opts Options) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		calZone: resolveLocationOrLocal(cfg.Timezone),
		viewer:  resolveLocationOrLocal(cfg.ViewerTimezone),
		maps:    opts.Maps,
		preview: opts.Preview,
		now:     opts.Now,
		indexes: map[string]*index.Index{},
	}
	if k, err := datekey.Parse(cfg.Min); err == nil {
		s.min = k
	}
	if k, err := datekey.Parse(cfg.Max); err == nil {
		s.max = k
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.preview == nil {
		s.preview = s.capture
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := s.instrument(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

var routes = map[string]bool{
	"/": true, "/health": true, "/metrics": true, "/preview.png": true, "/static/calendar.css": true,
	"/api/state": true, "/api/events": true, "/api/search": true, "/api/ics": true, "/api/map": true,
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		if !routes[route] {
			route = "other"
		}
		metric.Request(route, rec.status, time.Since(start))
	})
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("web: shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/static/calendar.css", s.handleStylesheet)
	s.mux.HandleFunc("/api/state", s.handleState)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/ics", s.handleICS)
	s.mux.HandleFunc("/api/map", s.handleMap)
	s.mux.HandleFunc("/preview.png", s.handlePreview)
	s.mux.HandleFunc("/", s.handlePage)
}

// Swap installs freshly loaded feed rows and drops the per-zone indexes.
func (s *Server) Swap(rows []feed.Row) {
	s.mu.Lock()
	s.rows = rows
	s.loaded = true
	s.indexes = map[string]*index.Index{}
	s.mu.Unlock()

	s.previewMu.Lock()
	s.previewPNG = nil
	s.previewMu.Unlock()
	appLog.Info("feed rows swapped", "rows", len(rows))
}

// Refresh loads the feed from src and swaps it in. On failure the
// previous rows stay in place.
func (s *Server) Refresh(ctx context.Context, src feed.Source) error {
	start := time.Now()
	rows, err := src.Rows(ctx, s.cfg.Feed.URL)
	metric.FeedLoad(time.Since(start), err)
	if err != nil {
		appLog.Error("feed refresh failed", err)
		return err
	}
	s.Swap(rows)
	return nil
}

func (s *Server) loadedRows(context.Context, string) ([]feed.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, errNotLoaded
	}
	return s.rows, nil
}

func (s *Server) isLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// indexFor returns the shared index of the loaded rows displayed in zone.
func (s *Server) indexFor(zone *time.Location) *index.Index {
	key := zone.String()
	s.mu.RLock()
	ix, ok := s.indexes[key]
	rows := s.rows
	s.mu.RUnlock()
	if ok {
		return ix
	}

	ix = index.Build(rows, index.Options{
		Columns:      s.cfg.Feed.Columns,
		CalendarZone: s.calZone,
		ViewerZone:   zone,
		Min:          s.min,
		Max:          s.max,
		Maps:         s.maps,
	})
	metric.IndexBuilt(ix.Len(), len(ix.Keys()))

	s.mu.Lock()
	if existing, ok := s.indexes[key]; ok {
		ix = existing
	} else {
		s.indexes[key] = ix
	}
	s.mu.Unlock()
	return ix
}

// viewerZone reads the viewer's zone from ?tz=, then the tz cookie, then
// the configured default. A valid ?tz= is remembered in the cookie.
func (s *Server) viewerZone(w http.ResponseWriter, r *http.Request) *time.Location {
	if name := r.URL.Query().Get("tz"); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			http.SetCookie(w, &http.Cookie{Name: tzCookie, Value: url.QueryEscape(name), Path: "/", SameSite: http.SameSiteLaxMode})
			return loc
		}
		appLog.Debug("ignoring unknown tz parameter", "tz", name)
	}
	if c, err := r.Cookie(tzCookie); err == nil {
		if name, err := url.QueryUnescape(c.Value); err == nil {
			if loc, err := time.LoadLocation(name); err == nil {
				return loc
			}
		}
	}
	return s.viewer
}

// locale prefers the configured locale, then the first Accept-Language tag.
func (s *Server) locale(r *http.Request) string {
	if s.cfg.Locale != "" {
		return s.cfg.Locale
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

// cookieZones keeps the zone mismatch answer in a cookie, scoped to the
// zone pair it was given for.
type cookieZones struct {
	r *http.Request
	w http.ResponseWriter
}

func (z cookieZones) Choice(calendarZone, viewerZone string) (calendar.ZoneChoice, bool) {
	c, err := z.r.Cookie(zoneCookie)
	if err != nil {
		return "", false
	}
	v, err := url.QueryUnescape(c.Value)
	if err != nil {
		return "", false
	}
	parts := strings.Split(v, "|")
	if len(parts) != 3 || parts[0] != calendarZone || parts[1] != viewerZone {
		return "", false
	}
	choice, err := calendar.ParseZoneChoice(parts[2])
	if err != nil {
		return "", false
	}
	return choice, true
}

func (z cookieZones) Remember(calendarZone, viewerZone string, c calendar.ZoneChoice) {
	http.SetCookie(z.w, &http.Cookie{
		Name:     zoneCookie,
		Value:    url.QueryEscape(calendarZone + "|" + viewerZone + "|" + string(c)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// session is one request's calendar.
type session struct {
	cal *calendar.Calendar
	// zone is the display zone, nil while the zone question is open.
	zone *time.Location
}

func (s *Server) open(w http.ResponseWriter, r *http.Request, fragment string) session {
	viewer := s.viewerZone(w, r)
	zones := cookieZones{r: r, w: w}
	opts := calendar.Options{
		ContainerID: s.cfg.ContainerID,
		URL:         s.cfg.Feed.URL,
		TimeZone:    s.calZone,
		ViewerZone:  viewer,
		Locale:      s.locale(r),
		Columns:     s.cfg.Feed.Columns,
		Min:         s.min,
		Max:         s.max,
		Fragment:    fragment,
		Maps:        s.maps,
		Zones:       zones,
		Now:         s.now,
	}

	var zone *time.Location
	switch {
	case s.calZone.String() == viewer.String():
		zone = viewer
	default:
		if choice, ok := zones.Choice(s.calZone.String(), viewer.String()); ok {
			zone = viewer
			if choice == calendar.KeepCalendarZone {
				zone = s.calZone
			}
		}
	}
	if zone != nil && s.isLoaded() {
		opts.ViewerZone = zone
		opts.Index = s.indexFor(zone)
	} else {
		opts.Source = feed.SourceFunc(s.loadedRows)
	}

	cal := calendar.New(opts)
	if err := cal.Start(r.Context()); err != nil && !errors.Is(err, errNotLoaded) {
		appLog.Error("calendar start failed", err)
	}
	return session{cal: cal, zone: zone}
}

// apply runs the action named by ?a= against the calendar.
func apply(ctx context.Context, cal *calendar.Calendar, q url.Values) error {
	switch a := q.Get("a"); a {
	case "":
	case "prev":
		cal.Prev()
	case "next":
		cal.Next()
	case "escape":
		cal.Escape()
	case "view":
		v, err := state.ParseView(q.Get("view"))
		if err != nil {
			return err
		}
		cal.SelectView(v)
	case "pick":
		if _, _, err := cal.PickText(q.Get("pick")); err != nil {
			return err
		}
	case "search":
		if c, ok := bestCandidate(cal.Search(q.Get("q")), q.Get("q")); ok {
			cal.FindEvent(c)
		}
	case "answer":
		return cal.Answer(ctx, q.Get("choice"))
	default:
		return fmt.Errorf("unknown action %q", a)
	}
	return nil
}

// bestCandidate prefers an exact (case-insensitive) name match over the
// first substring match.
func bestCandidate(cands []index.Candidate, q string) (index.Candidate, bool) {
	if len(cands) == 0 {
		return index.Candidate{}, false
	}
	for _, c := range cands {
		if strings.EqualFold(c.Name, strings.TrimSpace(q)) {
			return c, true
		}
	}
	return cands[0], true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStylesheet(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(render.Stylesheet)
}

// handlePage renders the calendar for ?h=<fragment>, after applying ?a=.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	sess := s.open(w, r, q.Get("h"))
	if err := apply(r.Context(), sess.cal, q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WriteHTML(w, render.Build(sess.cal.Snapshot())); err != nil {
		appLog.Error("page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

type stateResponse struct {
	Fragment string      `json:"fragment"`
	Page     render.Page `json:"page"`
}

// handleState applies an action and returns the resulting page tree.
//
// GET /api/state?h=%23calendar%2Fmonth%2F2024-03-01&a=next
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess := s.open(w, r, q.Get("h"))
	if err := apply(r.Context(), sess.cal, q); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{
		Fragment: sess.cal.Fragment(),
		Page:     render.Build(sess.cal.Snapshot()),
	})
}

// eventDTO is the JSON view of a record.
type eventDTO struct {
	Index    int               `json:"index"`
	Date     datekey.Key       `json:"date"`
	Name     string            `json:"name"`
	About    string            `json:"about,omitempty"`
	Start    string            `json:"start,omitempty"`
	End      string            `json:"end,omitempty"`
	Location string            `json:"location,omitempty"`
	Sponsor  string            `json:"sponsor,omitempty"`
	TimeZone string            `json:"time_zone"`
	UID      string            `json:"uid"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// handleEvents lists the events of one viewer-local day.
//
// GET /api/events?date=2024-03-10
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	key, err := datekey.Parse(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	sess := s.open(w, r, "")
	recs := sess.cal.Events(key)
	out := make([]eventDTO, 0, len(recs))
	for i, rec := range recs {
		out = append(out, eventDTO{
			Index:    i,
			Date:     rec.Date,
			Name:     rec.Name,
			About:    rec.About,
			Start:    rec.Start,
			End:      rec.End,
			Location: rec.Location,
			Sponsor:  rec.Sponsor,
			TimeZone: rec.TimeZone,
			UID:      rec.UID(),
			Extra:    rec.Extra,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSearch returns autocomplete candidates.
//
// GET /api/search?q=gala
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.open(w, r, "")
	cands := sess.cal.Search(r.URL.Query().Get("q"))
	if cands == nil {
		cands = []index.Candidate{}
	}
	writeJSON(w, http.StatusOK, cands)
}

// record resolves ?date=&i= to an event of the request's calendar.
func (s *Server) record(w http.ResponseWriter, r *http.Request) (*event.Record, session, bool) {
	q := r.URL.Query()
	key, err := datekey.Parse(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return nil, session{}, false
	}
	i := parseIntDefault(q.Get("i"), 0)
	sess := s.open(w, r, "")
	rec, ok := sess.cal.Event(key, i)
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, sess, false
	}
	return rec, sess, true
}

// handleICS downloads one event as an ICS file.
//
// GET /api/ics?date=2024-03-10&i=0
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	rec, sess, ok := s.record(w, r)
	if !ok {
		return
	}
	loc := sess.zone
	if loc == nil {
		loc = s.calZone
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.Filename()+`"`)
	_, _ = w.Write([]byte(rec.ICS(loc)))
}

// handleMap opens the event's map panel and returns it with its center.
//
// GET /api/map?date=2024-03-10&i=0
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	rec, _, ok := s.record(w, r)
	if !ok {
		return
	}
	if !rec.HasMap() {
		writeError(w, http.StatusNotFound, "event has no map")
		return
	}
	view := rec.MapView()
	if view == nil || !view.Open {
		view = rec.ShowMap(r.Context())
	} else if view.Center == nil {
		rec.Geocode(r.Context())
		view = rec.MapView()
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePreview serves a PNG snapshot of the month view, re-captured at
// most once per previewTTL.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Preview.Enabled {
		http.NotFound(w, r)
		return
	}
	s.previewMu.Lock()
	png, at := s.previewPNG, s.previewAt
	s.previewMu.Unlock()

	if png == nil || time.Since(at) > previewTTL {
		var err error
		png, err = s.preview(r.Context(), s.selfURL())
		if err != nil {
			appLog.Error("preview capture failed", err)
			http.Error(w, "preview unavailable", http.StatusServiceUnavailable)
			return
		}
		s.previewMu.Lock()
		s.previewPNG, s.previewAt = png, time.Now()
		s.previewMu.Unlock()
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

func (s *Server) capture(ctx context.Context, u string) ([]byte, error) {
	return capture.PNG(ctx, capture.Options{
		URL:        u,
		OutputPath: s.cfg.Preview.Path,
		Width:      s.cfg.Preview.Width,
		Height:     s.cfg.Preview.Height,
	})
}

// selfURL is the loopback address of the month page.
func (s *Server) selfURL() string {
	host, port, err := net.SplitHostPort(s.cfg.Listen)
	if err != nil {
		host, port = "127.0.0.1", "8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/"}
	if s.basicAuthEnabled() {
		u.User = url.UserPassword(s.cfg.BasicAuth.Username, s.cfg.BasicAuth.Password)
	}
	return u.String()
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
