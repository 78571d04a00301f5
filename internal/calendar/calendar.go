// Package calendar assembles one calendar instance: view state, fragment
// router, alert box and event index, loaded from a feed source.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"eventcal/internal/alert"
	"eventcal/internal/datekey"
	"eventcal/internal/event"
	"eventcal/internal/feed"
	"eventcal/internal/ids"
	"eventcal/internal/index"
	appLog "eventcal/internal/log"
	"eventcal/internal/metric"
	"eventcal/internal/router"
	"eventcal/internal/state"
)

const DefaultTimeZone = "America/New_York"

var (
	ErrNoSource       = errors.New("calendar: no feed source configured")
	ErrZoneUnresolved = errors.New("calendar: time zone choice pending")
)

type Options struct {
	// ContainerID names the calendar in fragments; empty generates one.
	ContainerID string
	URL         string
	// TimeZone is the zone the feed is written in (default America/New_York).
	TimeZone *time.Location
	// ViewerZone is the viewer's zone (default time.Local).
	ViewerZone *time.Location
	Locale     string
	Columns    event.Columns
	Min, Max   datekey.Key
	// Fragment is the address fragment the calendar opens on.
	Fragment string

	Ready       func(*Calendar)
	DateChanged func(state.Change)
	ViewChanged func(state.Change)

	Render event.RenderFunc
	Maps   event.MapStrategy
	Source feed.Source
	// Index, when set, is used as loaded data and Source is never called.
	Index *index.Index
	Zones ZoneCache
	Now   func() time.Time
}

// Calendar is safe for concurrent use. Hooks run after the internal lock
// is released, so they may call back into the calendar.
type Calendar struct {
	mu      sync.Mutex
	opts    Options
	id      string
	calZone *time.Location
	viewer  *time.Location
	// zone is the display zone once the mismatch question is settled.
	zone *time.Location

	loc *router.MemoryLocation
	st  *state.State
	rt  *router.Router
	ix  *index.Index
	box *alert.Box

	ready   bool
	pending []func()
}

func New(opts Options) *Calendar {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TimeZone == nil {
		opts.TimeZone = defaultZone()
	}
	if opts.ViewerZone == nil {
		opts.ViewerZone = time.Local
	}
	opts.Columns = opts.Columns.WithDefaults()

	c := &Calendar{
		opts:    opts,
		id:      opts.ContainerID,
		calZone: opts.TimeZone,
		viewer:  opts.ViewerZone,
		ix:      index.Empty(),
		box:     alert.NewBox(nil),
	}
	if c.id == "" {
		c.id = ids.Next("calendar")
	}

	today := datekey.FromTime(opts.Now().In(c.viewer))
	c.st = state.New(today, state.Options{
		Min:          opts.Min,
		Max:          opts.Max,
		FirstWeekday: datekey.FirstWeekday(opts.Locale),
		Hooks: state.Hooks{
			DateChanged: c.deferred(opts.DateChanged),
			ViewChanged: c.deferred(opts.ViewChanged),
		},
		Alert: c.raise,
	})
	c.loc = router.NewMemoryLocation(opts.Fragment)
	c.rt = router.New(c.id, c.loc, c.st, c.raise)
	return c
}

func defaultZone() *time.Location {
	loc, err := time.LoadLocation(DefaultTimeZone)
	if err != nil {
		appLog.Error("calendar: default time zone unavailable, using UTC", err)
		return time.UTC
	}
	return loc
}

// deferred queues a state hook until the lock is released.
func (c *Calendar) deferred(h func(state.Change)) func(state.Change) {
	if h == nil {
		return nil
	}
	return func(ch state.Change) {
		c.pending = append(c.pending, func() { h(ch) })
	}
}

func (c *Calendar) do(fn func()) {
	c.mu.Lock()
	fn()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (c *Calendar) raise(a alert.Alert) {
	metric.Alert(string(a.Kind))
	appLog.Debug("alert", "calendar", c.id, "kind", a.Kind, "message", a.Message)
	c.box.Show(a)
}

func (c *Calendar) ID() string { return c.id }

// Start applies the opening fragment and loads. When the calendar and
// viewer zones differ and no choice is remembered, it raises a
// ZoneMismatch alert instead and waits for ChooseZone.
func (c *Calendar) Start(ctx context.Context) error {
	if c.opts.Index != nil {
		c.mu.Lock()
		c.zone = c.viewer
		c.mu.Unlock()
		c.install(c.opts.Index)
		c.do(func() { c.rt.HashChanged(c.loc.Hash()) })
		return nil
	}

	c.do(func() { c.rt.HashChanged(c.loc.Hash()) })

	c.mu.Lock()
	zone, ok := c.resolveZone()
	if ok {
		c.zone = zone
	}
	c.mu.Unlock()
	if !ok {
		c.raise(c.zoneAlert())
		return nil
	}
	return c.Load(ctx)
}

func (c *Calendar) resolveZone() (*time.Location, bool) {
	if c.zone != nil {
		return c.zone, true
	}
	if c.calZone.String() == c.viewer.String() {
		return c.viewer, true
	}
	if c.opts.Zones != nil {
		if choice, ok := c.opts.Zones.Choice(c.calZone.String(), c.viewer.String()); ok {
			return c.zoneFor(choice), true
		}
	}
	return nil, false
}

func (c *Calendar) zoneFor(choice ZoneChoice) *time.Location {
	if choice == KeepCalendarZone {
		return c.calZone
	}
	return c.viewer
}

func (c *Calendar) zoneAlert() alert.Alert {
	return alert.Alert{
		Kind: alert.ZoneMismatch,
		Message: fmt.Sprintf("This calendar's events are listed in %s, but your time zone is %s. Which time zone should be used?",
			c.calZone, c.viewer),
		Choices: []alert.Choice{
			{ID: string(KeepCalendarZone), Label: c.calZone.String()},
			{ID: string(UseViewerZone), Label: c.viewer.String()},
		},
	}
}

// ChooseZone answers the zone mismatch alert, remembers the answer for the
// session and loads.
func (c *Calendar) ChooseZone(ctx context.Context, choice ZoneChoice) error {
	if _, err := ParseZoneChoice(string(choice)); err != nil {
		return err
	}
	c.mu.Lock()
	c.zone = c.zoneFor(choice)
	c.mu.Unlock()
	if c.opts.Zones != nil {
		c.opts.Zones.Remember(c.calZone.String(), c.viewer.String(), choice)
	}
	if a, ok := c.box.Current(); ok && a.Kind == alert.ZoneMismatch {
		c.box.Dismiss()
	}
	return c.Load(ctx)
}

// Load fetches rows from the source and installs a fresh index. On
// failure the calendar keeps its previous data and stays not ready.
func (c *Calendar) Load(ctx context.Context) error {
	if c.opts.Source == nil {
		return ErrNoSource
	}
	c.mu.Lock()
	zone, ok := c.resolveZone()
	if ok {
		c.zone = zone
	}
	c.mu.Unlock()
	if !ok {
		return ErrZoneUnresolved
	}

	begin := time.Now()
	rows, err := c.opts.Source.Rows(ctx, c.opts.URL)
	metric.FeedLoad(time.Since(begin), err)
	if err != nil {
		appLog.Error("calendar load failed", err, "calendar", c.id)
		return fmt.Errorf("calendar: load: %w", err)
	}

	c.install(index.Build(rows, index.Options{
		Columns:      c.opts.Columns,
		CalendarZone: c.calZone,
		ViewerZone:   zone,
		Min:          c.opts.Min,
		Max:          c.opts.Max,
		Render:       c.opts.Render,
		Maps:         c.opts.Maps,
	}))
	return nil
}

// LoadAsync runs Load in the background. The channel receives its result.
func (c *Calendar) LoadAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- c.Load(ctx)
	}()
	return done
}

func (c *Calendar) install(ix *index.Index) {
	c.do(func() {
		c.ix = ix
		c.st.SetEvents(ix.Events)
		c.rt.SetEvents(ix)
		c.st.SetBounds(ix.Bounds())
		if c.rt.Started() {
			c.loc.Replace(c.rt.Fragment().String())
		}
		c.ready = true
		metric.IndexBuilt(ix.Len(), len(ix.Keys()))
		if c.opts.Ready != nil {
			c.pending = append(c.pending, func() { c.opts.Ready(c) })
		}
	})
}

// Ready reports whether an index has been installed.
func (c *Calendar) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *Calendar) Prev() { c.do(c.rt.Prev) }

func (c *Calendar) Next() { c.do(c.rt.Next) }

func (c *Calendar) SelectView(v state.View) { c.do(func() { c.rt.SelectView(v) }) }

func (c *Calendar) Escape() { c.do(c.rt.Escape) }

func (c *Calendar) Go(v state.View, key datekey.Key) { c.do(func() { c.rt.Go(v, key) }) }

func (c *Calendar) FindEvent(cand index.Candidate) { c.do(func() { c.rt.FindEvent(cand) }) }

// HashChanged feeds an externally edited fragment to the router.
func (c *Calendar) HashChanged(hash string) {
	c.do(func() { c.loc.SetHash(hash) })
}

// Back steps back through fragment history.
func (c *Calendar) Back() (ok bool) {
	c.do(func() { ok = c.loc.Back() })
	return ok
}

func (c *Calendar) Pick(key datekey.Key) (ok bool) {
	c.do(func() { ok = c.rt.Pick(key) })
	return ok
}

// PickText reads a typed date relative to the calendar's clock.
func (c *Calendar) PickText(text string) (key datekey.Key, ok bool, err error) {
	now := c.opts.Now().In(c.viewer)
	c.do(func() { key, ok, err = c.rt.PickText(text, now) })
	return key, ok, err
}

// Fragment is the current address fragment.
func (c *Calendar) Fragment() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loc.Hash()
}

func (c *Calendar) Events(key datekey.Key) []*event.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ix.Events(key)
}

// Event returns the i-th event of key.
func (c *Calendar) Event(key datekey.Key, i int) (*event.Record, bool) {
	evs := c.Events(key)
	if i < 0 || i >= len(evs) {
		return nil, false
	}
	return evs[i], true
}

func (c *Calendar) Search(q string) []index.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ix.Search(q)
}

// Alert is the visible alert.
func (c *Calendar) Alert() (alert.Alert, bool) { return c.box.Current() }

func (c *Calendar) Dismiss() { c.box.Dismiss() }

// Answer handles a button press on the visible alert.
func (c *Calendar) Answer(ctx context.Context, choiceID string) error {
	a, ok := c.box.Current()
	if !ok {
		return nil
	}
	if a.Kind == alert.ZoneMismatch {
		choice, err := ParseZoneChoice(choiceID)
		if err != nil {
			return err
		}
		return c.ChooseZone(ctx, choice)
	}
	c.box.Dismiss()
	return nil
}

// Snapshot is a read-only copy of the calendar for renderers.
type Snapshot struct {
	ID           string
	Ready        bool
	View         state.View
	PreviousView state.View
	Key          datekey.Key
	Year         int
	Month        time.Month
	FoundEvent   string
	Controls     state.Controls
	Min, Max     datekey.Key
	FirstWeekday time.Weekday
	Locale       string
	Fragment     string
	CalendarZone string
	ViewerZone   string
	Alert        *alert.Alert
	AlertFocused bool
	// Index is immutable and safe to read without the calendar.
	Index *index.Index
}

func (c *Calendar) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	min, max := c.st.Bounds()
	zone := c.viewer
	if c.zone != nil {
		zone = c.zone
	}
	snap := Snapshot{
		ID:           c.id,
		Ready:        c.ready,
		View:         c.st.View(),
		PreviousView: c.st.PreviousView(),
		Key:          c.st.Key(),
		Year:         c.st.Year(),
		Month:        c.st.Month(),
		FoundEvent:   c.st.FoundEvent(),
		Controls:     c.st.Controls(),
		Min:          min,
		Max:          max,
		FirstWeekday: c.st.FirstWeekday(),
		Locale:       c.opts.Locale,
		Fragment:     c.loc.Hash(),
		CalendarZone: c.calZone.String(),
		ViewerZone:   zone.String(),
		AlertFocused: c.box.Focused(),
		Index:        c.ix,
	}
	if a, ok := c.box.Current(); ok {
		snap.Alert = &a
	}
	return snap
}
