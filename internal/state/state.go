// Package state owns the calendar's single source of truth: which day and
// view are on screen. All changes go through Update, which clamps to the
// configured bounds, reflects the navigation controls and fires change
// hooks at most once per call.
package state

import (
	"errors"
	"fmt"
	"time"

	"eventcal/internal/alert"
	"eventcal/internal/datekey"
	"eventcal/internal/event"
	"eventcal/internal/grid"
)

type View string

const (
	Month View = "month"
	Week  View = "week"
	Day   View = "day"
)

var ErrInvalidView = errors.New("state: invalid view")

// Views lists the selectable views in control order.
var Views = []View{Month, Week, Day}

func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case Month, Week, Day:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
}

// Change is the payload of the DateChanged and ViewChanged hooks.
type Change struct {
	View   View            `json:"view"`
	Date   datekey.Key     `json:"date"`
	Events []*event.Record `json:"-"`
}

type Hooks struct {
	DateChanged func(Change)
	ViewChanged func(Change)
}

// Controls mirrors the state into the navigation widgets.
type Controls struct {
	Picker       datekey.Key `json:"picker"`
	Checked      View        `json:"checked"`
	PrevDisabled bool        `json:"prev_disabled"`
	NextDisabled bool        `json:"next_disabled"`
	// WeekRow is the highlighted row of the month grid.
	WeekRow int `json:"week_row"`
}

type Options struct {
	Min, Max     datekey.Key
	FirstWeekday time.Weekday
	// Events looks up the bucket for a day; nil means no events.
	Events func(datekey.Key) []*event.Record
	Hooks  Hooks
	// Alert receives out-of-range notifications.
	Alert func(alert.Alert)
}

// State is the mutable view record. Fields are private so that every
// change passes through Update.
type State struct {
	year         int
	month        time.Month
	date         int
	view         View
	previousView View
	foundEvent   string

	min, max datekey.Key
	controls Controls
	opts     Options
}

// New starts at today (clamped into the bounds) in month view.
func New(today datekey.Key, opts Options) *State {
	if opts.Min == "" {
		opts.Min = datekey.Min
	}
	if opts.Max == "" {
		opts.Max = datekey.Max
	}
	if opts.Min > opts.Max {
		opts.Min, opts.Max = opts.Max, opts.Min
	}
	switch {
	case today > opts.Max:
		today = opts.Max
	case today < opts.Min:
		today = opts.Min
	}
	s := &State{
		year:         today.Year(),
		month:        today.Month(),
		date:         today.Day(),
		view:         Month,
		previousView: Month,
		min:          opts.Min,
		max:          opts.Max,
		opts:         opts,
	}
	s.reflect()
	return s
}

func (s *State) Year() int { return s.year }

func (s *State) Month() time.Month { return s.month }

func (s *State) Date() int { return s.date }

func (s *State) View() View { return s.view }

func (s *State) PreviousView() View { return s.previousView }

func (s *State) FoundEvent() string { return s.foundEvent }

func (s *State) Controls() Controls { return s.controls }

// Key is the current day as a DateKey.
func (s *State) Key() datekey.Key {
	return datekey.New(s.year, s.month, s.date)
}

// Bounds returns the inclusive navigable range.
func (s *State) Bounds() (min, max datekey.Key) { return s.min, s.max }

// FirstWeekday is the locale's first grid column.
func (s *State) FirstWeekday() time.Weekday { return s.opts.FirstWeekday }

// SetEvents swaps the bucket lookup, used once the index has loaded.
func (s *State) SetEvents(fn func(datekey.Key) []*event.Record) {
	s.opts.Events = fn
}

// SetBounds narrows the range and moves the current day inside it. Unlike
// a navigation, this raises no alert.
func (s *State) SetBounds(min, max datekey.Key) {
	if min == "" {
		min = datekey.Min
	}
	if max == "" {
		max = datekey.Max
	}
	if min > max {
		min, max = max, min
	}
	s.min, s.max = min, max
	key := s.Key()
	switch {
	case key > max:
		key = max
	case key < min:
		key = min
	}
	s.Update(Proposal{Key: key})
}

// Proposal is a partial update. Zero fields leave the state unchanged;
// Key, when set, takes precedence over Year/Month/Date.
type Proposal struct {
	View  View
	Key   datekey.Key
	Year  int
	Month time.Month
	Date  int
	// FoundEvent marks a search-selected event; ClearFound removes it.
	FoundEvent string
	ClearFound bool
}

// Update applies p. A day outside the bounds is replaced by the nearest
// bound and an alert is raised instead.
func (s *State) Update(p Proposal) {
	prevKey, prevView := s.Key(), s.view
	s.update(p)

	key := s.Key()
	if s.view != prevView {
		s.fire(s.opts.Hooks.ViewChanged, key)
	}
	if key != prevKey {
		s.fire(s.opts.Hooks.DateChanged, key)
	}
}

// update mutates without notifying; out-of-range proposals recurse once
// with the bound as the key.
func (s *State) update(p Proposal) {
	view := s.view
	if p.View != "" {
		view = p.View
	}

	year, month, date := s.year, s.month, s.date
	if p.Key != "" {
		year, month, date = p.Key.Year(), p.Key.Month(), p.Key.Day()
	} else {
		if p.Year != 0 {
			year = p.Year
		}
		if p.Month != 0 {
			month = p.Month
		}
		if p.Date != 0 {
			date = p.Date
		}
	}
	if dim := datekey.DaysIn(year, month); date > dim {
		date = dim
	}
	if date < 1 {
		date = 1
	}

	key := datekey.New(year, month, date)
	switch {
	case key > s.max:
		s.update(Proposal{View: p.View, Key: s.max, FoundEvent: p.FoundEvent, ClearFound: p.ClearFound})
		s.raise(alert.PastMax, "There are no events after "+format(s.max)+".")
		return
	case key < s.min:
		s.update(Proposal{View: p.View, Key: s.min, FoundEvent: p.FoundEvent, ClearFound: p.ClearFound})
		s.raise(alert.BeforeMin, "There are no events before "+format(s.min)+".")
		return
	}

	// Entering day returns to the view it was entered from; entering week
	// (or month) returns to month.
	if view != s.view {
		if view == Day {
			s.previousView = s.view
		} else {
			s.previousView = Month
		}
	}
	s.view = view
	s.year, s.month, s.date = year, month, date
	if p.ClearFound {
		s.foundEvent = ""
	}
	if p.FoundEvent != "" {
		s.foundEvent = p.FoundEvent
	}
	s.reflect()
}

func (s *State) reflect() {
	key := s.Key()
	s.controls = Controls{
		Picker:       key,
		Checked:      s.view,
		PrevDisabled: key <= s.min,
		NextDisabled: key >= s.max,
		WeekRow:      grid.WeekRow(key, s.opts.FirstWeekday),
	}
}

func (s *State) fire(hook func(Change), key datekey.Key) {
	if hook == nil {
		return
	}
	var events []*event.Record
	if s.opts.Events != nil {
		events = s.opts.Events(key)
	}
	hook(Change{View: s.view, Date: key, Events: events})
}

func (s *State) raise(kind alert.Kind, msg string) {
	if s.opts.Alert != nil {
		s.opts.Alert(alert.Alert{Kind: kind, Message: msg})
	}
}

func format(k datekey.Key) string {
	return k.Time(time.UTC).Format("January 2, 2006")
}
