// Package router binds the view state to the address fragment. Every
// navigation writes a fragment; the fragment-change handler is the only
// place that turns a fragment back into a state update.
package router

import (
	"errors"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"eventcal/internal/alert"
	"eventcal/internal/datekey"
	"eventcal/internal/index"
	"eventcal/internal/state"
)

// MaxSkipDays bounds how far day navigation searches for a day with events.
const MaxSkipDays = 3660

var ErrUnreadableDate = errors.New("router: unreadable date")

// Location is the page address as far as the router cares.
type Location interface {
	Hash() string
	// SetHash navigates and notifies the change listener when the hash differs.
	SetHash(hash string)
	// Replace rewrites the hash without notifying.
	Replace(hash string)
	OnChange(fn func(hash string))
}

// Events is the part of the event index navigation needs.
type Events interface {
	Ready() bool
	Len() int
	Has(key datekey.Key) bool
}

type Router struct {
	id      string
	loc     Location
	st      *state.State
	events  Events
	alert   func(alert.Alert)
	started bool
	parser  *when.Parser
}

// New wires a router for container id and subscribes to loc.
func New(id string, loc Location, st *state.State, alertFn func(alert.Alert)) *Router {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r := &Router{
		id:     id,
		loc:    loc,
		st:     st,
		events: index.Empty(),
		alert:  alertFn,
		parser: w,
	}
	loc.OnChange(r.HashChanged)
	return r
}

// SetEvents points navigation at a loaded index.
func (r *Router) SetEvents(ev Events) {
	if ev != nil {
		r.events = ev
	}
}

// Fragment is the fragment for the current state.
func (r *Router) Fragment() Fragment {
	return Fragment{ContainerID: r.id, View: r.st.View(), Key: r.st.Key()}
}

// Started reports whether the first fragment has been handled.
func (r *Router) Started() bool { return r.started }

// HashChanged applies a fragment. Fragments for other containers or of
// the wrong shape are ignored, except on the very first call where the
// calendar falls back to month view.
func (r *Router) HashChanged(hash string) {
	first := !r.started
	r.started = true

	f, ok := ParseFragment(hash)
	if ok && f.ContainerID == r.id {
		p := state.Proposal{View: f.View, Key: f.Key}
		if f.Key != r.st.Key() {
			p.ClearFound = true
		}
		r.st.Update(p)
		r.sync()
		return
	}
	if first {
		r.st.Update(state.Proposal{View: state.Month})
		r.sync()
	}
}

func (r *Router) Prev() { r.step(-1) }

func (r *Router) Next() { r.step(1) }

func (r *Router) step(dir int) {
	key := r.st.Key()
	var target datekey.Key
	switch r.st.View() {
	case state.Month:
		target = key.AddMonths(dir)
	case state.Week:
		target = key.AddDays(7 * dir)
	default:
		target = r.eventDay(key, dir)
	}
	r.navigate(r.st.View(), target)
}

// eventDay finds the next day in dir that has events. Without loaded
// events it is simply the adjacent day. Leaving the bounds or running out
// of search steps returns the last probed day, which Update then clamps.
func (r *Router) eventDay(from datekey.Key, dir int) datekey.Key {
	next := from.AddDays(dir)
	if !r.events.Ready() || r.events.Len() == 0 {
		return next
	}
	min, max := r.st.Bounds()
	for i := 1; i <= MaxSkipDays; i++ {
		next = from.AddDays(dir * i)
		if next > max || next < min || r.events.Has(next) {
			return next
		}
	}
	return next
}

// Pick jumps to the day view of key, or alerts when key has no events.
func (r *Router) Pick(key datekey.Key) bool {
	if !r.events.Has(key) {
		r.raise(alert.Alert{Kind: alert.NoEvents, Message: "There are no events on " + key.Time(time.UTC).Format("January 2, 2006") + "."})
		return false
	}
	r.navigate(state.Day, key)
	return true
}

// PickText accepts a date typed into the picker: a YYYY-MM-DD value or
// free text such as "next friday", read relative to now.
func (r *Router) PickText(text string, now time.Time) (datekey.Key, bool, error) {
	text = strings.TrimSpace(text)
	key, err := datekey.Parse(text)
	if err != nil {
		res, perr := r.parser.Parse(text, now)
		if perr != nil || res == nil {
			return "", false, ErrUnreadableDate
		}
		key = datekey.FromTime(res.Time)
	}
	return key, r.Pick(key), nil
}

// SelectView switches view on the current day.
func (r *Router) SelectView(v state.View) {
	r.navigate(v, r.st.Key())
}

// Escape leaves a drill-down for the remembered view.
func (r *Router) Escape() {
	r.navigate(r.st.PreviousView(), r.st.Key())
}

// FindEvent opens the day of a search result and marks the event.
func (r *Router) FindEvent(c index.Candidate) {
	r.navigate(state.Day, c.Key)
	r.st.Update(state.Proposal{FoundEvent: c.Name})
}

// Go navigates to an explicit view and day.
func (r *Router) Go(v state.View, key datekey.Key) {
	r.navigate(v, key)
}

func (r *Router) navigate(v state.View, key datekey.Key) {
	hash := Fragment{ContainerID: r.id, View: v, Key: key}.String()
	if r.loc.Hash() == hash {
		// Setting an identical hash fires no change event.
		r.HashChanged(hash)
		return
	}
	r.loc.SetHash(hash)
}

// sync rewrites the fragment when clamping moved the state off it.
func (r *Router) sync() {
	if hash := r.Fragment().String(); r.loc.Hash() != hash {
		r.loc.Replace(hash)
	}
}

func (r *Router) raise(a alert.Alert) {
	if r.alert != nil {
		r.alert(a)
	}
}
