// Package render turns a calendar snapshot into a declarative page tree
// and writes it as accessible HTML.
package render

import (
	"html/template"
	"strconv"
	"strings"
	"time"

	"eventcal/internal/alert"
	"eventcal/internal/calendar"
	"eventcal/internal/datekey"
	"eventcal/internal/event"
	"eventcal/internal/grid"
	"eventcal/internal/index"
	"eventcal/internal/router"
	"eventcal/internal/state"
)

type Page struct {
	ID           string            `json:"id"`
	Ready        bool              `json:"ready"`
	View         state.View        `json:"view"`
	Key          datekey.Key       `json:"date"`
	Title        string            `json:"title"`
	Fragment     string            `json:"fragment"`
	Controls     Controls          `json:"controls"`
	DayLabels    []DayLabel        `json:"day_labels"`
	Month        *MonthView        `json:"month,omitempty"`
	Week         *WeekView         `json:"week,omitempty"`
	Day          *DayView          `json:"day,omitempty"`
	Candidates   []index.Candidate `json:"candidates,omitempty"`
	Alert        *AlertView        `json:"alert,omitempty"`
	CalendarZone string            `json:"calendar_zone"`
	ViewerZone   string            `json:"viewer_zone"`
}

type Controls struct {
	Picker       datekey.Key  `json:"picker"`
	Min          datekey.Key  `json:"min"`
	Max          datekey.Key  `json:"max"`
	PrevDisabled bool         `json:"prev_disabled"`
	NextDisabled bool         `json:"next_disabled"`
	Views        []ViewOption `json:"views"`
}

type ViewOption struct {
	View     state.View `json:"view"`
	Label    string     `json:"label"`
	Checked  bool       `json:"checked"`
	Fragment string     `json:"fragment"`
}

type DayLabel struct {
	Short string `json:"short"`
	Long  string `json:"long"`
}

type MonthView struct {
	Rows []Row `json:"rows"`
}

// Row is one week of the month grid. Highlighted marks the week holding
// the current day.
type Row struct {
	Week        int    `json:"week"`
	Highlighted bool   `json:"highlighted"`
	Cells       []Cell `json:"cells"`
}

type Cell struct {
	Key      datekey.Key     `json:"date"`
	Day      int             `json:"day"`
	Class    grid.MonthClass `json:"class"`
	Label    string          `json:"label"`
	Selected bool            `json:"selected"`
	Fragment string          `json:"fragment"`
	Events   []EventLink     `json:"events,omitempty"`
}

type EventLink struct {
	Name  string `json:"name"`
	Start string `json:"start,omitempty"`
}

type WeekView struct {
	Days []DayColumn `json:"days"`
}

type DayColumn struct {
	Key      datekey.Key `json:"date"`
	Label    string      `json:"label"`
	Selected bool        `json:"selected"`
	Fragment string      `json:"fragment"`
	Events   []EventLink `json:"events,omitempty"`
}

type DayView struct {
	Key    datekey.Key `json:"date"`
	Label  string      `json:"label"`
	Events []EventView `json:"events"`
}

type EventView struct {
	Index    int            `json:"index"`
	Name     string         `json:"name"`
	Start    string         `json:"start,omitempty"`
	End      string         `json:"end,omitempty"`
	Location string         `json:"location,omitempty"`
	HTML     template.HTML  `json:"html"`
	Found    bool           `json:"found"`
	HasMap   bool           `json:"has_map"`
	Map      *event.MapView `json:"map,omitempty"`
	ICS      string         `json:"ics_filename"`
}

type AlertView struct {
	Kind    alert.Kind     `json:"kind"`
	Message string         `json:"message"`
	Choices []alert.Choice `json:"choices"`
	Focused bool           `json:"focused"`
}

// Build lays out the page for snap.
func Build(snap calendar.Snapshot) Page {
	ix := snap.Index
	if ix == nil {
		ix = index.Empty()
	}
	frag := func(v state.View, k datekey.Key) string {
		return router.Fragment{ContainerID: snap.ID, View: v, Key: k}.String()
	}

	p := Page{
		ID:           snap.ID,
		Ready:        snap.Ready,
		View:         snap.View,
		Key:          snap.Key,
		Fragment:     snap.Fragment,
		CalendarZone: snap.CalendarZone,
		ViewerZone:   snap.ViewerZone,
		Controls: Controls{
			Picker:       snap.Controls.Picker,
			Min:          snap.Min,
			Max:          snap.Max,
			PrevDisabled: snap.Controls.PrevDisabled,
			NextDisabled: snap.Controls.NextDisabled,
		},
	}
	if p.Fragment == "" {
		p.Fragment = frag(snap.View, snap.Key)
	}
	for _, v := range state.Views {
		p.Controls.Views = append(p.Controls.Views, ViewOption{
			View:     v,
			Label:    title(string(v)),
			Checked:  v == snap.Controls.Checked,
			Fragment: frag(v, snap.Key),
		})
	}
	short := datekey.DayLabels(snap.Locale, datekey.LabelShort)
	long := datekey.DayLabels(snap.Locale, datekey.LabelLong)
	for i := range short {
		p.DayLabels = append(p.DayLabels, DayLabel{Short: short[i], Long: long[i]})
	}
	if snap.Alert != nil {
		p.Alert = &AlertView{
			Kind:    snap.Alert.Kind,
			Message: snap.Alert.Message,
			Choices: snap.Alert.Choices,
			Focused: snap.AlertFocused,
		}
	}
	if snap.Ready {
		p.Candidates = ix.Candidates()
	}

	switch snap.View {
	case state.Week:
		p.Title = "Week of " + longDate(snap.Key)
		p.Week = buildWeek(snap, ix, frag)
	case state.Day:
		p.Title = snap.Key.Time(time.UTC).Format("Monday, January 2, 2006")
		p.Day = buildDay(snap, ix)
	default:
		p.Title = snap.Month.String() + " " + strconv.Itoa(snap.Year)
		p.Month = buildMonth(snap, ix, frag)
	}
	return p
}

func buildMonth(snap calendar.Snapshot, ix *index.Index, frag func(state.View, datekey.Key) string) *MonthView {
	cells := grid.Build(snap.Year, snap.Month, snap.FirstWeekday)
	m := &MonthView{}
	for _, row := range grid.Rows(cells) {
		r := Row{Week: row[0].Week, Highlighted: row[0].Week == snap.Controls.WeekRow}
		for _, c := range row {
			r.Cells = append(r.Cells, Cell{
				Key:      c.Key,
				Day:      c.Day,
				Class:    c.Class,
				Label:    longDate(c.Key),
				Selected: c.Key == snap.Key,
				Fragment: frag(state.Day, c.Key),
				Events:   links(ix.Events(c.Key)),
			})
		}
		m.Rows = append(m.Rows, r)
	}
	return m
}

func buildWeek(snap calendar.Snapshot, ix *index.Index, frag func(state.View, datekey.Key) string) *WeekView {
	w := &WeekView{}
	keys := grid.WeekOf(snap.Key, snap.FirstWeekday)
	buckets := ix.Week(snap.Key, snap.FirstWeekday)
	for i, k := range keys {
		w.Days = append(w.Days, DayColumn{
			Key:      k,
			Label:    k.Time(time.UTC).Format("Mon Jan 2"),
			Selected: k == snap.Key,
			Fragment: frag(state.Day, k),
			Events:   links(buckets[i]),
		})
	}
	return w
}

func buildDay(snap calendar.Snapshot, ix *index.Index) *DayView {
	d := &DayView{Key: snap.Key, Label: longDate(snap.Key)}
	for i, r := range ix.Events(snap.Key) {
		d.Events = append(d.Events, EventView{
			Index:    i,
			Name:     r.Name,
			Start:    r.Start,
			End:      r.End,
			Location: r.Location,
			HTML:     r.HTML(),
			Found:    snap.FoundEvent != "" && r.Name == snap.FoundEvent,
			HasMap:   r.HasMap(),
			Map:      r.MapView(),
			ICS:      r.Filename(),
		})
	}
	return d
}

func links(recs []*event.Record) []EventLink {
	if len(recs) == 0 {
		return nil
	}
	out := make([]EventLink, len(recs))
	for i, r := range recs {
		out[i] = EventLink{Name: r.Name, Start: r.Start}
	}
	return out
}

func longDate(k datekey.Key) string {
	return k.Time(time.UTC).Format("January 2, 2006")
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
