// Package event normalizes one feed row into a displayable, exportable
// calendar event.
package event

import (
	"strings"
	"sync"

	"eventcal/internal/datekey"
)

// Columns maps the recognized event fields to feed column names.
type Columns struct {
	Date     string `yaml:"date" json:"date"`
	Name     string `yaml:"name" json:"name"`
	About    string `yaml:"about" json:"about"`
	Start    string `yaml:"start" json:"start"`
	End      string `yaml:"end" json:"end"`
	Location string `yaml:"location" json:"location"`
	Sponsor  string `yaml:"sponsor" json:"sponsor"`
}

// DefaultColumns is the date,name,about,start,end,location,sponsor layout.
func DefaultColumns() Columns {
	return Columns{
		Date:     "date",
		Name:     "name",
		About:    "about",
		Start:    "start",
		End:      "end",
		Location: "location",
		Sponsor:  "sponsor",
	}
}

// ParseColumns reads a comma separated list in the default field order.
// Empty or missing positions keep their defaults.
func ParseColumns(list string) Columns {
	c := DefaultColumns()
	fields := []*string{&c.Date, &c.Name, &c.About, &c.Start, &c.End, &c.Location, &c.Sponsor}
	for i, name := range strings.Split(list, ",") {
		if i >= len(fields) {
			break
		}
		if name = strings.TrimSpace(name); name != "" {
			*fields[i] = name
		}
	}
	return c
}

// WithDefaults fills zero fields from DefaultColumns.
func (c Columns) WithDefaults() Columns {
	d := DefaultColumns()
	if c.Date == "" {
		c.Date = d.Date
	}
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.About == "" {
		c.About = d.About
	}
	if c.Start == "" {
		c.Start = d.Start
	}
	if c.End == "" {
		c.End = d.End
	}
	if c.Location == "" {
		c.Location = d.Location
	}
	if c.Sponsor == "" {
		c.Sponsor = d.Sponsor
	}
	return c
}

func (c Columns) recognized(col string) bool {
	switch col {
	case c.Date, c.Name, c.About, c.Start, c.End, c.Location, c.Sponsor:
		return true
	}
	return false
}

// Options carries the context a row is normalized in.
type Options struct {
	Columns  Columns
	Date     datekey.Key
	TimeZone string
	Render   RenderFunc
	Maps     MapStrategy
}

// Record is one event occurrence on one day. Everything except the map
// view is fixed at construction.
type Record struct {
	Name     string
	About    string
	Start    string
	End      string
	Location string
	Sponsor  string
	Date     datekey.Key
	TimeZone string

	// Extra holds feed columns outside the recognized set.
	Extra map[string]string
	// Row is the (possibly zone adjusted) source row.
	Row map[string]string

	render  RenderFunc
	maps    MapStrategy
	mapMu   sync.Mutex
	mapView *MapView
}

// New builds a Record from row. Missing fields are "", never absent.
func New(row map[string]string, opts Options) *Record {
	cols := opts.Columns.WithDefaults()
	get := func(col string) string {
		return strings.TrimSpace(row[col])
	}
	r := &Record{
		Name:     get(cols.Name),
		About:    get(cols.About),
		Start:    NormalizeTime(row[cols.Start]),
		End:      NormalizeTime(row[cols.End]),
		Location: get(cols.Location),
		Sponsor:  get(cols.Sponsor),
		Date:     opts.Date,
		TimeZone: opts.TimeZone,
		Extra:    map[string]string{},
		Row:      row,
		render:   opts.Render,
		maps:     opts.Maps,
	}
	for col, v := range row {
		if !cols.recognized(col) {
			r.Extra[col] = v
		}
	}
	if r.render == nil {
		r.render = DefaultRender
	}
	if r.maps == nil {
		r.maps = NoMaps{}
	}
	return r
}

// Get returns a pass-through column, "" when absent.
func (r *Record) Get(col string) string {
	return r.Extra[col]
}

// Start24 is the 24h form of Start, used for ordering and export.
func (r *Record) Start24() string { return ParseTime(r.Start) }

// End24 is the 24h form of End.
func (r *Record) End24() string { return ParseTime(r.End) }
