// Package index buckets event records by viewer-local day.
package index

import (
	"sort"
	"strings"
	"time"

	"eventcal/internal/datekey"
	"eventcal/internal/event"
	appLog "eventcal/internal/log"
)

// Options controls how rows are indexed.
type Options struct {
	Columns event.Columns
	// CalendarZone is the zone the feed's dates and times are written in.
	CalendarZone *time.Location
	// ViewerZone is the zone the calendar is displayed in.
	ViewerZone *time.Location
	// Min and Max pin the navigable range; empty means derive from data.
	Min, Max datekey.Key

	Render event.RenderFunc
	Maps   event.MapStrategy
}

// Candidate is one search suggestion.
type Candidate struct {
	Key  datekey.Key `json:"date"`
	Name string      `json:"name"`
}

// Index is the immutable day → events mapping built from one load.
type Index struct {
	buckets    map[datekey.Key][]*event.Record
	keys       []datekey.Key
	min, max   datekey.Key
	candidates []Candidate
	ready      bool
	size       int
}

// Empty is the index of a calendar that has not loaded yet.
func Empty() *Index {
	return &Index{buckets: map[datekey.Key][]*event.Record{}, min: datekey.Min, max: datekey.Max}
}

// Build indexes rows. Rows without a usable date are skipped.
func Build(rows []map[string]string, opts Options) *Index {
	cols := opts.Columns.WithDefaults()
	calZone := opts.CalendarZone
	if calZone == nil {
		calZone = time.Local
	}
	viewZone := opts.ViewerZone
	if viewZone == nil {
		viewZone = calZone
	}
	shift := calZone.String() != viewZone.String()

	ix := &Index{buckets: map[datekey.Key][]*event.Record{}}
	skipped := 0
	for _, row := range rows {
		raw := strings.TrimSpace(row[cols.Date])
		if raw == "" {
			skipped++
			continue
		}
		key, err := parseRowDate(raw)
		if err != nil {
			skipped++
			appLog.Debug("index: skipping row with unparseable date", "date", raw)
			continue
		}
		if shift {
			row, key = reanchor(row, cols, key, calZone, viewZone)
		}
		rec := event.New(row, event.Options{
			Columns:  cols,
			Date:     key,
			TimeZone: viewZone.String(),
			Render:   opts.Render,
			Maps:     opts.Maps,
		})
		ix.buckets[key] = append(ix.buckets[key], rec)
		ix.size++
	}

	for key, bucket := range ix.buckets {
		sortBucket(bucket, cols)
		ix.keys = append(ix.keys, key)
	}
	sort.Slice(ix.keys, func(i, j int) bool { return ix.keys[i] < ix.keys[j] })

	ix.min, ix.max = opts.Min, opts.Max
	if ix.min == "" {
		ix.min = datekey.Min
		if len(ix.keys) > 0 {
			ix.min = ix.keys[0]
		}
	}
	if ix.max == "" {
		ix.max = datekey.Max
		if len(ix.keys) > 0 {
			ix.max = ix.keys[len(ix.keys)-1]
		}
	}

	for _, key := range ix.keys {
		for _, rec := range ix.buckets[key] {
			ix.candidates = append(ix.candidates, Candidate{Key: key, Name: rec.Name})
		}
	}
	ix.ready = true

	appLog.Info("index built",
		"events", ix.size,
		"days", len(ix.keys),
		"skipped", skipped,
		"min", ix.min,
		"max", ix.max,
		"zone_shift", shift,
	)
	return ix
}

// parseRowDate accepts the canonical form and a few common feed spellings.
func parseRowDate(raw string) (datekey.Key, error) {
	if k, err := datekey.Parse(raw); err == nil {
		return k, nil
	}
	for _, layout := range []string{"1/2/2006", "01/02/2006", "2006/01/02", "Jan 2, 2006", "January 2, 2006", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return datekey.FromTime(t), nil
		}
	}
	return datekey.Parse(raw)
}

// reanchor moves a row from the calendar zone into the viewer zone. The
// date may change when the shift crosses midnight. Rows without a
// parseable start have no instant to move and are returned as is.
func reanchor(row map[string]string, cols event.Columns, key datekey.Key, from, to *time.Location) (map[string]string, datekey.Key) {
	start := event.ParseTime(row[cols.Start])
	if start == "" {
		return row, key
	}
	day := key.Time(from)
	at := func(hhmm string) time.Time {
		t, _ := time.ParseInLocation("15:04", hhmm, from)
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, from)
	}

	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = v
	}
	s := at(start).In(to)
	newKey := datekey.FromTime(s)
	out[cols.Date] = string(newKey)
	out[cols.Start] = s.Format("15:04")
	if end := event.ParseTime(row[cols.End]); end != "" {
		out[cols.End] = at(end).In(to).Format("15:04")
	}
	return out, newKey
}

// sortBucket orders a day's events by start time. Values that do not parse
// as a time fall back to comparing the raw strings.
//
// The original comparator had a duplicated less-than branch and never
// reported "greater", so it only ever moved later events down by accident.
// This is a consistent ascending less instead; ties keep feed order.
func sortBucket(bucket []*event.Record, cols event.Columns) {
	sort.SliceStable(bucket, func(i, j int) bool {
		a, b := startKey(bucket[i], cols), startKey(bucket[j], cols)
		return a < b
	})
}

func startKey(r *event.Record, cols event.Columns) string {
	raw := r.Row[cols.Start]
	if t := event.ParseTime(raw); t != "" {
		return t
	}
	return raw
}

func (ix *Index) Ready() bool { return ix.ready }

// Events returns the bucket for key. The slice must not be modified.
func (ix *Index) Events(key datekey.Key) []*event.Record {
	return ix.buckets[key]
}

func (ix *Index) Has(key datekey.Key) bool {
	return len(ix.buckets[key]) > 0
}

// Keys returns all indexed days in ascending order.
func (ix *Index) Keys() []datekey.Key {
	return append([]datekey.Key(nil), ix.keys...)
}

// Len is the number of indexed events.
func (ix *Index) Len() int { return ix.size }

// Bounds returns the navigable range.
func (ix *Index) Bounds() (min, max datekey.Key) { return ix.min, ix.max }

// Candidates lists every (day, name) pair for search autocomplete.
func (ix *Index) Candidates() []Candidate {
	return append([]Candidate(nil), ix.candidates...)
}

// Search returns candidates whose name contains q, ignoring case.
func (ix *Index) Search(q string) []Candidate {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	var out []Candidate
	for _, c := range ix.candidates {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the record named name on key.
func (ix *Index) Find(key datekey.Key, name string) (*event.Record, bool) {
	for _, r := range ix.buckets[key] {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Week returns the buckets of the 7 days starting at the week that holds
// key, in order. Days without events are nil.
func (ix *Index) Week(key datekey.Key, first time.Weekday) [][]*event.Record {
	offset := (int(key.Weekday()) - int(first) + 7) % 7
	start := key.AddDays(-offset)
	out := make([][]*event.Record, 7)
	for i := range out {
		out[i] = ix.buckets[start.AddDays(i)]
	}
	return out
}
