package feed

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"eventcal/internal/event"
	appLog "eventcal/internal/log"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how ICS recurrences become rows.
type ExpandConfig struct {
	// Location is the calendar zone rows are written in. Nil means time.Local.
	Location *time.Location
	// RangeStart / RangeEnd bound the expanded occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time
	// MaxOccurrencesPerEvent caps runaway rules; zero means the default.
	MaxOccurrencesPerEvent int
	Columns                event.Columns
}

// DecodeICS turns an ICS payload into one row per occurrence, using
// cfg.Columns for the column names. Recurring events are expanded with
// RRULE/EXDATE and RECURRENCE-ID overrides within the configured range.
func DecodeICS(body []byte, cfg ExpandConfig) ([]Row, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("feed: expand range end is before start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	cfg.Columns = cfg.Columns.WithDefaults()

	events, err := parseICS(body)
	if err != nil {
		return nil, err
	}

	base := make(map[string][]vevent)
	overrides := make(map[string][]vevent)
	var uids []string
	for _, ev := range events {
		if ev.Recurrence != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		if _, seen := base[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		base[ev.UID] = append(base[ev.UID], ev)
	}

	rows := make([]Row, 0, len(events))
	for _, uid := range uids {
		for _, ev := range base[uid] {
			occ, hitCap := expandEvent(ev, overrides[uid], cfg)
			if hitCap {
				appLog.Error("feed: truncated occurrences for UID due to cap",
					errors.New("max occurrences reached"),
					"uid", uid,
					"cap", cfg.MaxOccurrencesPerEvent,
				)
			}
			rows = append(rows, occ...)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i][cfg.Columns.Date] < rows[j][cfg.Columns.Date]
	})
	return rows, nil
}

func expandEvent(ev vevent, overrides []vevent, cfg ExpandConfig) ([]Row, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		return []Row{toRow(pickOverride(ev, overrides, ev.Start), cfg)}, false
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("feed: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	starts := set.Between(cfg.RangeStart.In(ev.Start.Location()), cfg.RangeEnd.In(ev.Start.Location()), true)
	hitCap := false
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		starts = starts[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]Row, 0, len(starts))
	for _, s := range starts {
		inst := ev
		inst.Start = s
		inst.End = s.Add(dur)
		out = append(out, toRow(pickOverride(inst, overrides, s), cfg))
	}
	return out, hitCap
}

// pickOverride swaps in the override whose RECURRENCE-ID equals start.
func pickOverride(ev vevent, overrides []vevent, start time.Time) vevent {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov
		}
	}
	return ev
}

func toRow(ev vevent, cfg ExpandConfig) Row {
	c := cfg.Columns
	start := ev.Start.In(cfg.Location)
	row := Row{
		c.Date:     start.Format("2006-01-02"),
		c.Name:     ev.Summary,
		c.About:    ev.Description,
		c.Location: ev.Location,
		c.Sponsor:  ev.Organizer,
		c.Start:    "",
		c.End:      "",
		"uid":      ev.UID,
	}
	if ev.AllDay {
		// All-day dates are floating; keep the written calendar day.
		row[c.Date] = ev.Start.Format("2006-01-02")
		return row
	}
	row[c.Start] = start.Format("15:04")
	if !ev.End.IsZero() && ev.End.After(ev.Start) {
		row[c.End] = ev.End.In(cfg.Location).Format("15:04")
	}
	return row
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
