package event

import (
	"regexp"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// uidNamespace keeps exported UIDs stable across runs for the same event.
var uidNamespace = uuid.MustParse("6f1c6a3e-3b5c-4b59-9b0e-5d1f2f0c9a41")

const defaultDuration = time.Hour

// UID is a deterministic identifier for the record's date, start and name.
func (r *Record) UID() string {
	return uuid.NewSHA1(uidNamespace, []byte(string(r.Date)+"|"+r.Start24()+"|"+r.Name)).String()
}

// Times resolves the record's start and end instants in loc. allDay is set
// when the record has no usable start time.
func (r *Record) Times(loc *time.Location) (start, end time.Time, allDay bool) {
	if loc == nil {
		loc = time.Local
	}
	day := r.Date.Time(loc)
	h, m, ok := clock(r.Start24())
	if !ok {
		return day, day.AddDate(0, 0, 1), true
	}
	start = time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
	end = start.Add(defaultDuration)
	if eh, em, ok := clock(r.End24()); ok {
		e := time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, loc)
		if !e.After(start) {
			// An end before the start runs past midnight.
			e = e.AddDate(0, 0, 1)
		}
		end = e
	}
	return start, end, false
}

// ICS serializes the record as a single-event VCALENDAR anchored to loc.
// Text values are escaped by the ical library (commas, semicolons,
// newlines).
func (r *Record) ICS(loc *time.Location) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventcal//EN")

	ev := cal.AddEvent(r.UID())
	ev.SetDtStampTime(time.Now().UTC())
	ev.SetSummary(r.Name)
	if r.About != "" {
		ev.SetDescription(r.About)
	}
	if r.Location != "" {
		ev.SetLocation(r.Location)
	}

	start, end, allDay := r.Times(loc)
	if allDay {
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(end)
	} else {
		ev.SetStartAt(start)
		ev.SetEndAt(end)
	}
	return cal.Serialize()
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Filename is the download name for ICS, e.g. "spring-fair-2024-03-10.ics".
func (r *Record) Filename() string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(r.Name), "-"), "-")
	if slug == "" {
		slug = "event"
	}
	return slug + "-" + string(r.Date) + ".ics"
}
