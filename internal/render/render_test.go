package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"eventcal/internal/alert"
	"eventcal/internal/calendar"
	"eventcal/internal/grid"
	"eventcal/internal/index"
	"eventcal/internal/state"
)

func newCalendar(t *testing.T, fragment string) *calendar.Calendar {
	t.Helper()
	ix := index.Build([]map[string]string{
		{"date": "2024-03-01", "name": "Opening"},
		{"date": "2024-03-10", "name": "Gala <b>", "start": "7pm", "location": "City Hall"},
		{"date": "2024-03-10", "name": "Brunch", "start": "10am"},
		{"date": "2024-03-28", "name": "Closing"},
	}, index.Options{CalendarZone: time.UTC, ViewerZone: time.UTC})
	c := calendar.New(calendar.Options{
		ContainerID: "cal",
		TimeZone:    time.UTC,
		ViewerZone:  time.UTC,
		Locale:      "en-US",
		Index:       ix,
		Fragment:    fragment,
		Now:         func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) },
	})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBuildMonth(t *testing.T) {
	p := Build(newCalendar(t, "").Snapshot())
	if p.Title != "March 2024" || p.Month == nil || p.Week != nil || p.Day != nil {
		t.Fatalf("page = %+v", p)
	}
	if !p.Ready || p.Fragment != "#cal/month/2024-03-05" {
		t.Fatalf("ready=%v fragment=%q", p.Ready, p.Fragment)
	}
	// en-US starts on Sunday; March 31 spills into a sixth row.
	if p.DayLabels[0].Short != "Sun" || len(p.Month.Rows) != 6 {
		t.Fatalf("labels=%v rows=%d", p.DayLabels, len(p.Month.Rows))
	}
	first := p.Month.Rows[0].Cells[0]
	if first.Key != "2024-02-25" || first.Class != grid.Prev {
		t.Fatalf("first cell=%+v", first)
	}
	var gala Cell
	highlighted := 0
	for _, r := range p.Month.Rows {
		if r.Highlighted {
			highlighted++
		}
		for _, c := range r.Cells {
			if c.Key == "2024-03-10" {
				gala = c
			}
		}
	}
	if highlighted != 1 || len(gala.Events) != 2 || gala.Events[0].Name != "Brunch" {
		t.Fatalf("highlighted=%d cell=%+v", highlighted, gala)
	}
	if len(p.Controls.Views) != 3 || !p.Controls.Views[0].Checked || p.Controls.Views[2].Fragment != "#cal/day/2024-03-05" {
		t.Fatalf("views=%+v", p.Controls.Views)
	}
	if len(p.Candidates) != 4 {
		t.Fatalf("candidates=%d", len(p.Candidates))
	}
}

func TestBuildWeekAndDay(t *testing.T) {
	c := newCalendar(t, "#cal/week/2024-03-12")
	p := Build(c.Snapshot())
	if p.Week == nil || len(p.Week.Days) != 7 || p.Week.Days[0].Key != "2024-03-10" || len(p.Week.Days[0].Events) != 2 {
		t.Fatalf("week=%+v", p.Week)
	}
	if p.Title != "Week of March 12, 2024" {
		t.Fatalf("title=%q", p.Title)
	}

	c.FindEvent(index.Candidate{Key: "2024-03-10", Name: "Brunch"})
	p = Build(c.Snapshot())
	if p.Day == nil || len(p.Day.Events) != 2 || p.View != state.Day {
		t.Fatalf("day=%+v", p.Day)
	}
	if !p.Day.Events[0].Found || p.Day.Events[1].Found || p.Day.Events[0].ICS != "brunch-2024-03-10.ics" {
		t.Fatalf("events=%+v", p.Day.Events)
	}
}

func TestWriteHTML(t *testing.T) {
	c := newCalendar(t, "#cal/day/2024-03-10")
	var b strings.Builder
	if err := WriteHTML(&b, Build(c.Snapshot())); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`<!DOCTYPE html>`,
		`id="cal"`,
		`data-ready="true"`,
		`role="list"`,
		`Gala &lt;b&gt;`,
		`/api/ics?date=2024-03-10&amp;i=1`,
		`Times shown in UTC`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Gala <b>") {
		t.Fatal("event name not escaped")
	}
}

func TestWriteFragmentMonthAndAlert(t *testing.T) {
	c := newCalendar(t, "#cal/month/2025-06-01")
	p := Build(c.Snapshot())
	if p.Alert == nil || p.Alert.Kind != alert.PastMax {
		t.Fatalf("alert=%+v", p.Alert)
	}
	var b strings.Builder
	if err := WriteFragment(&b, p); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if strings.Contains(out, "<!DOCTYPE") {
		t.Fatal("fragment wrote a full document")
	}
	for _, want := range []string{`role="grid"`, `role="alertdialog"`, `There are no events after March 28, 2024.`, `abbr="Sunday"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
