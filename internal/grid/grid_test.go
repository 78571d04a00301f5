package grid

import (
	"testing"
	"time"

	"eventcal/internal/datekey"
)

func TestBuildAlwaysFortyTwoConsecutiveDays(t *testing.T) {
	for _, first := range []time.Weekday{time.Sunday, time.Monday, time.Saturday} {
		for y := 2023; y <= 2025; y++ {
			for m := time.January; m <= time.December; m++ {
				cells := Build(y, m, first)
				if len(cells) != Cells {
					t.Fatalf("%d-%02d first=%v: %d cells", y, m, first, len(cells))
				}
				if cells[0].Key.Weekday() != first {
					t.Fatalf("%d-%02d: grid starts on %v; want %v", y, m, cells[0].Key.Weekday(), first)
				}
				for i := 1; i < len(cells); i++ {
					if cells[i].Key != cells[i-1].Key.AddDays(1) {
						t.Fatalf("%d-%02d: cell %d=%s follows %s", y, m, i, cells[i].Key, cells[i-1].Key)
					}
					if cells[i].Week != i/7 {
						t.Fatalf("cell %d week=%d", i, cells[i].Week)
					}
				}
			}
		}
	}
}

func TestClasses(t *testing.T) {
	// March 2024 starts on a Friday.
	cells := Build(2024, time.March, time.Monday)
	if Leading(2024, time.March, time.Monday) != 4 {
		t.Fatalf("Leading=%d", Leading(2024, time.March, time.Monday))
	}
	for i, c := range cells {
		var want MonthClass
		switch {
		case i < 4:
			want = Prev
		case i < 4+31:
			want = Current
		default:
			want = Next
		}
		if c.Class != want {
			t.Fatalf("cell %d (%s) class=%s; want %s", i, c.Key, c.Class, want)
		}
	}
	if cells[0].Key != "2024-02-26" || cells[0].Day != 26 {
		t.Fatalf("first cell=%+v", cells[0])
	}
	if cells[41].Key != "2024-04-07" {
		t.Fatalf("last cell=%+v", cells[41])
	}
}

func TestRowsTruncation(t *testing.T) {
	tcs := []struct {
		name  string
		year  int
		month time.Month
		first time.Weekday
		rows  int
	}{
		// February 2015 starts on Sunday and has 28 days.
		{"feb-2015-sunday", 2015, time.February, time.Sunday, 5},
		// March 2024 ends on a Sunday, so a Monday grid needs five weeks.
		{"mar-2024-monday", 2024, time.March, time.Monday, 5},
		// September 2024 starts on a Sunday and spills into a sixth week.
		{"sep-2024-monday", 2024, time.September, time.Monday, 6},
		{"jun-2024-sunday", 2024, time.June, time.Sunday, 6},
		{"apr-2024-monday", 2024, time.April, time.Monday, 5},
	}
	for _, tc := range tcs {
		rows := Rows(Build(tc.year, tc.month, tc.first))
		if len(rows) != tc.rows {
			t.Fatalf("%s: %d rows; want %d", tc.name, len(rows), tc.rows)
		}
		for _, r := range rows {
			if len(r) != 7 {
				t.Fatalf("%s: row of %d", tc.name, len(r))
			}
		}
	}
}

func TestWeekOf(t *testing.T) {
	week := WeekOf("2024-03-13", time.Sunday)
	if week[0] != "2024-03-10" || week[6] != "2024-03-16" {
		t.Fatalf("WeekOf=%v", week)
	}
	week = WeekOf("2024-03-10", time.Monday)
	if week[0] != "2024-03-04" || week[6] != datekey.Key("2024-03-10") {
		t.Fatalf("WeekOf monday=%v", week)
	}
}

func TestWeekRow(t *testing.T) {
	if got := WeekRow("2024-03-01", time.Monday); got != 0 {
		t.Fatalf("WeekRow=%d", got)
	}
	if got := WeekRow("2024-03-31", time.Monday); got != 4 {
		t.Fatalf("WeekRow=%d", got)
	}
	if got := WeekRow("2024-09-30", time.Monday); got != 5 {
		t.Fatalf("WeekRow=%d", got)
	}
}
