package index

import (
	"testing"
	"time"

	"eventcal/internal/datekey"
)

func rows() []map[string]string {
	return []map[string]string{
		{"date": "2024-03-10", "name": "Late Show", "start": "9pm"},
		{"date": "2024-03-10", "name": "Breakfast", "start": "8:00 am"},
		{"date": "2024-03-10", "name": "Lunch", "start": "12:30pm"},
		{"date": "", "name": "trailing blank"},
		{"date": "2024-04-02", "name": "Spring Fair", "start": "10am"},
		{"date": "2024-01-15", "name": "Winter Market", "start": "noon"},
		{"date": "garbage", "name": "bad date"},
	}
}

func TestBuildBucketsAndSorts(t *testing.T) {
	ix := Build(rows(), Options{CalendarZone: time.UTC, ViewerZone: time.UTC})
	if !ix.Ready() {
		t.Fatal("index not ready")
	}
	if ix.Len() != 5 {
		t.Fatalf("Len=%d; want 5", ix.Len())
	}
	day := ix.Events("2024-03-10")
	if len(day) != 3 {
		t.Fatalf("bucket size=%d", len(day))
	}
	want := []string{"Breakfast", "Lunch", "Late Show"}
	for i, r := range day {
		if r.Name != want[i] {
			t.Fatalf("order[%d]=%s; want %s", i, r.Name, want[i])
		}
	}
	for _, k := range ix.Keys() {
		if len(ix.Events(k)) == 0 {
			t.Fatalf("empty bucket for %s", k)
		}
	}
	if ix.Has("2024-03-11") {
		t.Fatal("unexpected bucket")
	}
}

func TestUnparseableStartSortsByRawString(t *testing.T) {
	ix := Build([]map[string]string{
		{"date": "2024-05-01", "name": "b", "start": "TBD"},
		{"date": "2024-05-01", "name": "a", "start": "All day"},
		{"date": "2024-05-01", "name": "c", "start": "09:00"},
	}, Options{})
	got := ix.Events("2024-05-01")
	// "09:00" < "All day" < "TBD" as strings.
	if got[0].Name != "c" || got[1].Name != "a" || got[2].Name != "b" {
		t.Fatalf("order=%s,%s,%s", got[0].Name, got[1].Name, got[2].Name)
	}
}

func TestSortIsAscendingAndStable(t *testing.T) {
	ix := Build([]map[string]string{
		{"date": "2024-05-01", "name": "evening", "start": "7:00 PM"},
		{"date": "2024-05-01", "name": "first at ten", "start": "10am"},
		{"date": "2024-05-01", "name": "morning", "start": "8:00 AM"},
		{"date": "2024-05-01", "name": "second at ten", "start": "10:00"},
	}, Options{})
	want := []string{"morning", "first at ten", "second at ten", "evening"}
	got := ix.Events("2024-05-01")
	for i, r := range got {
		if r.Name != want[i] {
			t.Fatalf("order[%d]=%s; want %s", i, r.Name, want[i])
		}
	}
}

func TestBoundsDerivedOrExplicit(t *testing.T) {
	ix := Build(rows(), Options{})
	min, max := ix.Bounds()
	if min != "2024-01-15" || max != "2024-04-02" {
		t.Fatalf("bounds=%s..%s", min, max)
	}
	ix = Build(rows(), Options{Min: "2023-01-01"})
	min, max = ix.Bounds()
	if min != "2023-01-01" || max != "2024-04-02" {
		t.Fatalf("explicit bounds=%s..%s", min, max)
	}
	min, max = Empty().Bounds()
	if min != datekey.Min || max != datekey.Max || Empty().Ready() {
		t.Fatal("empty index bounds")
	}
}

func TestZoneShiftCrossesMidnight(t *testing.T) {
	row := []map[string]string{{"name": "Gala", "date": "2024-03-10", "start": "11:30pm", "end": "11:45pm"}}

	ahead := time.FixedZone("UTC+3", 3*3600)
	ix := Build(row, Options{CalendarZone: time.UTC, ViewerZone: ahead})
	if ix.Has("2024-03-10") || !ix.Has("2024-03-11") {
		t.Fatalf("keys=%v; want 2024-03-11", ix.Keys())
	}
	r := ix.Events("2024-03-11")[0]
	if r.Start != "2:30 AM" || r.End != "2:45 AM" || r.Date != "2024-03-11" {
		t.Fatalf("shifted record=%+v", r)
	}

	behind := time.FixedZone("UTC-3", -3*3600)
	ix = Build(row, Options{CalendarZone: time.UTC, ViewerZone: behind})
	r = ix.Events("2024-03-10")[0]
	if r.Start != "8:30 PM" {
		t.Fatalf("Start=%q; want 8:30 PM", r.Start)
	}

	// The source row is left untouched.
	if row[0]["date"] != "2024-03-10" || row[0]["start"] != "11:30pm" {
		t.Fatalf("source row mutated: %v", row[0])
	}
}

func TestZoneShiftSkipsRowsWithoutStart(t *testing.T) {
	ix := Build([]map[string]string{{"name": "All day", "date": "2024-03-10"}}, Options{
		CalendarZone: time.UTC,
		ViewerZone:   time.FixedZone("UTC+12", 12*3600),
	})
	if !ix.Has("2024-03-10") {
		t.Fatalf("keys=%v", ix.Keys())
	}
}

func TestSearch(t *testing.T) {
	ix := Build(rows(), Options{})
	got := ix.Search("fair")
	if len(got) != 1 || got[0].Name != "Spring Fair" || got[0].Key != "2024-04-02" {
		t.Fatalf("Search(fair)=%v", got)
	}
	if got := ix.Search("xyz"); len(got) != 0 {
		t.Fatalf("Search(xyz)=%v", got)
	}
	if got := ix.Search("  "); len(got) != 0 {
		t.Fatalf("blank search=%v", got)
	}
	if len(ix.Candidates()) != 5 {
		t.Fatalf("candidates=%d", len(ix.Candidates()))
	}
	if _, ok := ix.Find("2024-01-15", "Winter Market"); !ok {
		t.Fatal("Find")
	}
}

func TestAlternateDateSpellings(t *testing.T) {
	ix := Build([]map[string]string{{"date": "3/9/2024", "name": "x"}}, Options{})
	if !ix.Has("2024-03-09") {
		t.Fatalf("keys=%v", ix.Keys())
	}
}
