// Package grid lays out the six-week month grid.
package grid

import (
	"time"

	"eventcal/internal/datekey"
)

// Cells is the fixed size of a month grid: six weeks of seven days.
const Cells = 42

type MonthClass string

const (
	Prev    MonthClass = "prev"
	Current MonthClass = "current"
	Next    MonthClass = "next"
)

// Cell describes one day slot.
type Cell struct {
	Key   datekey.Key `json:"date"`
	Day   int         `json:"day"`
	Class MonthClass  `json:"class"`
	Week  int         `json:"week"`
}

// Leading is the number of previous-month cells before the 1st, measured
// from the locale's first weekday rather than Sunday.
func Leading(year int, month time.Month, first time.Weekday) int {
	return datekey.LocaleIndex(datekey.New(year, month, 1).Weekday(), first)
}

// PreviousMonth returns the trailing days of the month before, in order.
func PreviousMonth(year int, month time.Month, first time.Weekday) []Cell {
	n := Leading(year, month, first)
	start := datekey.New(year, month, 1).AddDays(-n)
	return run(start, n, Prev)
}

// CurrentMonth returns every day of the month.
func CurrentMonth(year int, month time.Month) []Cell {
	return run(datekey.New(year, month, 1), datekey.DaysIn(year, month), Current)
}

// NextMonth returns the first n days of the next month.
func NextMonth(year int, month time.Month, n int) []Cell {
	return run(datekey.New(year, month+1, 1), n, Next)
}

func run(start datekey.Key, n int, class MonthClass) []Cell {
	out := make([]Cell, 0, n)
	for i := 0; i < n; i++ {
		k := start.AddDays(i)
		out = append(out, Cell{Key: k, Day: k.Day(), Class: class})
	}
	return out
}

// Build assembles the 42 cells for year/month.
func Build(year int, month time.Month, first time.Weekday) []Cell {
	cells := make([]Cell, 0, Cells)
	cells = append(cells, PreviousMonth(year, month, first)...)
	cells = append(cells, CurrentMonth(year, month)...)
	cells = append(cells, NextMonth(year, month, Cells-len(cells))...)
	for i := range cells {
		cells[i].Week = i / 7
	}
	return cells
}

// Rows splits cells into weeks. The sixth week is dropped when it lies in
// a single month, which can only be the following one.
func Rows(cells []Cell) [][]Cell {
	var rows [][]Cell
	for i := 0; i+7 <= len(cells); i += 7 {
		if i == 35 && datekey.SameMonth(cells[35].Key, cells[len(cells)-1].Key) {
			break
		}
		rows = append(rows, cells[i:i+7])
	}
	return rows
}

// WeekOf returns the seven days of the week containing key.
func WeekOf(key datekey.Key, first time.Weekday) []datekey.Key {
	start := key.AddDays(-datekey.LocaleIndex(key.Weekday(), first))
	out := make([]datekey.Key, 7)
	for i := range out {
		out[i] = start.AddDays(i)
	}
	return out
}

// WeekRow is the grid row of key in its own month, for week highlighting.
func WeekRow(key datekey.Key, first time.Weekday) int {
	return (Leading(key.Year(), key.Month(), first) + key.Day() - 1) / 7
}
