// Package datekey converts between calendar days and their canonical
// YYYY-MM-DD string form. Keys order correctly as plain strings.
package datekey

import (
	"errors"
	"fmt"
	"time"
)

const layout = "2006-01-02"

// Key is a calendar day in YYYY-MM-DD form.
type Key string

const (
	// Min and Max are the default far past / far future bounds.
	Min Key = "0001-01-01"
	Max Key = "9999-12-31"
)

var ErrInvalid = errors.New("datekey: invalid key")

// FromTime formats the calendar fields of t in t's own location.
func FromTime(t time.Time) Key {
	return Key(t.Format(layout))
}

// New builds a key from calendar fields, normalizing overflow the way
// time.Date does (month 13 is January of the next year).
func New(year int, month time.Month, day int) Key {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// Parse validates s and returns its canonical key.
func Parse(s string) (Key, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromTime(t), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Time returns local midnight of k in loc. An invalid key yields the zero time.
func (k Key) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(layout, string(k), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (k Key) Valid() bool {
	_, err := time.Parse(layout, string(k))
	return err == nil
}

func (k Key) String() string { return string(k) }

func (k Key) Year() int { return k.Time(time.UTC).Year() }

func (k Key) Month() time.Month { return k.Time(time.UTC).Month() }

func (k Key) Day() int { return k.Time(time.UTC).Day() }

func (k Key) Weekday() time.Weekday { return k.Time(time.UTC).Weekday() }

// AddDays moves k by n calendar days.
func (k Key) AddDays(n int) Key {
	return FromTime(k.Time(time.UTC).AddDate(0, 0, n))
}

// AddMonths moves k by n months, clamping the day to the target month's
// length (Jan 31 + 1 month is Feb 28/29, not Mar 3).
func (k Key) AddMonths(n int) Key {
	y, m, d := k.Year(), k.Month(), k.Day()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if dim := DaysIn(first.Year(), first.Month()); d > dim {
		d = dim
	}
	return New(first.Year(), first.Month(), d)
}

// Before and After compare lexicographically, which is calendar order.
func (k Key) Before(o Key) bool { return k < o }

func (k Key) After(o Key) bool { return k > o }

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SameMonth reports whether a and b share a month number. The year is
// deliberately not compared: December 2024 and December 2025 match, and
// callers relying on year boundaries must check the year themselves.
func SameMonth(a, b Key) bool {
	if len(a) < 7 || len(b) < 7 {
		return false
	}
	return a[5:7] == b[5:7]
}
