package event

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timePattern accepts "9", "9:30", "9pm", "9:30 PM", "09:30", "9:30 a.m.".
var timePattern = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*([ap])?\.?\s*(m\.?)?$`)

// ParseTime normalizes a loosely written clock time into 24h "hh:mm".
// Anything that does not look like a time yields "".
func ParseTime(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	// "m" without "a"/"p" is not a meridiem.
	if m[3] == "" && m[4] != "" {
		return ""
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if minute > 59 {
		return ""
	}
	switch strings.ToLower(m[3]) {
	case "a":
		if hour < 1 || hour > 12 {
			return ""
		}
		if hour == 12 {
			hour = 0
		}
	case "p":
		if hour < 1 || hour > 12 {
			return ""
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return ""
		}
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// FormatTime renders a 24h "hh:mm" value as "h:mm AM".
func FormatTime(hhmm string) string {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return ""
	}
	hour, err := strconv.Atoi(hhmm[:2])
	if err != nil {
		return ""
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	hour %= 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%s %s", hour, hhmm[3:], suffix)
}

// NormalizeTime is the one path raw start/end values take to the screen,
// the sort order and the ICS export.
func NormalizeTime(raw string) string {
	return FormatTime(ParseTime(raw))
}

// clock splits a "hh:mm" value. ok is false for "".
func clock(hhmm string) (hour, minute int, ok bool) {
	if len(hhmm) != 5 {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(hhmm[:2])
	m, err2 := strconv.Atoi(hhmm[3:])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return h, m, true
}
