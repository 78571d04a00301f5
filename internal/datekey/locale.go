package datekey

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Regions whose week starts on a day other than Monday. Everything not
// listed here starts on Monday.
var firstWeekdayByRegion = map[string]time.Weekday{
	// Sunday first.
	"AG": time.Sunday, "AS": time.Sunday, "AU": time.Sunday, "BD": time.Sunday,
	"BR": time.Sunday, "BS": time.Sunday, "BT": time.Sunday, "BW": time.Sunday,
	"BZ": time.Sunday, "CA": time.Sunday, "CN": time.Sunday, "CO": time.Sunday,
	"DM": time.Sunday, "DO": time.Sunday, "ET": time.Sunday, "GT": time.Sunday,
	"GU": time.Sunday, "HK": time.Sunday, "HN": time.Sunday, "ID": time.Sunday,
	"IL": time.Sunday, "IN": time.Sunday, "JM": time.Sunday, "JP": time.Sunday,
	"KE": time.Sunday, "KH": time.Sunday, "KR": time.Sunday, "LA": time.Sunday,
	"MH": time.Sunday, "MM": time.Sunday, "MO": time.Sunday, "MT": time.Sunday,
	"MX": time.Sunday, "MZ": time.Sunday, "NI": time.Sunday, "NP": time.Sunday,
	"PA": time.Sunday, "PE": time.Sunday, "PH": time.Sunday, "PK": time.Sunday,
	"PR": time.Sunday, "PT": time.Sunday, "PY": time.Sunday, "SA": time.Sunday,
	"SG": time.Sunday, "SV": time.Sunday, "TH": time.Sunday, "TT": time.Sunday,
	"TW": time.Sunday, "UM": time.Sunday, "US": time.Sunday, "VE": time.Sunday,
	"VI": time.Sunday, "WS": time.Sunday, "YE": time.Sunday, "ZA": time.Sunday,
	"ZW": time.Sunday,
	// Saturday first.
	"AE": time.Saturday, "AF": time.Saturday, "BH": time.Saturday, "DJ": time.Saturday,
	"DZ": time.Saturday, "EG": time.Saturday, "IQ": time.Saturday, "IR": time.Saturday,
	"JO": time.Saturday, "KW": time.Saturday, "LY": time.Saturday, "OM": time.Saturday,
	"QA": time.Saturday, "SD": time.Saturday, "SY": time.Saturday,
	// Friday first.
	"MV": time.Friday,
}

// Region extracts the country/region code from a locale such as "en-US",
// "pt_BR" or a bare "US". It returns "" when nothing can be resolved.
func Region(locale string) string {
	locale = strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	if locale == "" {
		return ""
	}
	if len(locale) == 2 && strings.ToUpper(locale) == locale {
		return locale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	region, conf := tag.Region()
	if conf == language.No {
		return ""
	}
	return region.String()
}

// FirstWeekday returns the first day of the week for locale, Monday when
// the region is unknown.
func FirstWeekday(locale string) time.Weekday {
	if wd, ok := firstWeekdayByRegion[Region(locale)]; ok {
		return wd
	}
	return time.Monday
}

// DayNames returns the seven weekdays in display order for locale.
func DayNames(locale string) []time.Weekday {
	return Weekdays(FirstWeekday(locale))
}

// Weekdays returns the seven weekdays starting at first.
func Weekdays(first time.Weekday) []time.Weekday {
	out := make([]time.Weekday, 7)
	for i := range out {
		out[i] = (first + time.Weekday(i)) % 7
	}
	return out
}

// LocaleIndex is the column of wd in a grid starting on first.
func LocaleIndex(wd, first time.Weekday) int {
	return (int(wd) - int(first) + 7) % 7
}

// LabelStyle selects between full and abbreviated weekday labels.
type LabelStyle int

const (
	LabelLong LabelStyle = iota
	LabelShort
)

// DayLabels names the weekdays of DayNames(locale). Labels are English;
// locale only decides the order.
func DayLabels(locale string, style LabelStyle) []string {
	days := DayNames(locale)
	out := make([]string, len(days))
	for i, d := range days {
		name := d.String()
		if style == LabelShort {
			name = name[:3]
		}
		out[i] = name
	}
	return out
}
