// Package hours parses free-form, locale-inconsistent business-hours text into
// a canonical weekly schedule.
package hours

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"localbiz-extractor/internal/models"
)

// Result carries the canonical schedule plus the number of entries that failed
// to parse. Parse failures never abort the whole schedule.
type Result struct {
	Specs   []models.OpeningHoursSpec
	Dropped int
}

var weekOrder = map[string]int{
	"Monday":    0,
	"Tuesday":   1,
	"Wednesday": 2,
	"Thursday":  3,
	"Friday":    4,
	"Saturday":  5,
	"Sunday":    6,
}

var dayAliases = map[string]string{
	"monday": "Monday", "mon": "Monday", "星期一": "Monday", "周一": "Monday",
	"tuesday": "Tuesday", "tue": "Tuesday", "tues": "Tuesday", "星期二": "Tuesday", "周二": "Tuesday",
	"wednesday": "Wednesday", "wed": "Wednesday", "星期三": "Wednesday", "周三": "Wednesday",
	"thursday": "Thursday", "thu": "Thursday", "thur": "Thursday", "thurs": "Thursday", "星期四": "Thursday", "周四": "Thursday",
	"friday": "Friday", "fri": "Friday", "星期五": "Friday", "周五": "Friday",
	"saturday": "Saturday", "sat": "Saturday", "星期六": "Saturday", "周六": "Saturday",
	"sunday": "Sunday", "sun": "Sunday", "星期日": "Sunday", "星期天": "Sunday", "周日": "Sunday",
}

var (
	rangeRe    = regexp.MustCompile(`(?i)^\s*(.+?)\s*[–—-]\s*(.+?)\s*$`)
	clockRe    = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(?:([ap])\.?m\.?)?\s*$`)
	allDayRe   = regexp.MustCompile(`(?i)24\s*(/|\s)?\s*7|24\s*(hours|小时)|open\s*24|全天`)
	closedRe   = regexp.MustCompile(`(?i)closed|休息|关闭|不营业|停业|闭店|暂停营业`)
	minutesDay = 24 * 60
)

// meridiem marker state for one side of a time range.
const (
	merNone = iota
	merAM
	merPM
)

// clockTime is one parsed side of a range. fixed means the text was already
// unambiguous 24-hour form (hour 0 or 13-23), so no inference applies.
type clockTime struct {
	hour, minute int
	mer          int
	fixed        bool
}

// CanonicalDay maps a raw day label to its canonical English week-day name.
// The second result is false when the label is not recognized.
func CanonicalDay(label string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.TrimRight(key, ".:")
	if day, ok := dayAliases[key]; ok {
		return day, true
	}
	return "", false
}

// Normalize converts raw (day label, time range text) entries into canonical
// Schema.org opening-hours records, ordered Monday through Sunday. Days with
// identical spans stay as separate records, one per day.
func Normalize(entries []models.HoursEntry) Result {
	var res Result

	for _, entry := range entries {
		day, ok := CanonicalDay(entry.DayLabel)
		if !ok {
			res.Dropped++
			continue
		}

		if entry.Closed || closedRe.MatchString(entry.TimeRangeText) {
			// A closed day yields no record.
			continue
		}

		if allDayRe.MatchString(entry.TimeRangeText) {
			res.Specs = append(res.Specs, models.OpeningHoursSpec{
				Type:      "OpeningHoursSpecification",
				DayOfWeek: day,
				Opens:     "00:00",
				Closes:    "23:59",
			})
			continue
		}

		opens, closes, ok := parseRange(entry.TimeRangeText)
		if !ok {
			res.Dropped++
			continue
		}

		res.Specs = append(res.Specs, models.OpeningHoursSpec{
			Type:      "OpeningHoursSpecification",
			DayOfWeek: day,
			Opens:     opens,
			Closes:    closes,
		})
	}

	sort.SliceStable(res.Specs, func(i, j int) bool {
		return weekOrder[res.Specs[i].DayOfWeek] < weekOrder[res.Specs[j].DayOfWeek]
	})

	return res
}

// parseRange splits a time range on its dash separator and resolves both sides
// to 24-hour HH:MM strings.
func parseRange(text string) (string, string, bool) {
	m := rangeRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}

	open, ok := parseClock(m[1])
	if !ok {
		return "", "", false
	}
	closing, ok := parseClock(m[2])
	if !ok {
		return "", "", false
	}

	openMin, closeMin := inferMeridiem(open, closing)
	if openMin < 0 || closeMin < 0 {
		return "", "", false
	}
	return formatMinutes(openMin), formatMinutes(closeMin), true
}

func parseClock(text string) (clockTime, bool) {
	m := clockRe.FindStringSubmatch(text)
	if m == nil {
		return clockTime{}, false
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return clockTime{}, false
	}

	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return clockTime{}, false
		}
	}

	ct := clockTime{hour: hour, minute: minute}
	switch strings.ToLower(m[3]) {
	case "a":
		ct.mer = merAM
	case "p":
		ct.mer = merPM
	default:
		// Hour 0 or 13-23 is already unambiguous 24-hour form.
		if hour == 0 || hour >= 13 {
			ct.fixed = true
		}
	}

	// A marker on an out-of-range hour ("13pm") is malformed.
	if ct.mer != merNone && (hour == 0 || hour > 12) {
		return clockTime{}, false
	}

	return ct, true
}

// minutesFor resolves a clock time under an assumed meridiem.
func minutesFor(ct clockTime, mer int) int {
	hour := ct.hour
	switch mer {
	case merAM:
		if hour == 12 {
			hour = 0
		}
	case merPM:
		if hour != 12 {
			hour += 12
		}
	}
	return hour*60 + ct.minute
}

func resolved(ct clockTime) bool {
	return ct.fixed || ct.mer != merNone
}

// inferMeridiem fills in missing AM/PM markers. With one explicit side, the
// ambiguous side takes whichever marker keeps the close strictly later than
// the open within a single day, preferring the smallest positive gap. With
// neither side marked, business-hours convention applies: AM open and PM
// close, unless that leaves the span under one hour, in which case the close
// takes the open's half of the day.
func inferMeridiem(open, closing clockTime) (int, int) {
	switch {
	case resolved(open) && resolved(closing):
		return minutesFor(open, open.mer), minutesFor(closing, closing.mer)

	case resolved(open):
		openMin := minutesFor(open, open.mer)
		closeMin := pickClosest(openMin, closing, true)
		return openMin, closeMin

	case resolved(closing):
		closeMin := minutesFor(closing, closing.mer)
		openMin := pickClosest(closeMin, open, false)
		return openMin, closeMin

	default:
		openMin := minutesFor(open, merAM)
		closeMin := minutesFor(closing, merPM)
		if closeMin-openMin < 60 {
			closeMin = minutesFor(closing, merAM)
		}
		return openMin, closeMin
	}
}

// pickClosest chooses AM or PM for the ambiguous side so that the span stays
// chronological with the smallest positive gap against the fixed side. When
// after is true the ambiguous side is the close, otherwise the open.
func pickClosest(fixedMin int, ct clockTime, after bool) int {
	best := -1
	bestGap := minutesDay + 1

	for _, mer := range []int{merAM, merPM} {
		candidate := minutesFor(ct, mer)
		gap := candidate - fixedMin
		if !after {
			gap = fixedMin - candidate
		}
		if gap > 0 && gap < bestGap {
			best = candidate
			bestGap = gap
		}
	}

	if best >= 0 {
		return best
	}

	// No chronological candidate; fall back to the business-hours default.
	if after {
		return minutesFor(ct, merPM)
	}
	return minutesFor(ct, merAM)
}

func formatMinutes(total int) string {
	h := total / 60
	m := total % 60
	return pad2(h) + ":" + pad2(m)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
