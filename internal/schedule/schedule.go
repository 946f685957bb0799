// Package schedule holds the weekly calendar arithmetic used to arm alarms:
// weekdays, times of day and the next-occurrence calculation.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a day of the week counted from Monday, which is also how it is
// persisted.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const daysPerWeek = 7

var weekdayNames = [daysPerWeek]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// Valid reports whether d is one of Monday..Sunday.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

// Short returns the lower-case three-letter abbreviation ("mon").
func (d Weekday) Short() string {
	if !d.Valid() {
		return d.String()
	}
	return strings.ToLower(weekdayNames[d][:3])
}

// WeekdayOf returns the Weekday of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + daysPerWeek - 1) % daysPerWeek)
}

// WeekdayFromInt converts a persisted days-from-Monday value.
func WeekdayFromInt(n int64) (Weekday, error) {
	d := Weekday(n)
	if n < 0 || !d.Valid() {
		return 0, fmt.Errorf("weekday %d out of range 0..6", n)
	}
	return d, nil
}

// ParseWeekday accepts full or three-letter English names, in any case.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if len(name) >= 3 {
		for i, full := range weekdayNames {
			lower := strings.ToLower(full)
			if name == lower || name == lower[:3] {
				return Weekday(i), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// TimeOfDay is a wall-clock time with second precision.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// TimeOfDayOf returns the time of day of t, truncated to the second.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q, want HH:MM or HH:MM:SS", s)
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 &&
		t.Minute >= 0 && t.Minute < 60 &&
		t.Second >= 0 && t.Second < 60
}

// Seconds returns the number of seconds since midnight.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) Before(u TimeOfDay) bool {
	return t.Seconds() < u.Seconds()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// On returns the instant at t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, date.Location())
}

// NextOccurrence returns the next instant falling on weekday at tod, relative
// to now and in now's location.
//
// On the matching weekday an alarm strictly later than now's time of day
// fires today; an equal or earlier one rolls to the same weekday next week.
// The result therefore always lies on weekday and is never earlier than now.
func NextOccurrence(weekday Weekday, tod TimeOfDay, now time.Time) time.Time {
	days := (int(weekday) - int(WeekdayOf(now)) + daysPerWeek) % daysPerWeek
	if days == 0 && !TimeOfDayOf(now).Before(tod) {
		days = daysPerWeek
	}

	return tod.On(now.AddDate(0, 0, days))
}
