package timeutil

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
)

var defaultLocation = func() *time.Location {
	// the household, the plan files and Nord Pool SE areas all use Swedish time
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		panic(fmt.Errorf("failed to load local time location: %w", err))
	}
	return loc
}()

var localLocation = defaultLocation

// Configured registers the timezone flag and resolves it.
func Configured() {
	name := lflag.String("local-timezone", "Europe/Stockholm", "IANA timezone of the household, used for day boundaries")

	lflag.Do(func() {
		loc, err := time.LoadLocation(*name)
		if err != nil {
			panic(fmt.Sprintf("failed to load local-timezone (%s): %v", *name, err))
		}
		localLocation = loc
	})
}

// Location returns the configured household location.
func Location() *time.Location {
	return localLocation
}

// Date identifies one local calendar day. It is comparable so it can be used
// directly as the "is this cached data still for today" marker.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

// DayOf returns the local calendar date the instant falls on.
func DayOf(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// SameLocalDay reports whether both instants fall on the same local calendar day.
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	return DayOf(a, loc) == DayOf(b, loc)
}

// DayWindow returns the UTC start (inclusive) and end (exclusive) of the local
// calendar day the instant falls on, shifted by offset days (0 today, -1
// yesterday, +1 tomorrow), plus the local date of that day.
//
// The hour is pinned to noon before the offset is applied so the arithmetic
// never lands inside a DST transition. Days around a transition come out 23 or
// 25 hours long instead of an assumed 24.
func DayWindow(t time.Time, offset int, loc *time.Location) (time.Time, time.Time, Date) {
	local := t.In(loc)
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	noon = noon.AddDate(0, 0, offset)

	start := time.Date(noon.Year(), noon.Month(), noon.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	return start.UTC(), end.UTC(), Date{Year: noon.Year(), Month: noon.Month(), Day: noon.Day()}
}

// TruncHour truncates the instant to the top of the local hour, returned in UTC.
func TruncHour(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).UTC()
}

// TruncQuarter truncates the instant to the nearest earlier local quarter hour,
// returned in UTC.
func TruncQuarter(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute()/15*15, 0, 0, loc).UTC()
}
