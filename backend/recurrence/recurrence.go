// Package recurrence models a weekly recurring schedule as a set of weekdays.
package recurrence

import (
	"strings"
	"time"
)

// Day is a day of the week, starting on Monday.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Days lists every day in display order.
var Days = [7]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var abbreviations = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// String returns the three-letter abbreviation of the day.
func (d Day) String() string {
	if d < Monday || d > Sunday {
		return ""
	}
	return abbreviations[d]
}

// Weekday converts the day to its time.Weekday equivalent.
func (d Day) Weekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

// DayFromWeekday converts a time.Weekday to a Day.
func DayFromWeekday(w time.Weekday) Day {
	return Day((int(w) + 6) % 7)
}

// Recurrence holds one flag per day of the week. The zero value recurs on no day.
type Recurrence struct {
	Monday    bool
	Tuesday   bool
	Wednesday bool
	Thursday  bool
	Friday    bool
	Saturday  bool
	Sunday    bool
}

// Pattern is an external recurrence description that exposes its day-of-week set.
type Pattern interface {
	Weekdays() []time.Weekday
}

// FromString parses free text. A day is set when its abbreviation appears
// anywhere in the text, ignoring case. Anything else is ignored, so the text
// "Thumbs up" recurs on Thursday.
func FromString(text string) Recurrence {
	folded := strings.ToLower(text)
	var r Recurrence
	for _, d := range Days {
		if strings.Contains(folded, strings.ToLower(d.String())) {
			r.Set(d, true)
		}
	}
	return r
}

// FromPattern copies the day-of-week set of an external pattern.
// Interval, range and type of the pattern are not consulted.
func FromPattern(p Pattern) Recurrence {
	var r Recurrence
	if p == nil {
		return r
	}
	for _, w := range p.Weekdays() {
		r.Set(DayFromWeekday(w), true)
	}
	return r
}

// FromWeekdays builds a recurrence from a list of weekdays.
func FromWeekdays(days ...time.Weekday) Recurrence {
	return FromPattern(weekdays(days))
}

type weekdays []time.Weekday

func (w weekdays) Weekdays() []time.Weekday { return w }

// Has reports whether the recurrence includes the given day.
func (r Recurrence) Has(d Day) bool {
	switch d {
	case Monday:
		return r.Monday
	case Tuesday:
		return r.Tuesday
	case Wednesday:
		return r.Wednesday
	case Thursday:
		return r.Thursday
	case Friday:
		return r.Friday
	case Saturday:
		return r.Saturday
	case Sunday:
		return r.Sunday
	}
	return false
}

// Set switches a single day on or off.
func (r *Recurrence) Set(d Day, on bool) {
	switch d {
	case Monday:
		r.Monday = on
	case Tuesday:
		r.Tuesday = on
	case Wednesday:
		r.Wednesday = on
	case Thursday:
		r.Thursday = on
	case Friday:
		r.Friday = on
	case Saturday:
		r.Saturday = on
	case Sunday:
		r.Sunday = on
	}
}

// IsEmpty reports whether no day is set.
func (r Recurrence) IsEmpty() bool {
	return r == Recurrence{}
}

// Weekdays returns the active days in Monday to Sunday order.
func (r Recurrence) Weekdays() []time.Weekday {
	var out []time.Weekday
	for _, d := range Days {
		if r.Has(d) {
			out = append(out, d.Weekday())
		}
	}
	return out
}

// String joins the active day abbreviations with ", " in Monday to Sunday order.
func (r Recurrence) String() string {
	var parts []string
	for _, d := range Days {
		if r.Has(d) {
			parts = append(parts, d.String())
		}
	}
	return strings.Join(parts, ", ")
}

// MarshalText encodes the recurrence in its display form.
func (r Recurrence) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes the display form produced by MarshalText.
func (r *Recurrence) UnmarshalText(text []byte) error {
	*r = FromString(string(text))
	return nil
}
