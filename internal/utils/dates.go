package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// offsetPattern matches offsets such as 3d, +2w or -1m.
var offsetPattern = regexp.MustCompile(`^([+-]?)(\d+)([dwm])$`)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseDueDate turns user input into a due date at local midnight.
//
// Accepted forms are YYYY-MM-DD, "today", "tomorrow", a weekday name
// (the next such day, never today) and offsets like 3d, +2w or 1m.
// An empty value or "none" clears the date and returns nil, nil.
func ParseDueDate(value string, now time.Time) (*time.Time, error) {
	input := strings.ToLower(strings.TrimSpace(value))
	if input == "" || input == "none" {
		return nil, nil
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch input {
	case "today":
		return &today, nil
	case "tomorrow":
		t := today.AddDate(0, 0, 1)
		return &t, nil
	}

	if wd, ok := weekdayNames[input]; ok {
		days := (int(wd) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		t := today.AddDate(0, 0, days)
		return &t, nil
	}

	if m := offsetPattern.FindStringSubmatch(input); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, ErrInvalidDate(value)
		}
		if m[1] == "-" {
			n = -n
		}
		var t time.Time
		switch m[3] {
		case "d":
			t = today.AddDate(0, 0, n)
		case "w":
			t = today.AddDate(0, 0, 7*n)
		case "m":
			t = today.AddDate(0, n, 0)
		}
		return &t, nil
	}

	t, err := time.ParseInLocation("2006-01-02", input, now.Location())
	if err != nil {
		return nil, ErrInvalidDate(value)
	}
	return &t, nil
}
