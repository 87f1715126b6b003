package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The parser accepts a closed set of phrasings. Anything outside it is
// rejected with a descriptive error rather than guessed at: a scheduled
// task that fires at the wrong time is worse than one that was never
// accepted.
var (
	intervalRe = regexp.MustCompile(`(?i)^every\s+(\d+)\s+(minutes?|hours?)$`)
	dailyRe    = regexp.MustCompile(`(?i)^(?:daily|every\s+day)\s+at\s+(.+)$`)
	weeklyRe   = regexp.MustCompile(`(?i)^(?:weekly\s+on|every)\s+(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\s+at\s+(.+)$`)
	timeRe     = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Parse converts a schedule phrase into a ScheduleSpec. Accepted shapes:
//
//	every N minutes / every N hours
//	daily at TIME / every day at TIME
//	weekly on WEEKDAY at TIME / every WEEKDAY at TIME
//
// TIME is "H", "H:MM", or either with an am/pm suffix ("9am", "14:30",
// "6:15 pm").
func Parse(text string) (ScheduleSpec, error) {
	s := strings.TrimSpace(text)

	if m := intervalRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return ScheduleSpec{}, fmt.Errorf("interval must be a positive number, got %q", m[1])
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "hour") {
			n *= 60
		}
		return ScheduleSpec{Kind: KindInterval, Minutes: n}, nil
	}

	if m := dailyRe.FindStringSubmatch(s); m != nil {
		hour, minute, err := parseClock(m[1])
		if err != nil {
			return ScheduleSpec{}, err
		}
		return ScheduleSpec{Kind: KindDaily, Hour: hour, Minute: minute}, nil
	}

	if m := weeklyRe.FindStringSubmatch(s); m != nil {
		hour, minute, err := parseClock(m[2])
		if err != nil {
			return ScheduleSpec{}, err
		}
		return ScheduleSpec{
			Kind:      KindWeekly,
			DayOfWeek: weekdays[strings.ToLower(m[1])],
			Hour:      hour,
			Minute:    minute,
		}, nil
	}

	return ScheduleSpec{}, fmt.Errorf(
		`unrecognized schedule %q (try "every 30 minutes", "daily at 9am", or "weekly on Monday at 14:30")`, text)
}

// parseClock parses the TIME portion of a schedule phrase into a
// 24-hour (hour, minute) pair. 12am maps to 0, 12pm stays 12.
func parseClock(s string) (hour, minute int, err error) {
	m := timeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized time %q", s)
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}

	switch strings.ToLower(m[3]) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("hour %d out of range for am/pm", hour)
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, 0, fmt.Errorf("hour %d out of range for am/pm", hour)
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, 0, fmt.Errorf("hour %d out of range", hour)
		}
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range", minute)
	}
	return hour, minute, nil
}
