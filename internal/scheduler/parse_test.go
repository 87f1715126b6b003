package scheduler

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want ScheduleSpec
	}{
		{"every 30 minutes", ScheduleSpec{Kind: KindInterval, Minutes: 30}},
		{"every 1 minute", ScheduleSpec{Kind: KindInterval, Minutes: 1}},
		{"every 2 hours", ScheduleSpec{Kind: KindInterval, Minutes: 120}},
		{"Every 1 hour", ScheduleSpec{Kind: KindInterval, Minutes: 60}},
		{"daily at 9am", ScheduleSpec{Kind: KindDaily, Hour: 9}},
		{"daily at 12am", ScheduleSpec{Kind: KindDaily, Hour: 0}},
		{"daily at 12pm", ScheduleSpec{Kind: KindDaily, Hour: 12}},
		{"every day at 6:15 pm", ScheduleSpec{Kind: KindDaily, Hour: 18, Minute: 15}},
		{"daily at 14:30", ScheduleSpec{Kind: KindDaily, Hour: 14, Minute: 30}},
		{"weekly on Monday at 14:30", ScheduleSpec{Kind: KindWeekly, DayOfWeek: time.Monday, Hour: 14, Minute: 30}},
		{"every friday at 9am", ScheduleSpec{Kind: KindWeekly, DayOfWeek: time.Friday, Hour: 9}},
		{"weekly on sunday at 12am", ScheduleSpec{Kind: KindWeekly, DayOfWeek: time.Sunday, Hour: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		"sometime soon",
		"",
		"every minute",
		"every 0 minutes",
		"daily at 25",
		"daily at 13pm",
		"daily at 9:75",
		"weekly on someday at 9am",
		"monthly on the 1st",
	}
	for _, text := range bad {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) accepted, want error", text)
		}
	}
}

func TestDue(t *testing.T) {
	// Monday 2026-08-17 14:30 local time.
	at := time.Date(2026, 8, 17, 14, 30, 5, 0, time.Local)

	tests := []struct {
		name    string
		spec    ScheduleSpec
		now     time.Time
		lastRun time.Time
		want    bool
	}{
		{"interval never run", ScheduleSpec{Kind: KindInterval, Minutes: 30}, at, time.Time{}, true},
		{"interval elapsed", ScheduleSpec{Kind: KindInterval, Minutes: 30}, at, at.Add(-31 * time.Minute), true},
		{"interval not elapsed", ScheduleSpec{Kind: KindInterval, Minutes: 30}, at, at.Add(-10 * time.Minute), false},
		{"daily at the minute", ScheduleSpec{Kind: KindDaily, Hour: 14, Minute: 30}, at, time.Time{}, true},
		{"daily wrong minute", ScheduleSpec{Kind: KindDaily, Hour: 14, Minute: 31}, at, time.Time{}, false},
		{"daily already ran today", ScheduleSpec{Kind: KindDaily, Hour: 14, Minute: 30}, at, at.Add(-30 * time.Second), false},
		{"daily ran yesterday", ScheduleSpec{Kind: KindDaily, Hour: 14, Minute: 30}, at, at.AddDate(0, 0, -1), true},
		{"weekly match", ScheduleSpec{Kind: KindWeekly, DayOfWeek: time.Monday, Hour: 14, Minute: 30}, at, time.Time{}, true},
		{"weekly wrong day", ScheduleSpec{Kind: KindWeekly, DayOfWeek: time.Tuesday, Hour: 14, Minute: 30}, at, time.Time{}, false},
		{"weekly ran this minute", ScheduleSpec{Kind: KindWeekly, DayOfWeek: time.Monday, Hour: 14, Minute: 30}, at, at.Add(-30 * time.Second), false},
		{"weekly ran last week", ScheduleSpec{Kind: KindWeekly, DayOfWeek: time.Monday, Hour: 14, Minute: 30}, at, at.AddDate(0, 0, -7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Due(tt.now, tt.lastRun); got != tt.want {
				t.Errorf("Due = %v, want %v", got, tt.want)
			}
		})
	}
}
