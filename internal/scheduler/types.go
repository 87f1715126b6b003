// Package scheduler runs recurring tasks against the tool registry.
//
// Tasks are described in natural language ("every 30 minutes", "daily at
// 9am") and evaluated on a fixed tick. Firing goes straight to the tool
// registry, not through the orchestration loop: a scheduled task names
// its tool explicitly, so planning, budgets, and drafting do not apply.
package scheduler

import (
	"time"

	"github.com/wardlow/reeve-agent/internal/tool"
)

// ScheduleKind identifies the schedule type.
type ScheduleKind string

const (
	KindInterval ScheduleKind = "interval"
	KindDaily    ScheduleKind = "daily"
	KindWeekly   ScheduleKind = "weekly"
)

// ScheduleSpec is the parsed form of a schedule phrase.
type ScheduleSpec struct {
	Kind ScheduleKind `json:"kind"`
	// Minutes is the recurrence period for interval schedules.
	Minutes int `json:"minutes,omitempty"`
	// Hour/Minute are the local wall-clock firing time for daily and
	// weekly schedules.
	Hour   int `json:"hour,omitempty"`
	Minute int `json:"minute,omitempty"`
	// DayOfWeek applies to weekly schedules only.
	DayOfWeek time.Weekday `json:"day_of_week,omitempty"`
}

// Due reports whether a task with this schedule should fire at now,
// given when it last ran (zero means never).
//
// The daily and weekly kinds compare wall-clock minutes, so they only
// fire on the tick that lands inside the scheduled minute; the guard on
// lastRun prevents a second firing when two ticks land in that minute.
func (s ScheduleSpec) Due(now, lastRun time.Time) bool {
	switch s.Kind {
	case KindInterval:
		if lastRun.IsZero() {
			return true
		}
		return now.Sub(lastRun) >= time.Duration(s.Minutes)*time.Minute

	case KindDaily:
		if now.Hour() != s.Hour || now.Minute() != s.Minute {
			return false
		}
		if lastRun.IsZero() {
			return true
		}
		ly, lm, ld := lastRun.Date()
		ny, nm, nd := now.Date()
		return ly != ny || lm != nm || ld != nd

	case KindWeekly:
		if now.Weekday() != s.DayOfWeek || now.Hour() != s.Hour || now.Minute() != s.Minute {
			return false
		}
		return lastRun.IsZero() || now.Sub(lastRun) >= 24*time.Hour

	default:
		return false
	}
}

// TaskResult records the outcome of a task's most recent firing.
type TaskResult struct {
	Success bool   `json:"success"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Task is the definition of a recurring action.
type Task struct {
	ID       string       `json:"id"` // UUIDv7
	Name     string       `json:"name"`
	Schedule ScheduleSpec `json:"schedule"`
	// ScheduleText is the original phrase, kept for display and so the
	// task survives future parser changes verbatim.
	ScheduleText string       `json:"schedule_text"`
	Tool         string       `json:"tool"`
	Input        any          `json:"input,omitempty"`
	Context      tool.Context `json:"context,omitempty"`
	Enabled      bool         `json:"enabled"`
	CreatedAt    time.Time    `json:"created_at"`
	LastRun      time.Time    `json:"last_run,omitzero"`
	RunCount     int          `json:"run_count"`
	LastResult   *TaskResult  `json:"last_result,omitempty"`
}
