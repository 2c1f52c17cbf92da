package model

import (
	"fmt"
	"time"
)

// Cleanup operation kinds. Each kind bulk-clears one field across the
// resources in scope.
const (
	OpClearStatus = "clear-status"
	OpClearLabel  = "clear-label"
	OpClearCounts = "clear-counts"
)

// ValidOp reports whether kind is a known cleanup operation.
func ValidOp(kind string) bool {
	switch kind {
	case OpClearStatus, OpClearLabel, OpClearCounts:
		return true
	}
	return false
}

// CleanupTask is a recurring daily job that bulk-clears resource fields.
// TargetGroupIDs empty means all groups; stale references are skipped at
// execution time.
type CleanupTask struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	ScheduleTime   string     `json:"schedule_time"` // HH:MM, no date component
	IsEnabled      bool       `json:"is_enabled"`
	Operations     []string   `json:"operations"`
	TargetGroupIDs []string   `json:"target_group_ids,omitempty"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ParseScheduleTime validates and splits an HH:MM wall-clock time.
func ParseScheduleTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time format %q, use HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// NextRun computes the next wall-clock fire time for a daily schedule: today
// at the scheduled time if that is still ahead of now, otherwise tomorrow.
// The result is always strictly after now.
func NextRun(now time.Time, scheduleTime string) (time.Time, error) {
	hour, minute, err := ParseScheduleTime(scheduleTime)
	if err != nil {
		return time.Time{}, err
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if candidate.After(now) {
		return candidate, nil
	}
	return candidate.AddDate(0, 0, 1), nil
}
