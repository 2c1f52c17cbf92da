package model

import "time"

// TargetGroup is one managed remote device and its configuration envelope.
// It owns a set of Resources; deleting a group cascades to them.
type TargetGroup struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	IsActive       bool      `json:"is_active"`
	IsRunning      bool      `json:"is_running"`
	SuccessTimeMin int       `json:"success_time_min"`
	SuccessTimeMax int       `json:"success_time_max"`
	ResetTime      int       `json:"reset_time"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GroupStatus aggregates resource counters for one target group.
type GroupStatus struct {
	GroupID          string `json:"group_id"`
	TotalResources   int    `json:"total_resources"`
	Available        int    `json:"available"`
	Running          int    `json:"running"`
	Completed        int    `json:"completed"`
	TotalExecutions  int    `json:"total_executions"`
	MaxExecutions    int    `json:"max_executions"`
	TotalRunningSecs int64  `json:"total_running_seconds"`
}

// LabelCount is one entry of the per-label resource tally for a group.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}
