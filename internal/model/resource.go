package model

import "time"

// Run-lifecycle states of a Resource.
const (
	StateInactive  = "inactive"
	StatePending   = "pending"
	StateRunning   = "running"
	StateExhausted = "exhausted"
)

// Transition reason codes for soft failures. Callers treat "cannot start"
// as an expected outcome, not an error.
const (
	ReasonInactive   = "inactive"
	ReasonExhausted  = "max reached"
	ReasonNotRunning = "not running"
)

// Transition is the result of applying a lifecycle operation to a Resource.
// OK reports whether the operation was permitted; Changed reports whether any
// field was actually mutated (stopping an already-stopped resource is OK but
// unchanged).
type Transition struct {
	OK      bool   `json:"ok"`
	Changed bool   `json:"changed"`
	Reason  string `json:"reason,omitempty"`
}

// Resource is one controllable sub-target (a messaging channel URL) owned by
// a TargetGroup, with a bounded execution budget.
type Resource struct {
	ID              string     `json:"id"`
	GroupID         string     `json:"group_id"`
	URL             string     `json:"url"`
	Name            string     `json:"name"`
	Label           string     `json:"label"`
	Status          string     `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	MaxNum          int        `json:"max_num"`
	CurrentCount    int        `json:"current_count"`
	IsActive        bool       `json:"is_active"`
	IsRunning       bool       `json:"is_running"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	StoppedAt       *time.Time `json:"stopped_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// State derives the lifecycle state from the resource's fields.
func (r *Resource) State() string {
	switch {
	case !r.IsActive:
		return StateInactive
	case r.CurrentCount >= r.MaxNum:
		return StateExhausted
	case r.IsRunning:
		return StateRunning
	default:
		return StatePending
	}
}

// CanExecute reports whether the execution budget still has headroom.
func (r *Resource) CanExecute() bool {
	return r.CurrentCount < r.MaxNum
}

// StartRunning moves the resource to the running state. Permitted only from
// pending: the resource must be active and below its execution cap.
func (r *Resource) StartRunning(now time.Time) Transition {
	if !r.IsActive {
		return Transition{Reason: ReasonInactive}
	}
	if !r.CanExecute() {
		return Transition{Reason: ReasonExhausted}
	}
	r.IsRunning = true
	r.StartedAt = &now
	r.StoppedAt = nil
	r.UpdatedAt = now
	return Transition{OK: true, Changed: true}
}

// Execute records one execution. Reaching the cap forces a stop as a side
// effect of the increment, independent of StopRunning.
func (r *Resource) Execute(now time.Time) Transition {
	if !r.CanExecute() {
		return Transition{Reason: ReasonExhausted}
	}
	r.CurrentCount++
	r.LastExecutedAt = &now
	r.UpdatedAt = now
	if r.CurrentCount >= r.MaxNum {
		r.IsRunning = false
		r.StoppedAt = &now
	}
	return Transition{OK: true, Changed: true}
}

// StopRunning clears the running state. Already-stopped resources report
// success without change.
func (r *Resource) StopRunning(now time.Time) Transition {
	if !r.IsRunning {
		return Transition{OK: true, Reason: ReasonNotRunning}
	}
	r.IsRunning = false
	r.StoppedAt = &now
	r.UpdatedAt = now
	return Transition{OK: true, Changed: true}
}

// Reset returns the resource fully to pending (or inactive when is_active is
// false): count to zero, run state and execution timestamps cleared.
func (r *Resource) Reset(now time.Time) {
	r.CurrentCount = 0
	r.LastExecutedAt = nil
	r.IsRunning = false
	r.StartedAt = nil
	r.StoppedAt = nil
	r.UpdatedAt = now
}

// RunningDuration returns the elapsed run time in whole seconds: the span
// from started_at to stopped_at, or to now while still running. Zero if the
// resource never started.
func (r *Resource) RunningDuration(now time.Time) int64 {
	if r.StartedAt == nil {
		return 0
	}
	end := now
	if r.StoppedAt != nil {
		end = *r.StoppedAt
	}
	return int64(end.Sub(*r.StartedAt).Seconds())
}
