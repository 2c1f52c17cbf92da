package request

// CreateCleanupTask is the payload for scheduling a recurring cleanup job.
type CreateCleanupTask struct {
	Name           string   `json:"name" validate:"required"`
	Description    string   `json:"description"`
	ScheduleTime   string   `json:"schedule_time" validate:"required,hhmm"`
	IsEnabled      *bool    `json:"is_enabled"`
	Operations     []string `json:"operations" validate:"required,min=1,dive,cleanupop"`
	TargetGroupIDs []string `json:"target_group_ids"`
}

// UpdateCleanupTask carries partial updates; nil fields are left unchanged.
type UpdateCleanupTask struct {
	Name           *string  `json:"name"`
	Description    *string  `json:"description"`
	ScheduleTime   string   `json:"schedule_time" validate:"omitempty,hhmm"`
	Operations     []string `json:"operations" validate:"omitempty,min=1,dive,cleanupop"`
	TargetGroupIDs []string `json:"target_group_ids"`
}
