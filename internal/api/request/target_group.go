package request

// CreateTargetGroup is the payload for registering a managed device.
type CreateTargetGroup struct {
	Code           string `json:"code" validate:"required,devicecode"`
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	IsActive       *bool  `json:"is_active"`
	SuccessTimeMin int    `json:"success_time_min" validate:"gte=0"`
	SuccessTimeMax int    `json:"success_time_max" validate:"gte=0"`
	ResetTime      int    `json:"reset_time" validate:"gte=0"`
}

// UpdateTargetGroup carries partial updates; nil fields are left unchanged.
type UpdateTargetGroup struct {
	Code           string  `json:"code" validate:"omitempty,devicecode"`
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	SuccessTimeMin *int    `json:"success_time_min" validate:"omitempty,gte=0"`
	SuccessTimeMax *int    `json:"success_time_max" validate:"omitempty,gte=0"`
	ResetTime      *int    `json:"reset_time" validate:"omitempty,gte=0"`
}
