package request

// CreateResource is the payload for adding a channel URL to a target group.
type CreateResource struct {
	URL             string `json:"url" validate:"required,url"`
	Name            string `json:"name"`
	Label           string `json:"label"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
	MaxNum          int    `json:"max_num" validate:"required,gt=0"`
	IsActive        *bool  `json:"is_active"`
}

// UpdateResource carries partial updates; nil fields are left unchanged.
type UpdateResource struct {
	URL             string  `json:"url" validate:"omitempty,url"`
	Name            *string `json:"name"`
	Label           *string `json:"label"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,gte=0"`
	MaxNum          *int    `json:"max_num" validate:"omitempty,gt=0"`
}

// SetLabel replaces a resource's label. An empty string clears it.
type SetLabel struct {
	Label string `json:"label"`
}

// SetStatus replaces a resource's free-form status text.
type SetStatus struct {
	Status string `json:"status"`
}
