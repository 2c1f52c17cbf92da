package request

// CreateConfigEntry is the payload for defining a runtime setting.
type CreateConfigEntry struct {
	Key         string `json:"key" validate:"required"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsSensitive bool   `json:"is_sensitive"`
}

// UpdateConfigEntry carries partial updates; nil fields are left unchanged.
type UpdateConfigEntry struct {
	Value       *string `json:"value"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	IsSensitive *bool   `json:"is_sensitive"`
}

// ImportEnv is the payload for bulk-importing settings from env-file text.
type ImportEnv struct {
	Content string `json:"content" validate:"required"`
}
