package model

import "time"

// MaskedValue replaces sensitive values on read-back.
const MaskedValue = "***HIDDEN***"

// ConfigEntry is one runtime-mutable key/value setting. Values are opaque
// strings in storage and type-coerced on read.
type ConfigEntry struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	IsSensitive bool      `json:"is_sensitive"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Masked returns a copy safe for read-back: sensitive values are hidden.
func (c ConfigEntry) Masked() ConfigEntry {
	if c.IsSensitive {
		c.Value = MaskedValue
	}
	return c
}
