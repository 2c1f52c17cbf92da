package dynconfig

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/edvin/fleet/internal/model"
)

// FormatEnv renders config entries as dotenv text, grouped by category with
// comment headers. Entries are expected in (category, key) order, the order
// ConfigEntryService.List returns.
func FormatEnv(entries []model.ConfigEntry) string {
	var b strings.Builder
	currentCategory := ""

	for _, e := range entries {
		if e.Category != currentCategory {
			if currentCategory != "" {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "# %s\n", strings.ToUpper(e.Category))
			currentCategory = e.Category
		}
		if e.Description != "" {
			fmt.Fprintf(&b, "# %s\n", e.Description)
		}
		fmt.Fprintf(&b, "%s=%s\n", e.Key, e.Value)
	}

	return b.String()
}

// ParseEnv parses dotenv text into key/value pairs.
func ParseEnv(content string) (map[string]string, error) {
	pairs, err := godotenv.Unmarshal(content)
	if err != nil {
		return nil, fmt.Errorf("parse env content: %w", err)
	}
	return pairs, nil
}

// CategorizeKey infers a category and sensitivity for keys first seen during
// an env-file import.
func CategorizeKey(key string) (category string, sensitive bool) {
	switch {
	case strings.Contains(key, "DATABASE") || strings.HasPrefix(key, "DB_"):
		return "database", true
	case strings.Contains(key, "SECRET") || strings.Contains(key, "PASSWORD") ||
		strings.Contains(key, "TOKEN") || strings.Contains(key, "KEY"):
		return "security", true
	case strings.Contains(key, "DEVICE") || strings.Contains(key, "ACCESS"):
		return "device", true
	case strings.Contains(key, "PKG") || strings.Contains(key, "DEBUG"):
		return "app", false
	default:
		return "general", false
	}
}
