package dynconfig

import (
	"strconv"
	"strings"
)

// Coerce sniffs a stored string value into a typed Go value:
// case-insensitive "true"/"false" become bool, all-digit strings become int,
// strings with one embedded decimal point that parse become float64, and
// everything else stays a string.
func Coerce(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}

	if value != "" && isDigits(value) {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}

	if strings.Count(value, ".") == 1 {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}

	return value
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
