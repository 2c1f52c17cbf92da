package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/fleet/internal/model"
)

var validate = validator.New()

// Device codes as issued by the fleet provider: case-insensitive
// alphanumeric with hyphens, up to 63 characters.
var codeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,62}$`)

// Wall-clock schedule times, 24h HH:MM.
var hhmmRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func init() {
	validate.RegisterValidation("devicecode", func(fl validator.FieldLevel) bool {
		return codeRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("cleanupop", func(fl validator.FieldLevel) bool {
		return model.ValidOp(fl.Field().String())
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
