package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxRoots         = 1000
	MaxNodeIDLength  = 512
	MaxTypeNameLen   = 128
	MaxExpectedTypes = 256
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("lineage_direction", func(fl validator.FieldLevel) bool {
		return lineage.Direction(fl.Field().Int()).Valid()
	})
}

// Struct validates v using its `validate` struct tags and returns the first
// failure in a readable form.
func Struct(v any) error {
	if v == nil {
		return errors.New("value cannot be nil")
	}
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateNodeID validates a single root identifier.
func ValidateNodeID(id lineage.NodeID) error {
	if strings.TrimSpace(string(id)) == "" {
		return errors.New("node id cannot be empty")
	}
	if len(id) > MaxNodeIDLength {
		return fmt.Errorf("node id %q exceeds maximum length of %d characters", truncate(string(id), 32), MaxNodeIDLength)
	}
	return nil
}

// ValidateRootIDs validates the root set of an analysis: non-empty, bounded
// and free of blank ids. Duplicates are allowed and collapse later.
func ValidateRootIDs(ids []lineage.NodeID) error {
	if len(ids) == 0 {
		return errors.New("RootIDs: at least one root id is required")
	}
	if len(ids) > MaxRoots {
		return fmt.Errorf("RootIDs: maximum %d roots allowed, got %d", MaxRoots, len(ids))
	}
	for i, id := range ids {
		if err := ValidateNodeID(id); err != nil {
			return fmt.Errorf("RootIDs[%d]: %w", i, err)
		}
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		case "lineage_direction":
			return fmt.Errorf("%s: must be upstream, downstream or both", field)
		case "gtefield":
			return fmt.Errorf("%s: must be at least %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
