package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/drivelab/orgdrive/pkg/drive"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for rules that
// cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Identity fields must be well-formed prefixed UUIDs
	if err := drive.ValidateIDAs(cfg.Drive.OwnerID, string(drive.PrefixUser)); err != nil {
		return fmt.Errorf("drive.owner_id: %w", err)
	}
	if cfg.Drive.ID != "" {
		if err := drive.ValidateIDAs(cfg.Drive.ID, string(drive.PrefixDrive)); err != nil {
			return fmt.Errorf("drive.id: %w", err)
		}
	}

	// Badger needs somewhere to put its files
	if cfg.Store.Type == "badger" && cfg.Store.Badger.Path == "" {
		return fmt.Errorf("store.badger.path: required when store.type is badger")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
