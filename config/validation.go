package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	if cfg.Metrics.Enabled && cfg.Server.Port != 0 && portOf(cfg.Metrics.Listen) == cfg.Server.Port {
		return fmt.Errorf("metrics.listen: port %d is already used by the server", cfg.Server.Port)
	}
	return nil
}

// formatValidationError reports the first failed field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
