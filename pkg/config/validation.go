package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules checks the section of the selected remote backend
// and the rules that span fields.
func validateCustomRules(cfg *Config) error {
	switch cfg.Remote.Type {
	case "webdav":
		if stringOption(cfg.Remote.WebDAV, "url") == "" {
			return fmt.Errorf("remote.webdav: url is required when remote.type is webdav")
		}
	case "s3":
		if stringOption(cfg.Remote.S3, "bucket") == "" {
			return fmt.Errorf("remote.s3: bucket is required when remote.type is s3")
		}
		if stringOption(cfg.Remote.S3, "region") == "" {
			return fmt.Errorf("remote.s3: region is required when remote.type is s3")
		}
	case "local":
		if stringOption(cfg.Remote.Local, "root") == "" {
			return fmt.Errorf("remote.local: root is required when remote.type is local")
		}
	}

	if _, err := cfg.Server.MaxUploadBytes(); err != nil {
		return err
	}

	if cfg.Metrics.Enabled && cfg.Server.Listen != "" {
		if port := portOf(cfg.Server.Listen); port == cfg.Metrics.Port {
			return fmt.Errorf("metrics.port: %d is already used by server.listen", port)
		}
	}

	return nil
}

func stringOption(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
