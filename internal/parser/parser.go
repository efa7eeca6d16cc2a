package parser

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"elamid/internal/config"
	elamiderrors "elamid/internal/errors"
	"elamid/pkg/request"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(fieldName)
	if err := validate.RegisterValidation("operation", func(fl validator.FieldLevel) bool {
		return isPathSegment(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// fieldName reports fields under their query or config key so that
// validation messages name what the caller actually sent.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"query", "mapstructure"} {
		if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// isPathSegment reports whether operation names exactly one directory
// under /apps. Any other spelling, including unknown operations, is allowed.
func isPathSegment(operation string) bool {
	switch {
	case operation == "", operation == ".", operation == "..":
		return false
	case strings.HasPrefix(operation, "-"):
		return false
	case strings.ContainsAny(operation, "/\\\x00"):
		return false
	}
	return true
}

// ParseConfig layers defaults, the optional YAML file at filePath and ELAMID_*
// environment variables onto v, then unmarshals and validates the result.
// Flags should already be bound to v.
func ParseConfig(v *viper.Viper, filePath string) (*config.Config, error) {
	config.SetDefaults(v)
	config.BindEnv(v)

	if filePath != "" {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return nil, elamiderrors.NewConfigError(
				fmt.Sprintf("Failed to locate config file %s", filePath),
				"The file does not exist",
				"Check the --config path or omit it to run with defaults",
				err,
			)
		}

		v.SetConfigFile(filePath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, elamiderrors.NewConfigError(
				fmt.Sprintf("Failed to read config file %s", filePath),
				"The file is not valid YAML",
				"Fix the YAML syntax",
				err,
			)
		}
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, elamiderrors.NewConfigError("Failed to decode configuration", "", "", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, elamiderrors.NewConfigError("Invalid configuration", "", "", formatValidationError(err))
	}

	return &cfg, nil
}

// ParseRunRequest extracts and validates a RunRequest from a /run query string.
func ParseRunRequest(values url.Values) (*request.RunRequest, error) {
	req := request.FromQuery(values)
	if err := ValidateRunRequest(req); err != nil {
		return nil, err
	}
	return req, nil
}

// ValidateRunRequest checks the fields the launch cannot do without.
func ValidateRunRequest(req *request.RunRequest) error {
	if err := validate.Struct(req); err != nil {
		return elamiderrors.NewRequestError(
			"Invalid run request",
			"",
			"Provide ela_image, ela_api_host, ela_api_port, ela_ai_install_dir and ela_ai_operation",
			formatValidationError(err),
		)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, formatFieldError(e))
		}

		if len(errorMessages) == 1 {
			return fmt.Errorf("validation error: %s", errorMessages[0])
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errorMessages, "; "))
	}
	return fmt.Errorf("validation failed: %w", err)
}

// formatFieldError formats a single validation error into a user-friendly message.
func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("field '%s' is required but missing", field)
	case "numeric":
		return fmt.Sprintf("field '%s' must be numeric", field)
	case "startswith":
		return fmt.Sprintf("field '%s' must start with '%s'", field, e.Param())
	case "operation":
		return fmt.Sprintf("field '%s' must be a single path segment (no '/', '\\', '.' or '..', no leading '-')", field)
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, e.Param())
	case "gt", "gte":
		return fmt.Sprintf("field '%s' must be %s %s", field, map[string]string{"gt": ">", "gte": ">="}[tag], e.Param())
	default:
		return fmt.Sprintf("field '%s' failed validation (%s)", field, tag)
	}
}
