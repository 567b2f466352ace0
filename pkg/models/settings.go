package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ConnectionSettings is the single persisted upstream configuration
type ConnectionSettings struct {
	ServerURL string `json:"serverUrl" yaml:"serverUrl" toml:"serverUrl" validate:"required,url"`
	APIKey    string `json:"apiKey" yaml:"apiKey" toml:"apiKey" validate:"required"`
}

// Validate checks that the server URL is absolute and the API key is set
func (s ConnectionSettings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			switch fe.Tag() {
			case "required":
				msgs = append(msgs, fmt.Sprintf("%s is required", jsonFieldName(fe.Field())))
			case "url":
				msgs = append(msgs, fmt.Sprintf("%s must be an absolute URL", jsonFieldName(fe.Field())))
			default:
				msgs = append(msgs, fmt.Sprintf("%s is invalid", jsonFieldName(fe.Field())))
			}
		}
		return fmt.Errorf("invalid connection settings: %s", strings.Join(msgs, "; "))
	}

	return fmt.Errorf("invalid connection settings: %w", err)
}

// Configured reports whether an upstream client can be built from these settings
func (s ConnectionSettings) Configured() bool {
	return s.APIKey != ""
}

func jsonFieldName(field string) string {
	switch field {
	case "ServerURL":
		return "serverUrl"
	case "APIKey":
		return "apiKey"
	}
	return field
}
