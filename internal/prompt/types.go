// Package prompt provides interactive terminal prompts for collecting user input.
package prompt

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// FieldType decides how a field is validated and rendered.
type FieldType string

const (
	TypeText   FieldType = "text"
	TypeHost   FieldType = "host"
	TypePort   FieldType = "port"
	TypePath   FieldType = "path"
	TypeURL    FieldType = "url"
	TypeSecret FieldType = "secret"
)

// Field is one question asked by CollectTarget. Key is the config key the
// answer is stored under.
type Field struct {
	Key         string
	Title       string
	Description string
	Type        FieldType
	Required    bool
	Default     string
}

// ValidateByType returns an appropriate validation function for the type.
// Returns nil if no validation is needed.
func ValidateByType(fieldType FieldType) func(string) error {
	switch fieldType {
	case TypeHost:
		return validateHost
	case TypePort:
		return validatePort
	case TypePath:
		return validatePath
	case TypeURL:
		return validateURL
	default:
		return nil
	}
}

// Validation functions

func validateHost(value string) error {
	if value == "" {
		return nil
	}
	if strings.ContainsAny(value, " \t/") {
		return fmt.Errorf("host must not contain spaces or slashes")
	}
	return nil
}

func validatePort(value string) error {
	if value == "" {
		return nil // Empty is valid
	}

	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	return nil
}

func validatePath(value string) error {
	if strings.ContainsAny(value, "\n\r\x00") {
		return fmt.Errorf("path must be a single line")
	}
	return nil
}

func validateURL(value string) error {
	if value == "" {
		return nil // Empty is valid (user may press enter to skip)
	}

	u, err := url.ParseRequestURI(value)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}

	// Check that it has a scheme (http, https, etc.)
	if u.Scheme == "" {
		return fmt.Errorf("URL must include a scheme (e.g., https://)")
	}

	return nil
}

// validateRequired wraps fn so empty input is rejected.
func validateRequired(fn func(string) error) func(string) error {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("this field is required")
		}
		if fn != nil {
			return fn(value)
		}
		return nil
	}
}

// GetPlaceholder returns an appropriate placeholder text for the given type.
func GetPlaceholder(fieldType FieldType, defaultValue string) string {
	if defaultValue != "" {
		return defaultValue
	}

	switch fieldType {
	case TypeHost:
		return "example.com"
	case TypePort:
		return "22"
	case TypePath:
		return "/var/www/html"
	case TypeURL:
		return "https://hooks.example.com/deploy"
	default:
		return ""
	}
}
