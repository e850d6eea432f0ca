package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+'-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// JSONSchema describes a flat JSON object: which fields must be present and
// the type and length bounds of each known field.
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties,omitempty"`
}

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	MinLength   *int   `json:"minLength,omitempty"`
	MaxLength   *int   `json:"maxLength,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput checks a decoded request object against schema.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	var errs []ValidationError

	for _, field := range schema.Required {
		if _, ok := input[field]; !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "required field missing",
				Code:    "REQUIRED_FIELD_MISSING",
			})
		}
	}

	for field, value := range input {
		prop, known := schema.Properties[field]
		if !known {
			if !schema.AdditionalProperties {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "field not allowed in schema",
					Code:    "EXTRA_FIELD",
				})
			}
			continue
		}
		if err := checkField(field, value, prop); err != nil {
			errs = append(errs, *err)
		}
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func checkField(field string, value interface{}, prop Property) *ValidationError {
	if err := checkType(value, prop.Type); err != nil {
		return &ValidationError{Field: field, Message: err.Error(), Code: "INVALID_TYPE"}
	}

	s, ok := value.(string)
	if !ok {
		return nil
	}
	n := utf8.RuneCountInString(s)
	if prop.MinLength != nil && n < *prop.MinLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be at least %d characters", *prop.MinLength),
			Code:    "MIN_LENGTH_VIOLATION",
		}
	}
	if prop.MaxLength != nil && n > *prop.MaxLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value must be at most %d characters", *prop.MaxLength),
			Code:    "MAX_LENGTH_VIOLATION",
		}
	}
	return nil
}

func checkType(value interface{}, want string) error {
	switch want {
	case "", "any":
		return nil
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "integer":
		switch v := value.(type) {
		case float64:
			if v == math.Trunc(v) {
				return nil
			}
			return fmt.Errorf("expected integer, got %v", v)
		case json.Number:
			if _, err := v.Int64(); err == nil {
				return nil
			}
			return fmt.Errorf("expected integer, got %v", v)
		case int, int64:
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]interface{}); ok {
			return nil
		}
	}
	return fmt.Errorf("expected %s, got %T", want, value)
}

// GetErrorMessages renders every error as "field: message".
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors reports whether field failed validation.
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// ValidateEmail reports whether email is a single plain address.
func ValidateEmail(email string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
