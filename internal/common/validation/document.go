package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DocumentSchema is a compiled JSON Schema document for validating raw
// request bodies.
type DocumentSchema struct {
	schema *gojsonschema.Schema
}

func CompileSchema(schemaJSON string) (*DocumentSchema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &DocumentSchema{schema: schema}, nil
}

// MustCompileSchema panics on an invalid schema; use it for package-level schemas.
func MustCompileSchema(schemaJSON string) *DocumentSchema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes validates a raw JSON document.
func (d *DocumentSchema) ValidateBytes(doc []byte) *ValidationResult {
	return d.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateValue validates an already decoded value.
func (d *DocumentSchema) ValidateValue(doc interface{}) *ValidationResult {
	return d.validate(gojsonschema.NewGoLoader(doc))
}

func (d *DocumentSchema) validate(loader gojsonschema.JSONLoader) *ValidationResult {
	result, err := d.schema.Validate(loader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_JSON",
			}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	return &ValidationResult{
		Valid:  result.Valid(),
		Errors: errs,
	}
}
