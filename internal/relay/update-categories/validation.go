package updatecategories

import (
	"fmt"

	"graphwise-relay/internal/common/validation"
	"graphwise-relay/internal/tally"
)

const inputSchemaTemplate = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["email", "categories"],
	"properties": {
		"email": {"type": "string", "minLength": 3, "maxLength": 254},
		"categories": {
			"type": "object",
			"maxProperties": %d,
			"propertyNames": {"pattern": %q},
			"additionalProperties": {"type": "integer", "minimum": 0}
		}
	}
}`

// GetInputSchema compiles the body schema for at most maxCategories slugs.
func GetInputSchema(maxCategories int) (*validation.DocumentSchema, error) {
	return validation.CompileSchema(fmt.Sprintf(inputSchemaTemplate, maxCategories, tally.SlugPattern))
}
