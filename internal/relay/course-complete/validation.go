package coursecomplete

import "graphwise-relay/internal/common/validation"

// Older plugin revisions posted contact_email and course_id.
var fieldAliases = map[string]string{
	"contact_email": "email",
	"course_id":     "course_name",
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"email", "course_name"},
		Properties: map[string]validation.Property{
			"email": {
				Type:        "string",
				Description: "Learner email address",
				MinLength:   intPtr(3),
				MaxLength:   intPtr(254),
			},
			"course_name": {
				Type:        "string",
				Description: "Course identifier written to the CRM",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(512),
			},
			"completed_at": {
				Type:        "string",
				Description: "Completion timestamp, passed through unchanged",
				MaxLength:   intPtr(64),
			},
		},
		AdditionalProperties: true,
	}
}

func intPtr(i int) *int {
	return &i
}
