// Package settings holds the runtime settings every request reads: the CRM
// credential, form identifiers, property names, the thank-you slug and the
// webhook secret. A Snapshot is immutable; updates build a new one and swap it.
package settings

import (
	"fmt"
	"sort"
	"strings"

	"graphwise-relay/internal/common/config"
)

const (
	KeyHubSpotToken            = "hubspot_token"
	KeyPortalID                = "portal_id"
	KeyFormID                  = "form_id"
	KeyPropertyCourseCompleted = "property_course_completed"
	KeyPropertyCompletedAt     = "property_completed_at"
	KeyThankYouSlug            = "thank_you_slug"
	KeyWebhookSecret           = "webhook_secret"
)

var secretKeys = map[string]bool{
	KeyHubSpotToken:  true,
	KeyWebhookSecret: true,
}

// Keys lists every setting name in a stable order.
func Keys() []string {
	return []string{
		KeyHubSpotToken,
		KeyPortalID,
		KeyFormID,
		KeyPropertyCourseCompleted,
		KeyPropertyCompletedAt,
		KeyThankYouSlug,
		KeyWebhookSecret,
	}
}

// IsKnownKey reports whether key names a setting.
func IsKnownKey(key string) bool {
	return (&Snapshot{}).field(key) != nil
}

// UnknownKeyError is returned for a setting name that does not exist.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown setting %q", e.Key)
}

type Snapshot struct {
	HubSpotToken            string
	PortalID                string
	FormID                  string
	PropertyCourseCompleted string
	PropertyCompletedAt     string
	ThankYouSlug            string
	WebhookSecret           string
}

// FromConfig seeds a snapshot from the static configuration.
func FromConfig(cfg *config.Config) Snapshot {
	return Snapshot{
		HubSpotToken:            cfg.HubSpot.Token,
		PortalID:                cfg.HubSpot.PortalID,
		FormID:                  cfg.HubSpot.FormID,
		PropertyCourseCompleted: cfg.Properties.CourseCompleted,
		PropertyCompletedAt:     cfg.Properties.CompletedAt,
		ThankYouSlug:            cfg.Relay.ThankYouSlug,
		WebhookSecret:           cfg.Relay.WebhookSecret,
	}
}

func (s *Snapshot) field(key string) *string {
	switch key {
	case KeyHubSpotToken:
		return &s.HubSpotToken
	case KeyPortalID:
		return &s.PortalID
	case KeyFormID:
		return &s.FormID
	case KeyPropertyCourseCompleted:
		return &s.PropertyCourseCompleted
	case KeyPropertyCompletedAt:
		return &s.PropertyCompletedAt
	case KeyThankYouSlug:
		return &s.ThankYouSlug
	case KeyWebhookSecret:
		return &s.WebhookSecret
	}
	return nil
}

// With returns a copy with changes applied. The receiver is left untouched.
func (s Snapshot) With(changes map[string]string) (Snapshot, error) {
	next := s
	names := make([]string, 0, len(changes))
	for k := range changes {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		f := next.field(k)
		if f == nil {
			return s, &UnknownKeyError{Key: k}
		}
		*f = strings.TrimSpace(changes[k])
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// Validate checks the values that cannot be empty.
func (s Snapshot) Validate() error {
	if s.PropertyCourseCompleted == "" {
		return fmt.Errorf("%s must not be empty", KeyPropertyCourseCompleted)
	}
	if s.PropertyCompletedAt == "" {
		return fmt.Errorf("%s must not be empty", KeyPropertyCompletedAt)
	}
	if s.ThankYouSlug == "" || strings.ContainsAny(s.ThankYouSlug, "/ ") {
		return fmt.Errorf("%s must be a single path segment", KeyThankYouSlug)
	}
	return nil
}

// Values returns every setting keyed by name.
func (s Snapshot) Values() map[string]string {
	out := make(map[string]string, len(Keys()))
	for _, k := range Keys() {
		out[k] = *s.field(k)
	}
	return out
}

// Masked is Values with secrets reduced to their last four characters.
func (s Snapshot) Masked() map[string]string {
	out := s.Values()
	for k := range secretKeys {
		out[k] = Mask(out[k])
	}
	return out
}

// Mask renders a secret as "••••" plus its last four characters.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	r := []rune(v)
	if len(r) <= 4 {
		return "••••"
	}
	return "••••" + string(r[len(r)-4:])
}
