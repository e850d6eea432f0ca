package coursecomplete

import (
	"graphwise-relay/internal/common/certificate"
	"graphwise-relay/internal/common/hubspot"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/notify"
)

const (
	ContactActionUpdated = "updated"
	ContactActionCreated = "created"

	CertificateIssued  = "issued"
	CertificateFailed  = "failed"
	CertificateSkipped = "skipped"
)

// Input is a validated completion event.
type Input struct {
	Email       string `json:"email"`
	CourseName  string `json:"course_name"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type Output struct {
	Status            string `json:"status"`
	ContactID         string `json:"contact_id"`
	ContactAction     string `json:"contact_action"`
	CertificateURL    string `json:"certificate_url,omitempty"`
	CertificateStatus string `json:"certificate_status"`
}

type ServiceDependencies struct {
	CRM          hubspot.ContactAPI
	Certificates certificate.Issuer
	Notifier     notify.Notifier
	Logger       logger.Logger
}
