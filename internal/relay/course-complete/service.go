package coursecomplete

import (
	"context"
	"time"

	"graphwise-relay/internal/common/certificate"
	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/hubspot"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/notify"
	"graphwise-relay/internal/settings"
)

const upstreamService = "hubspot"

type Service struct {
	config       *Config
	logger       logger.Logger
	crm          hubspot.ContactAPI
	certificates certificate.Issuer
	notifier     notify.Notifier
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		config:       config,
		logger:       deps.Logger,
		crm:          deps.CRM,
		certificates: deps.Certificates,
		notifier:     notifier,
	}
}

// Execute records the completion on the contact, creating the contact when
// the miss policy allows it, then runs the best-effort certificate and
// notification steps. Outbound calls are made one after another.
func (s *Service) Execute(ctx context.Context, snap settings.Snapshot, input *Input) (*Output, error) {
	if snap.HubSpotToken == "" {
		return nil, errors.NewCRMNotConfiguredError()
	}

	s.logger.Info("Executing course completion", map[string]interface{}{
		"email":  input.Email,
		"course": input.CourseName,
	})

	contact, err := s.crm.SearchContactByEmail(ctx, snap.HubSpotToken, input.Email, []string{"email"})
	if err != nil {
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamLookupFailed, upstreamService, hubspot.StatusOf(err), err)
	}

	properties := map[string]string{
		snap.PropertyCourseCompleted: input.CourseName,
	}
	if input.CompletedAt != "" {
		properties[snap.PropertyCompletedAt] = input.CompletedAt
	}

	output := &Output{Status: "ok"}

	if contact != nil {
		if _, err := s.crm.UpdateContact(ctx, snap.HubSpotToken, contact.ID, properties); err != nil {
			return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamUpdateFailed, upstreamService, hubspot.StatusOf(err), err)
		}
		output.ContactID = contact.ID
		output.ContactAction = ContactActionUpdated
	} else {
		if s.config.MissPolicy == config.MissPolicyReject {
			return nil, errors.NewContactNotFoundError(input.Email)
		}
		properties["email"] = input.Email
		created, err := s.crm.CreateContact(ctx, snap.HubSpotToken, properties)
		if err != nil {
			return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamCreateFailed, upstreamService, hubspot.StatusOf(err), err)
		}
		output.ContactID = created.ID
		output.ContactAction = ContactActionCreated
	}

	s.logger.Info("Contact updated with course completion", map[string]interface{}{
		"email":         input.Email,
		"contactId":     output.ContactID,
		"contactAction": output.ContactAction,
	})

	output.CertificateURL, output.CertificateStatus = s.issueCertificate(ctx, input)

	s.notifier.CourseCompleted(ctx, notify.CompletionEvent{
		Event:          notify.EventCourseCompleted,
		Email:          input.Email,
		CourseName:     input.CourseName,
		CompletedAt:    input.CompletedAt,
		ContactID:      output.ContactID,
		ContactAction:  output.ContactAction,
		CertificateURL: output.CertificateURL,
		OccurredAt:     time.Now().UTC(),
	})

	return output, nil
}

// issueCertificate never fails the request.
func (s *Service) issueCertificate(ctx context.Context, input *Input) (string, string) {
	if !s.config.CertificateEnabled || s.certificates == nil {
		return "", CertificateSkipped
	}

	url, err := s.certificates.Issue(ctx, certificate.Request{
		Email:       input.Email,
		CourseID:    input.CourseName,
		CourseName:  input.CourseName,
		CompletedAt: input.CompletedAt,
	})
	if err != nil {
		s.logger.Warn("Certificate issuance failed", map[string]interface{}{
			"email": input.Email,
			"error": err.Error(),
		})
		return "", CertificateFailed
	}
	return url, CertificateIssued
}
