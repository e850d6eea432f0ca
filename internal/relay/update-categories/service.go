package updatecategories

import (
	"context"
	stderrors "errors"

	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/hubspot"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/settings"
	"graphwise-relay/internal/tally"
)

const upstreamService = "hubspot"

type Service struct {
	config *Config
	logger logger.Logger
	crm    hubspot.ContactAPI
	buffer tally.Buffer
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	buffer := deps.Buffer
	if buffer == nil {
		buffer = tally.NopBuffer{}
	}
	return &Service{
		config: config,
		logger: deps.Logger,
		crm:    deps.CRM,
		buffer: buffer,
	}
}

// Execute flushes the submitted tally, summed with whatever the buffer holds
// for the email, onto the contact's interest properties. The buffer is only
// cleared once the CRM accepted the write.
func (s *Service) Execute(ctx context.Context, snap settings.Snapshot, input *Input) (*Output, error) {
	if snap.HubSpotToken == "" {
		return nil, errors.NewCRMNotConfiguredError()
	}

	buffered, bufferErr := s.buffer.Load(ctx, input.Email)
	if bufferErr != nil {
		s.logger.Warn("Interest buffer unavailable, flushing submitted tally only", map[string]interface{}{
			"email": input.Email,
			"error": bufferErr.Error(),
		})
		buffered = nil
	}
	merged := input.Categories.Merge(buffered)

	contact, err := s.crm.SearchContactByEmail(ctx, snap.HubSpotToken, input.Email, []string{"email"})
	if err != nil {
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamLookupFailed, upstreamService, hubspot.StatusOf(err), err)
	}
	if contact == nil {
		return nil, errors.NewContactNotFoundError(input.Email)
	}

	if len(merged) == 0 {
		return &Output{Status: "ok", Updated: 0}, nil
	}

	if _, err := s.crm.UpdateContact(ctx, snap.HubSpotToken, contact.ID, merged.Properties(s.config.InterestPrefix)); err != nil {
		var upErr *hubspot.UpstreamError
		if stderrors.As(err, &upErr) {
			return nil, errors.NewUpstreamRejectedError(upstreamService, upErr.StatusCode, upErr.Body)
		}
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamUpdateFailed, upstreamService, 0, err)
	}

	if bufferErr == nil && len(buffered) > 0 {
		if err := s.buffer.Reset(ctx, input.Email); err != nil {
			s.logger.Warn("Failed to reset interest buffer", map[string]interface{}{
				"email": input.Email,
				"error": err.Error(),
			})
		}
	}

	s.logger.Info("Interest categories updated", map[string]interface{}{
		"email":     input.Email,
		"contactId": contact.ID,
		"updated":   len(merged),
		"buffered":  len(buffered),
	})

	return &Output{Status: "ok", Updated: len(merged)}, nil
}
