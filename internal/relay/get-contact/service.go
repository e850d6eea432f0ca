package getcontact

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/hubspot"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/metrics"
	"graphwise-relay/internal/settings"
)

const (
	upstreamService = "hubspot"
	cacheKeyPrefix  = "contact:"
)

type Service struct {
	config *Config
	logger logger.Logger
	crm    hubspot.ContactAPI
	cache  redis.UniversalClient
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		crm:    deps.CRM,
		cache:  deps.Cache,
	}
}

// CacheKey returns the cache key for email.
func CacheKey(email string) string {
	return cacheKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Execute returns the contact's name and email. Only found contacts are
// cached; cache failures never fail the lookup.
func (s *Service) Execute(ctx context.Context, snap settings.Snapshot, email string) (*Output, error) {
	if snap.HubSpotToken == "" {
		return nil, errors.NewCRMNotConfiguredError()
	}

	if cached := s.readCache(ctx, email); cached != nil {
		return cached, nil
	}

	contact, err := s.crm.SearchContactByEmail(ctx, snap.HubSpotToken, email, contactProperties)
	if err != nil {
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamLookupFailed, upstreamService, hubspot.StatusOf(err), err)
	}
	if contact == nil {
		return nil, errors.NewContactNotFoundError(email)
	}

	output := &Output{
		FirstName: contact.Property("firstname"),
		LastName:  contact.Property("lastname"),
		Email:     contact.Property("email"),
	}
	if output.Email == "" {
		output.Email = email
	}

	s.writeCache(ctx, email, output)
	return output, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.config.CacheTTL > 0
}

func (s *Service) readCache(ctx context.Context, email string) *Output {
	if !s.cacheEnabled() {
		return nil
	}

	raw, err := s.cache.Get(ctx, CacheKey(email)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		metrics.ContactCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	if err != nil {
		metrics.ContactCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("Contact cache read failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	var output Output
	if err := json.Unmarshal(raw, &output); err != nil {
		metrics.ContactCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("Discarding unreadable contact cache entry", map[string]interface{}{"error": err.Error()})
		return nil
	}
	metrics.ContactCacheLookups.WithLabelValues("hit").Inc()
	return &output
}

func (s *Service) writeCache(ctx context.Context, email string, output *Output) {
	if !s.cacheEnabled() {
		return
	}

	raw, err := json.Marshal(output)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, CacheKey(email), raw, s.config.CacheTTL).Err(); err != nil {
		s.logger.Warn("Contact cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
