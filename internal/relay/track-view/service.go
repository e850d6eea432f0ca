package trackview

import (
	"context"

	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/metrics"
	"graphwise-relay/internal/tally"
)

type Service struct {
	logger logger.Logger
	buffer tally.Buffer
}

func NewService(deps ServiceDependencies) *Service {
	return &Service{
		logger: deps.Logger,
		buffer: deps.Buffer,
	}
}

// Execute adds one view per category to the visitor's buffered tally and
// returns the tally as it now stands.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	current, err := s.buffer.Add(ctx, input.Email, input.Categories)
	if err != nil {
		metrics.TallyIncrements.WithLabelValues("error").Inc()
		return nil, errors.NewTallyBufferError(err)
	}
	metrics.TallyIncrements.WithLabelValues("ok").Add(float64(len(input.Categories)))

	s.logger.Debug("Page view tallied", map[string]interface{}{
		"email":      input.Email,
		"categories": input.Categories,
		"slugs":      len(current),
	})

	return &Output{Status: "ok", Tally: current}, nil
}
