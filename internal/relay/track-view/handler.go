package trackview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/metrics"
	"graphwise-relay/internal/common/validation"
	"graphwise-relay/internal/relay"
	"graphwise-relay/internal/tally"
)

const HandlerName = "track-view"

type Handler struct {
	config  *Config
	logger  logger.Logger
	schema  *validation.DocumentSchema
	service *Service
	errors  *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Deps         ServiceDependencies
	Logger       logger.Logger
}

// NewHandler builds the endpoint. Without a tally buffer the endpoint is
// registered but answers ENDPOINT_DISABLED.
func NewHandler(opts HandlerOptions) (*Handler, error) {
	handlerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := handlerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", HandlerName, err)
	}

	deps := opts.Deps
	switch deps.Buffer.(type) {
	case nil, tally.NopBuffer, *tally.NopBuffer:
		handlerConfig.Enabled = false
		deps.Buffer = tally.NopBuffer{}
	}

	schema, err := GetInputSchema(handlerConfig.MaxCategories)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", HandlerName, err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"handler": HandlerName})
	deps.Logger = loggerInstance

	return &Handler{
		config:  handlerConfig,
		logger:  loggerInstance,
		schema:  schema,
		service: NewService(deps),
		errors:  errors.NewErrorHandler(loggerInstance),
	}, nil
}

// Serve handles POST /graphwise/v1/track-view.
func (h *Handler) Serve(ctx context.Context, req relay.Request) relay.Response {
	done := metrics.Track(HandlerName)

	if !h.config.Enabled {
		return h.fail(done, errors.NewEndpointDisabledError(HandlerName))
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(req.Body)
	if err != nil {
		return h.fail(done, err)
	}

	output, err := h.service.Execute(ctx, input)
	if err != nil {
		return h.fail(done, err)
	}

	done("")
	return relay.OK(output)
}

func (h *Handler) fail(done func(string), err error) relay.Response {
	stdErr := errors.Normalize(err)
	done(string(stdErr.Code))
	return h.errors.Respond(stdErr, nil)
}

func (h *Handler) parseInput(body []byte) (*Input, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.NewValidationError("request body is empty")
	}

	result := h.schema.ValidateBytes(body)
	if !result.Valid {
		if len(result.Errors) == 1 && result.Errors[0].Code == "INVALID_JSON" {
			return nil, errors.NewInvalidPayloadError(fmt.Errorf("%s", result.Errors[0].Message))
		}
		return nil, errors.NewValidationError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, errors.NewInvalidPayloadError(err)
	}
	input.Email = strings.TrimSpace(input.Email)
	if !validation.ValidateEmail(input.Email) {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid email address: %q", input.Email))
	}
	return &input, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		c := *customConfig
		return &c
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		handlerCfg := config.GetHandlerConfig(appConfig, HandlerName)
		cfg.Enabled = handlerCfg.Enabled && appConfig.Tally.Enabled
		if handlerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(handlerCfg.Timeout)
		}
		if appConfig.Tally.MaxCategories > 0 {
			cfg.MaxCategories = appConfig.Tally.MaxCategories
		}
	}

	return cfg
}

var _ relay.Endpoint = (*Handler)(nil)
