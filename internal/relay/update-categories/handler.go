package updatecategories

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
	"graphwise-relay/internal/settings"
)

const HandlerName = "update-categories"

type Handler struct {
	config   *Config
	logger   logger.Logger
	settings settings.Provider
	schema   *validation.DocumentSchema
	service  *Service
	errors   *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Settings     settings.Provider
	Deps         ServiceDependencies
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	handlerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := handlerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", HandlerName, err)
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("invalid configuration for %s: settings provider is required", HandlerName)
	}
	if opts.Deps.CRM == nil {
		return nil, fmt.Errorf("invalid configuration for %s: crm client is required", HandlerName)
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

	deps := opts.Deps
	deps.Logger = loggerInstance

	return &Handler{
		config:   handlerConfig,
		logger:   loggerInstance,
		settings: opts.Settings,
		schema:   schema,
		service:  NewService(deps, handlerConfig),
		errors:   errors.NewErrorHandler(loggerInstance),
	}, nil
}

// Serve handles POST /graphwise/v1/update-categories.
func (h *Handler) Serve(ctx context.Context, req relay.Request) relay.Response {
	done := metrics.Track(HandlerName)

	output, err := h.Process(ctx, req.Body)
	if err != nil {
		stdErr := errors.Normalize(err)
		done(string(stdErr.Code))
		return h.errors.Respond(stdErr, nil)
	}

	done("")
	return relay.OK(output)
}

// Process validates a raw JSON body and runs the flush against the current
// settings. The legacy AJAX action reuses it.
func (h *Handler) Process(ctx context.Context, body []byte) (*Output, error) {
	if !h.config.Enabled {
		return nil, errors.NewEndpointDisabledError(HandlerName)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	input, err := h.ParseInput(body)
	if err != nil {
		return nil, err
	}
	return h.service.Execute(ctx, h.settings.Current(), input)
}

// ParseInput checks the body against the schema and decodes it.
func (h *Handler) ParseInput(body []byte) (*Input, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.NewValidationError("request body is empty")
	}

	result := h.schema.ValidateBytes(body)
	if !result.Valid {
		for _, e := range result.Errors {
			if e.Code == "INVALID_JSON" {
				return nil, errors.NewInvalidPayloadError(fmt.Errorf("%s", e.Message))
			}
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

func (h *Handler) GetConfig() *Config {
	return h.config
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()

	if appConfig != nil {
		handlerCfg := config.GetHandlerConfig(appConfig, HandlerName)
		cfg.Enabled = handlerCfg.Enabled
		if handlerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(handlerCfg.Timeout)
		}
		if prefix := appConfig.Properties.InterestPrefix; prefix != "" {
			cfg.InterestPrefix = prefix
		}
		if appConfig.Tally.MaxCategories > 0 {
			cfg.MaxCategories = appConfig.Tally.MaxCategories
		}
	}

	return cfg
}

var _ relay.Endpoint = (*Handler)(nil)
