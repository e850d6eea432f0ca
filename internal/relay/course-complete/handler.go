package coursecomplete

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

const HandlerName = "course-complete"

type Handler struct {
	config   *Config
	logger   logger.Logger
	settings settings.Provider
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
		service:  NewService(deps, handlerConfig),
		errors:   errors.NewErrorHandler(loggerInstance),
	}, nil
}

// Serve handles POST /graphwise/v1/course-complete.
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

	output, err := h.Execute(ctx, h.settings.Current(), input)
	if err != nil {
		return h.fail(done, err, map[string]interface{}{"email": input.Email})
	}

	done("")
	return relay.OK(output)
}

// Execute runs the completion flow against one settings snapshot.
func (h *Handler) Execute(ctx context.Context, snap settings.Snapshot, input *Input) (*Output, error) {
	return h.service.Execute(ctx, snap, input)
}

func (h *Handler) fail(done func(string), err error, fields ...map[string]interface{}) relay.Response {
	stdErr := errors.Normalize(err)
	done(string(stdErr.Code))

	logFields := map[string]interface{}{}
	for _, f := range fields {
		for k, v := range f {
			logFields[k] = v
		}
	}
	return h.errors.Respond(stdErr, logFields)
}

func (h *Handler) parseInput(body []byte) (*Input, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.NewValidationError("request body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var variables map[string]interface{}
	if err := decoder.Decode(&variables); err != nil {
		return nil, errors.NewInvalidPayloadError(err)
	}
	if variables == nil {
		return nil, errors.NewValidationError("request body must be a JSON object")
	}

	for alias, field := range fieldAliases {
		if _, ok := variables[field]; ok {
			continue
		}
		if v, ok := variables[alias]; ok {
			variables[field] = v
		}
		delete(variables, alias)
	}
	for _, field := range []string{"email", "course_name", "completed_at"} {
		switch v := variables[field].(type) {
		case json.Number:
			variables[field] = v.String()
		case string:
			variables[field] = strings.TrimSpace(v)
		}
	}

	validationResult := validation.ValidateInput(variables, GetInputSchema())
	if !validationResult.Valid {
		return nil, errors.NewValidationError(fmt.Sprintf("Validation errors: %v", validationResult.GetErrorMessages()))
	}

	input := &Input{
		Email:      variables["email"].(string),
		CourseName: variables["course_name"].(string),
	}
	if completedAt, ok := variables["completed_at"].(string); ok {
		input.CompletedAt = completedAt
	}

	if !validation.ValidateEmail(input.Email) {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid email address: %q", input.Email))
	}

	return input, nil
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
		if policy := appConfig.Relay.NormalizedMissPolicy(); policy != "" {
			cfg.MissPolicy = policy
		}
		cfg.CertificateEnabled = appConfig.Certificate.Enabled && appConfig.Certificate.URL != ""
	}

	return cfg
}

var _ relay.Endpoint = (*Handler)(nil)
