package getcontact

import (
	"context"
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

const HandlerName = "get-contact"

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

// Serve handles GET /graphwise/v1/contact?email=.
func (h *Handler) Serve(ctx context.Context, req relay.Request) relay.Response {
	done := metrics.Track(HandlerName)

	output, err := h.Lookup(ctx, req.Value("email"))
	if err != nil {
		stdErr := errors.Normalize(err)
		done(string(stdErr.Code))
		return h.errors.Respond(stdErr, nil)
	}

	done("")
	return relay.OK(output)
}

// Lookup validates email and fetches the contact against the current
// settings. The thank-you page and the legacy AJAX action share it.
func (h *Handler) Lookup(ctx context.Context, email string) (*Output, error) {
	if !h.config.Enabled {
		return nil, errors.NewEndpointDisabledError(HandlerName)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.NewValidationError("Missing email")
	}
	if !validation.ValidateEmail(email) {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid email address: %q", email))
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	return h.service.Execute(ctx, h.settings.Current(), email)
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
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
		cfg.CacheTTL = 0
		if appConfig.ContactCache.Enabled && appConfig.ContactCache.TTLSeconds > 0 {
			cfg.CacheTTL = config.GetDuration(appConfig.ContactCache.TTLSeconds * 1000)
		}
	}

	return cfg
}

var _ relay.Endpoint = (*Handler)(nil)
