package thankyou

import (
	"context"
	"fmt"
	"net/http"

	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/metrics"
	"graphwise-relay/internal/relay"
	getcontact "graphwise-relay/internal/relay/get-contact"
	"graphwise-relay/internal/settings"
)

const HandlerName = "thank-you"

// ContactLookup fetches the visitor shown on the page.
type ContactLookup interface {
	Lookup(ctx context.Context, email string) (*getcontact.Output, error)
}

type Handler struct {
	config   *Config
	logger   logger.Logger
	settings settings.Provider
	contacts ContactLookup
	errors   *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Settings     settings.Provider
	Contacts     ContactLookup
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
	if opts.Contacts == nil {
		return nil, fmt.Errorf("invalid configuration for %s: contact lookup is required", HandlerName)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"handler": HandlerName})

	return &Handler{
		config:   handlerConfig,
		logger:   loggerInstance,
		settings: opts.Settings,
		contacts: opts.Contacts,
		errors:   errors.NewErrorHandler(loggerInstance),
	}, nil
}

// Serve handles GET /graphwise/v1/pages/:slug?email= behind the session
// guard. Only the configured thank-you slug is served. Any lookup failure
// renders the fallback message.
func (h *Handler) Serve(ctx context.Context, req relay.Request) relay.Response {
	done := metrics.Track(HandlerName)

	if !h.config.Enabled {
		return h.fail(done, errors.NewEndpointDisabledError(HandlerName))
	}

	slug := req.Params["slug"]
	if slug == "" || slug != h.settings.Current().ThankYouSlug {
		return h.fail(done, errors.NewPageNotFoundError(slug))
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	data := PageData{}
	if email := req.Value("email"); email != "" {
		contact, err := h.contacts.Lookup(ctx, email)
		switch {
		case err == nil:
			data = PageData{Found: true, FirstName: contact.FirstName, LastName: contact.LastName, Email: contact.Email}
		case errors.IsCode(err, errors.ErrCodeContactNotFound), errors.IsCode(err, errors.ErrCodeValidationFailed):
		default:
			h.logger.Warn("Thank-you lookup failed, rendering fallback", map[string]interface{}{
				"errorCode": errors.CodeOf(err),
				"error":     err.Error(),
			})
		}
	}

	page, err := render(data)
	if err != nil {
		return h.fail(done, errors.NewInternalError(err))
	}

	done("")
	return relay.HTML(http.StatusOK, page)
}

func (h *Handler) fail(done func(string), err error) relay.Response {
	stdErr := errors.Normalize(err)
	done(string(stdErr.Code))
	return h.errors.Respond(stdErr, nil)
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
	}

	return cfg
}

var _ relay.Endpoint = (*Handler)(nil)
