// Package legacyajax serves the WordPress admin-ajax.php actions older pages
// still post to. Each action delegates to the JSON endpoint it mirrors and
// wraps the result in the WordPress {success, data} envelope.
package legacyajax

import (
	"context"
	"encoding/json"
	"fmt"

	"graphwise-relay/internal/common/config"
	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/metrics"
	"graphwise-relay/internal/relay"
	getcontact "graphwise-relay/internal/relay/get-contact"
	updatecategories "graphwise-relay/internal/relay/update-categories"
)

const (
	HandlerName = "legacy-ajax"

	ActionTrackCategory = "graphwise_track_category"
	ActionGetContact    = "graphwise_get_contact"
)

// InterestUpdater flushes an interest tally body.
type InterestUpdater interface {
	Process(ctx context.Context, body []byte) (*updatecategories.Output, error)
}

// ContactLookup fetches contact details by email.
type ContactLookup interface {
	Lookup(ctx context.Context, email string) (*getcontact.Output, error)
}

// Envelope is the admin-ajax response shape.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type FailureData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type Handler struct {
	enabled   bool
	logger    logger.Logger
	interests InterestUpdater
	contacts  ContactLookup
	errors    *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig *config.Config
	Interests InterestUpdater
	Contacts  ContactLookup
	Logger    logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Interests == nil || opts.Contacts == nil {
		return nil, fmt.Errorf("invalid configuration for %s: both delegate endpoints are required", HandlerName)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.With(map[string]interface{}{"handler": HandlerName})

	return &Handler{
		enabled:   config.IsHandlerEnabled(opts.AppConfig, HandlerName),
		logger:    loggerInstance,
		interests: opts.Interests,
		contacts:  opts.Contacts,
		errors:    errors.NewErrorHandler(loggerInstance),
	}, nil
}

// Serve handles POST /wp-admin/admin-ajax.php.
func (h *Handler) Serve(ctx context.Context, req relay.Request) relay.Response {
	done := metrics.Track(HandlerName)
	action := req.Value("action")

	if !h.enabled {
		return h.fail(done, action, errors.NewEndpointDisabledError(HandlerName))
	}

	var (
		data interface{}
		err  error
	)
	switch action {
	case ActionTrackCategory:
		data, err = h.trackCategory(ctx, req)
	case ActionGetContact:
		data, err = h.contacts.Lookup(ctx, req.Value("email"))
	default:
		err = errors.NewUnknownActionError(action)
	}
	if err != nil {
		return h.fail(done, action, err)
	}

	done("")
	return relay.OK(Envelope{Success: true, Data: data})
}

// trackCategory rebuilds the JSON body the update-categories endpoint takes
// from the form fields. categories arrives as a JSON object string.
func (h *Handler) trackCategory(ctx context.Context, req relay.Request) (*updatecategories.Output, error) {
	doc := map[string]interface{}{"email": req.Value("email")}
	if raw := req.Value("categories"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return nil, errors.NewInvalidPayloadError(fmt.Errorf("categories is not valid JSON"))
		}
		doc["categories"] = json.RawMessage(raw)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.NewInvalidPayloadError(err)
	}
	return h.interests.Process(ctx, body)
}

func (h *Handler) fail(done func(string), action string, err error) relay.Response {
	stdErr := h.errors.Report(err, map[string]interface{}{"action": action})
	done(string(stdErr.Code))

	message := stdErr.Message
	if stdErr.Code == errors.ErrCodeValidationFailed && stdErr.Details != "" {
		message = stdErr.Details
	}
	return relay.JSON(stdErr.Status(), Envelope{
		Success: false,
		Data:    FailureData{Message: message, Code: string(stdErr.Code)},
	})
}

var _ relay.Endpoint = (*Handler)(nil)
