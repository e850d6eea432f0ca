// Package settingsadmin exposes the runtime settings to operators: a masked
// read and a partial update that is persisted before it takes effect.
package settingsadmin

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"graphwise-relay/internal/common/errors"
	"graphwise-relay/internal/common/logger"
	"graphwise-relay/internal/common/metrics"
	"graphwise-relay/internal/relay"
	"graphwise-relay/internal/settings"
)

const HandlerName = "settings-admin"

// Updater is the settings source the endpoint reads and writes.
type Updater interface {
	Current() settings.Snapshot
	Update(ctx context.Context, changes map[string]string) (settings.Snapshot, error)
}

type Output struct {
	Settings map[string]string `json:"settings"`
	Changed  []string          `json:"changed,omitempty"`
}

type Handler struct {
	logger   logger.Logger
	settings Updater
	errors   *errors.ErrorHandler
}

func NewHandler(source Updater, log logger.Logger) (*Handler, error) {
	if source == nil {
		return nil, fmt.Errorf("invalid configuration for %s: settings source is required", HandlerName)
	}
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.With(map[string]interface{}{"handler": HandlerName})
	return &Handler{logger: log, settings: source, errors: errors.NewErrorHandler(log)}, nil
}

// Get handles GET /graphwise/v1/settings.
func (h *Handler) Get(ctx context.Context, req relay.Request) relay.Response {
	done := metrics.Track(HandlerName)
	done("")
	return relay.OK(Output{Settings: h.settings.Current().Masked()})
}

// Update handles PUT /graphwise/v1/settings with a flat object of
// setting name to string value.
func (h *Handler) Update(ctx context.Context, req relay.Request) relay.Response {
	done := metrics.Track(HandlerName)

	changes, err := parseChanges(req.Body)
	if err != nil {
		return h.fail(done, err)
	}

	next, err := h.settings.Update(ctx, changes)
	if err != nil {
		var unknown *settings.UnknownKeyError
		var storeErr *settings.StoreError
		switch {
		case stderrors.As(err, &unknown):
			err = errors.NewValidationError(unknown.Error())
		case stderrors.As(err, &storeErr):
			err = errors.NewSettingsStoreError(storeErr.Err)
		default:
			err = errors.NewValidationError(err.Error())
		}
		return h.fail(done, err)
	}

	changed := make([]string, 0, len(changes))
	for _, k := range settings.Keys() {
		if _, ok := changes[k]; ok {
			changed = append(changed, k)
		}
	}

	done("")
	return relay.OK(Output{Settings: next.Masked(), Changed: changed})
}

func (h *Handler) fail(done func(string), err error) relay.Response {
	stdErr := errors.Normalize(err)
	done(string(stdErr.Code))
	return h.errors.Respond(stdErr, nil)
}

func parseChanges(body []byte) (map[string]string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.NewValidationError("request body is empty")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.NewInvalidPayloadError(err)
	}
	if len(raw) == 0 {
		return nil, errors.NewValidationError("no settings to update")
	}

	changes := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, errors.NewValidationError(fmt.Sprintf("%s must be a string", k))
		}
		changes[k] = s
	}
	return changes, nil
}
