package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/goliatone/go-syncconsole/internal/console/response"
	"github.com/goliatone/go-syncconsole/internal/repository"
	"github.com/goliatone/go-syncconsole/internal/service"
	"github.com/goliatone/go-syncconsole/pkg/adapter"
	"github.com/goliatone/go-syncconsole/pkg/form"
	"github.com/goliatone/go-syncconsole/pkg/validation"
	"github.com/goliatone/go-syncconsole/pkg/visibility"
)

const (
	jobFormID      = "job"
	settingsFormID = "job-settings"

	maxChangeBody = 1 << 20
)

var errUnknownForm = errors.New("console: unknown form")

type link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// action is a button posting to Href, optionally behind a confirmation.
type action struct {
	Label   string `json:"label"`
	Href    string `json:"href"`
	Confirm string `json:"confirm,omitempty"`
	Danger  bool   `json:"danger,omitempty"`
}

// formView is one page around a rendered form.
type formView struct {
	Section     string
	Heading     string
	Subtitle    string
	Adapter     *adapter.Adapter
	Action      string
	SubmitLabel string
	Data        map[string]any
	Errors      map[string][]string
	Links       []link
	Actions     []action
}

func (c *Console) renderForm(w http.ResponseWriter, r *http.Request, status int, v formView) {
	html, err := v.Adapter.Render(r.Context(), form.Form{
		Action:      v.Action,
		SubmitLabel: v.SubmitLabel,
		Data:        v.Data,
		Errors:      v.Errors,
	})
	if err != nil {
		loggerFrom(r.Context(), c.logger).Error("render form", slog.String("form", v.Adapter.ID()), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	c.page(w, r, status, "form", map[string]any{
		"section":    v.Section,
		"heading":    v.Heading,
		"subtitle":   v.Subtitle,
		"form":       string(html),
		"form_id":    v.Adapter.ID(),
		"change_url": "/forms/" + v.Adapter.ID() + "/change",
		"summary":    validation.Summary(v.Errors),
		"links":      v.Links,
		"actions":    v.Actions,
	})
}

// decodeSubmission reads a posted form. rerender reports an array add or
// remove, which changes the form without saving it.
func (c *Console) decodeSubmission(r *http.Request, ad *adapter.Adapter) (data map[string]any, rerender bool, err error) {
	if err := r.ParseForm(); err != nil {
		return nil, false, err
	}
	data, err = c.forms.Decode(ad.Schema(), ad.UISchema(), r.PostForm)
	if err != nil {
		return nil, false, err
	}
	return c.forms.ApplyArrayAction(ad.Schema(), data, r.PostForm)
}

// submitFailed re-renders v after a failed save. Validation problems are
// shown inline; anything else only as a notification.
func (c *Console) submitFailed(w http.ResponseWriter, r *http.Request, operation string, err error, v formView) {
	c.fail(r, operation, err)
	var verr *service.ValidationError
	if errors.As(err, &verr) && v.Errors == nil {
		v.Errors = verr.FormErrors()
	}
	c.renderForm(w, r, statusFor(err), v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInUse):
		return http.StatusConflict
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (c *Console) jobAdapter(ctx context.Context) (*adapter.Adapter, error) {
	sources, err := c.svc.Sources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}
	destinations, err := c.svc.Destinations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load destinations: %w", err)
	}
	s, ui := service.JobSchema(sources, destinations)
	return adapter.New(c.forms, s, adapter.WithID(jobFormID), adapter.WithUISchema(ui)), nil
}

func (c *Console) settingsAdapter() *adapter.Adapter {
	return adapter.New(c.forms, service.JobSettingsSchema(), adapter.WithID(settingsFormID))
}

// adapterFor resolves a form id to the adapter that owns it.
func (c *Console) adapterFor(ctx context.Context, id string) (*adapter.Adapter, error) {
	switch {
	case id == jobFormID:
		return c.jobAdapter(ctx)
	case id == settingsFormID:
		return c.settingsAdapter(), nil
	}
	for _, owner := range []interface {
		adapterForID(string) (*adapter.Adapter, error)
	}{c.sources, c.destinations} {
		ad, err := owner.adapterForID(id)
		if !errors.Is(err, errUnknownForm) {
			return ad, err
		}
	}
	return nil, fmt.Errorf("%w: %q", errUnknownForm, id)
}

// formChange applies one field edit and answers with the new data, the
// live errors and the conditional fields that are now hidden. Bodies are
// either a JSON change event or the url encoded form.
func (c *Console) formChange(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("formId")
	ad, err := c.adapterFor(r.Context(), id)
	if errors.Is(err, errUnknownForm) {
		response.Write(w, response.New(http.StatusNotFound, "unknown form",
			response.WithDetail(fmt.Sprintf("no form is registered as %q", id)),
			response.WithInstance(r.URL.Path),
		))
		return
	}
	if err != nil {
		response.Write(w, response.New(http.StatusBadGateway, "form unavailable",
			response.WithDetail(err.Error()),
			response.WithInstance(r.URL.Path),
		))
		return
	}

	ev, err := c.readEvent(w, r, ad)
	if err != nil {
		response.Write(w, response.New(http.StatusBadRequest, "invalid change",
			response.WithDetail(err.Error()),
			response.WithInstance(r.URL.Path),
		))
		return
	}
	change, applied, err := ad.Change(r.Context(), ev, nil)
	if err != nil {
		response.Write(w, response.New(http.StatusBadRequest, "invalid change",
			response.WithDetail(err.Error()),
			response.WithInstance(r.URL.Path),
		))
		return
	}
	if !applied {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	errs := change.Errors
	if errs == nil {
		errs = map[string][]string{}
	}
	hidden := visibility.Hidden(ad.Schema(), ad.UISchema(), change.Data)
	if hidden == nil {
		hidden = []string{}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"formData": change.Data,
		"errors":   errs,
		"summary":  validation.Summary(errs),
		"hidden":   hidden,
	})
}

func (c *Console) readEvent(w http.ResponseWriter, r *http.Request, ad *adapter.Adapter) (adapter.Event, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChangeBody)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.EqualFold(mediaType, "application/json") {
		var ev adapter.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			return adapter.Event{}, fmt.Errorf("decode change: %w", err)
		}
		return ev, nil
	}
	if err := r.ParseForm(); err != nil {
		return adapter.Event{}, err
	}
	data, err := c.forms.Decode(ad.Schema(), ad.UISchema(), r.PostForm)
	if err != nil {
		return adapter.Event{}, err
	}
	return adapter.Event{Payload: data}, nil
}
