package console

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-syncconsole/internal/catalog"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/service"
	"github.com/goliatone/go-syncconsole/internal/session"
	"github.com/goliatone/go-syncconsole/pkg/adapter"
)

// connectionPages serves the source or the destination pages. Both share
// one layout; only the service and the URL prefix differ.
type connectionPages[T service.ConnectionEntity[T]] struct {
	c       *Console
	svc     *service.Connections[T]
	base    string
	noun    string
	section string
	param   string
}

func newConnectionPages[T service.ConnectionEntity[T]](c *Console, svc *service.Connections[T], base, noun string) *connectionPages[T] {
	return &connectionPages[T]{
		c:       c,
		svc:     svc,
		base:    base,
		noun:    noun,
		section: strings.TrimPrefix(base, "/"),
	}
}

func (p *connectionPages[T]) register(mux *http.ServeMux, param string) {
	p.param = param
	item := p.base + "/{" + param + "}"
	mux.HandleFunc("GET "+p.base, p.list)
	mux.HandleFunc("GET "+p.base+"/new", p.new)
	mux.HandleFunc("POST "+p.base+"/new", p.create)
	mux.HandleFunc("GET "+item, p.show)
	mux.HandleFunc("POST "+item, p.update)
	mux.HandleFunc("GET "+item+"/jobs", p.jobs)
	mux.HandleFunc("POST "+item+"/test", p.test)
	mux.HandleFunc("POST "+item+"/delete", p.delete)
}

func (p *connectionPages[T]) title() string {
	return strings.ToUpper(p.noun[:1]) + p.noun[1:]
}

func (p *connectionPages[T]) formID(typ string) string {
	return p.noun + "-" + strings.ToLower(typ)
}

// adapter builds the form for one connector type.
func (p *connectionPages[T]) adapter(typ string) (*adapter.Adapter, catalog.Connector, error) {
	conn, err := p.svc.Connector(typ)
	if err != nil {
		return nil, catalog.Connector{}, err
	}
	s, ui := service.ConnectionSchema(conn)
	return adapter.New(p.c.forms, s, adapter.WithID(p.formID(conn.Type)), adapter.WithUISchema(ui)), conn, nil
}

func (p *connectionPages[T]) adapterForID(id string) (*adapter.Adapter, error) {
	typ, ok := strings.CutPrefix(id, p.noun+"-")
	if !ok || typ == "" {
		return nil, errUnknownForm
	}
	ad, _, err := p.adapter(typ)
	if errors.Is(err, catalog.ErrUnknownConnector) {
		return nil, fmt.Errorf("%w: %v", errUnknownForm, err)
	}
	return ad, err
}

func (p *connectionPages[T]) list(w http.ResponseWriter, r *http.Request) {
	items, err := p.svc.List(r.Context())
	if err != nil {
		p.c.fail(r, "Loading "+p.section, err)
	}
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		d := item.Details()
		rows = append(rows, map[string]any{
			"id":      d.ID,
			"name":    d.Name,
			"type":    p.connectorLabel(d.Type),
			"version": d.Version,
			"href":    p.base + "/" + d.ID,
			"created": d.CreatedAt.Format(timeLayout),
		})
	}
	p.c.page(w, r, http.StatusOK, "connections", map[string]any{
		"section": p.section,
		"heading": p.title() + "s",
		"noun":    p.noun,
		"new":     p.base + "/new",
		"items":   rows,
	})
}

func (p *connectionPages[T]) connectorLabel(typ string) string {
	if conn, err := p.svc.Connector(typ); err == nil {
		return conn.Label()
	}
	return typ
}

func (p *connectionPages[T]) newAction(typ string) string {
	return p.base + "/new?" + url.Values{"type": {typ}}.Encode()
}

func (p *connectionPages[T]) newView(ad *adapter.Adapter, conn catalog.Connector) formView {
	return formView{
		Section:     p.section,
		Heading:     "New " + conn.Label() + " " + p.noun,
		Subtitle:    conn.Description,
		Adapter:     ad,
		Action:      p.newAction(conn.Type),
		SubmitLabel: "Create " + p.noun,
		Links: []link{
			{Label: "Choose another type", Href: p.base + "/new"},
			{Label: "All " + p.section, Href: p.base},
		},
	}
}

// new lists the connector types, or shows the form once a type is chosen.
func (p *connectionPages[T]) new(w http.ResponseWriter, r *http.Request) {
	typ := strings.TrimSpace(r.URL.Query().Get("type"))
	if typ == "" {
		p.chooser(w, r, http.StatusOK)
		return
	}
	ad, conn, err := p.adapter(typ)
	if err != nil {
		p.c.fail(r, "Opening the "+p.noun+" form", err)
		p.chooser(w, r, http.StatusNotFound)
		return
	}
	v := p.newView(ad, conn)
	v.Data = ad.Schema().Defaults()
	p.c.renderForm(w, r, http.StatusOK, v)
}

func (p *connectionPages[T]) chooser(w http.ResponseWriter, r *http.Request, status int) {
	connectors := p.svc.Connectors()
	rows := make([]map[string]any, 0, len(connectors))
	for _, conn := range connectors {
		rows = append(rows, map[string]any{
			"type":        conn.Type,
			"label":       conn.Label(),
			"description": conn.Description,
			"version":     conn.Version,
			"icon":        conn.Icon,
			"href":        p.newAction(conn.Type),
		})
	}
	p.c.page(w, r, status, "chooser", map[string]any{
		"section":    p.section,
		"heading":    "New " + p.noun,
		"noun":       p.noun,
		"back":       p.base,
		"connectors": rows,
	})
}

func (p *connectionPages[T]) create(w http.ResponseWriter, r *http.Request) {
	ad, conn, err := p.adapter(r.URL.Query().Get("type"))
	if err != nil {
		p.c.fail(r, "Creating the "+p.noun, err)
		redirect(w, r, p.base+"/new")
		return
	}
	v := p.newView(ad, conn)
	data, rerender, err := p.c.decodeSubmission(r, ad)
	if err != nil {
		p.c.submitFailed(w, r, "Reading the "+p.noun+" form", err, v)
		return
	}
	v.Data = data
	if rerender {
		p.c.renderForm(w, r, http.StatusOK, v)
		return
	}
	name, config := service.ConnectionFromData(data)
	var zero T
	item := zero.WithDetails(domain.Connection{Name: name, Type: conn.Type, Config: config})
	stored, err := p.svc.Create(r.Context(), item)
	if err != nil {
		p.failed(w, r, "Creating the "+p.noun, err, v)
		return
	}
	p.c.flash(r, session.FlashSuccess, fmt.Sprintf("%s %s created", p.title(), stored.Details().Name))
	redirect(w, r, p.base+"/"+stored.Key())
}

// failed maps configuration errors onto the wrapped form before re-rendering.
func (p *connectionPages[T]) failed(w http.ResponseWriter, r *http.Request, operation string, err error, v formView) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		v.Errors = service.ConnectionFormErrors(verr)
	}
	p.c.submitFailed(w, r, operation, err, v)
}

func (p *connectionPages[T]) load(w http.ResponseWriter, r *http.Request) (T, bool) {
	item, err := p.svc.Get(r.Context(), r.PathValue(p.param))
	if err != nil {
		p.c.fail(r, "Loading the "+p.noun, err)
		redirect(w, r, p.base)
		var zero T
		return zero, false
	}
	return item, true
}

func (p *connectionPages[T]) editView(ad *adapter.Adapter, conn catalog.Connector, d domain.Connection) formView {
	item := p.base + "/" + d.ID
	subtitle := conn.Label()
	if d.Version != "" {
		subtitle += " " + d.Version
	}
	return formView{
		Section:     p.section,
		Heading:     d.Name,
		Subtitle:    subtitle,
		Adapter:     ad,
		Action:      item,
		SubmitLabel: "Save " + p.noun,
		Links: []link{
			{Label: "All " + p.section, Href: p.base},
			{Label: "Jobs using this " + p.noun, Href: item + "/jobs"},
		},
		Actions: []action{
			{Label: "Test connection", Href: item + "/test"},
			{Label: "Delete", Href: item + "/delete", Confirm: fmt.Sprintf("Delete %s %s?", p.noun, d.Name), Danger: true},
		},
	}
}

func (p *connectionPages[T]) show(w http.ResponseWriter, r *http.Request) {
	item, ok := p.load(w, r)
	if !ok {
		return
	}
	d := item.Details()
	ad, conn, err := p.adapter(d.Type)
	if err != nil {
		p.c.fail(r, "Opening the "+p.noun+" form", err)
		redirect(w, r, p.base)
		return
	}
	v := p.editView(ad, conn, d)
	v.Data = service.EditData(conn, d)
	p.c.renderForm(w, r, http.StatusOK, v)
}

func (p *connectionPages[T]) update(w http.ResponseWriter, r *http.Request) {
	item, ok := p.load(w, r)
	if !ok {
		return
	}
	d := item.Details()
	ad, conn, err := p.adapter(d.Type)
	if err != nil {
		p.c.fail(r, "Saving the "+p.noun, err)
		redirect(w, r, p.base)
		return
	}
	v := p.editView(ad, conn, d)
	data, rerender, err := p.c.decodeSubmission(r, ad)
	if err != nil {
		p.c.submitFailed(w, r, "Reading the "+p.noun+" form", err, v)
		return
	}
	v.Data = data
	if rerender {
		p.c.renderForm(w, r, http.StatusOK, v)
		return
	}
	name, config := service.ConnectionFromData(data)
	d.Name = name
	d.Config = config
	stored, err := p.svc.Update(r.Context(), item.WithDetails(d))
	if err != nil {
		p.failed(w, r, "Saving the "+p.noun, err, v)
		return
	}
	p.c.flash(r, session.FlashSuccess, fmt.Sprintf("%s %s saved", p.title(), stored.Details().Name))
	redirect(w, r, p.base+"/"+stored.Key())
}

func (p *connectionPages[T]) jobs(w http.ResponseWriter, r *http.Request) {
	item, ok := p.load(w, r)
	if !ok {
		return
	}
	d := item.Details()
	var (
		jobs []domain.Job
		err  error
	)
	if p.svc.Kind() == domain.KindSource {
		jobs, err = p.c.svc.Jobs.ForSource(r.Context(), d.ID)
	} else {
		jobs, err = p.c.svc.Jobs.ForDestination(r.Context(), d.ID)
	}
	if err != nil {
		p.c.fail(r, "Loading jobs", err)
	}
	rows := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, map[string]any{
			"name":    job.Name,
			"href":    "/jobs/" + job.ID + "/edit",
			"enabled": job.Enabled,
			"status":  job.LastStatus,
		})
	}
	p.c.page(w, r, http.StatusOK, "connection_jobs", map[string]any{
		"section": p.section,
		"heading": "Jobs using " + d.Name,
		"back":    p.base + "/" + d.ID,
		"jobs":    rows,
	})
}

func (p *connectionPages[T]) test(w http.ResponseWriter, r *http.Request) {
	item, ok := p.load(w, r)
	if !ok {
		return
	}
	d := item.Details()
	back := p.base + "/" + d.ID
	result, err := p.svc.Test(r.Context(), d.ID)
	switch {
	case err != nil:
		p.c.fail(r, "Testing the connection", err)
	case result.Success:
		p.c.flash(r, session.FlashSuccess, fmt.Sprintf("%s: %s", d.Name, result.Message))
	default:
		p.c.flash(r, session.FlashError, fmt.Sprintf("Connection test for %s failed: %s", d.Name, result.Message))
	}
	redirect(w, r, back)
}

func (p *connectionPages[T]) delete(w http.ResponseWriter, r *http.Request) {
	item, ok := p.load(w, r)
	if !ok {
		return
	}
	d := item.Details()
	if err := p.svc.Delete(r.Context(), d.ID); err != nil {
		p.c.fail(r, "Deleting the "+p.noun, err)
		redirect(w, r, p.base+"/"+d.ID)
		return
	}
	p.c.flash(r, session.FlashSuccess, fmt.Sprintf("%s %s deleted", p.title(), d.Name))
	redirect(w, r, p.base)
}
