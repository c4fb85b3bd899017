package service

import (
	"github.com/goliatone/go-syncconsole/internal/catalog"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/timezones"
	"github.com/goliatone/go-syncconsole/pkg/schema"
	"github.com/goliatone/go-syncconsole/pkg/widgets"
)

// Top level keys of the connection form. The connector configuration is
// nested under ConfigKey so its paths stay unique next to the name.
const (
	NameKey   = "name"
	ConfigKey = "config"
)

func order(n int) *int { return &n }

func number(n float64) *float64 { return &n }

// ConnectionSchema wraps a connector's configuration schema with the record
// name.
func ConnectionSchema(conn catalog.Connector) (*schema.Schema, schema.UISchema) {
	config := *conn.Schema
	if config.Title == "" {
		config.Title = "Configuration"
	}
	config.Order = order(1)
	s := &schema.Schema{
		Type:     schema.TypeObject,
		Required: []string{NameKey, ConfigKey},
		Properties: map[string]*schema.Schema{
			NameKey: {
				Type:        schema.TypeString,
				Title:       "Name",
				Placeholder: "Production " + conn.Label(),
				Order:       order(0),
			},
			ConfigKey: &config,
		},
	}
	ui := schema.UISchema{}
	if conn.UI != nil {
		ui[ConfigKey] = map[string]any(conn.UI)
	}
	return s, ui
}

// ConnectionData is the form data for c.
func ConnectionData(c domain.Connection) map[string]any {
	config := schema.CloneData(c.Config)
	return map[string]any{NameKey: c.Name, ConfigKey: config}
}

// ConnectionFromData splits connection form data into the name and the
// configuration.
func ConnectionFromData(data map[string]any) (string, map[string]any) {
	name, _ := data[NameKey].(string)
	config, _ := data[ConfigKey].(map[string]any)
	if config == nil {
		config = map[string]any{}
	}
	return name, schema.CloneData(config)
}

// ConnectionFormErrors maps a ValidationError onto ConnectionSchema paths.
func ConnectionFormErrors(verr *ValidationError) map[string][]string {
	out := make(map[string][]string)
	for path, messages := range verr.Fields {
		out[ConfigKey+"."+path] = append(out[ConfigKey+"."+path], messages...)
	}
	for key, message := range verr.Record {
		out[key] = append(out[key], message)
	}
	return out
}

// JobSchema describes the job form. Source and destination are choices
// over the stored records.
func JobSchema(sources []domain.Source, destinations []domain.Destination) (*schema.Schema, schema.UISchema) {
	sourceIDs, sourceNames := choices(len(sources), func(i int) (string, string) { return sources[i].ID, sources[i].Name })
	destIDs, destNames := choices(len(destinations), func(i int) (string, string) { return destinations[i].ID, destinations[i].Name })
	var zones []any
	for _, zone := range timezones.Zones() {
		zones = append(zones, zone)
	}

	s := &schema.Schema{
		Type:     schema.TypeObject,
		Required: []string{"name", "source_id", "destination_id"},
		Properties: map[string]*schema.Schema{
			"name": {Type: schema.TypeString, Title: "Name", Order: order(0)},
			"source_id": {
				Type: schema.TypeString, Title: "Source", Order: order(1),
				Enum: sourceIDs, EnumNames: sourceNames,
			},
			"destination_id": {
				Type: schema.TypeString, Title: "Destination", Order: order(2),
				Enum: destIDs, EnumNames: destNames,
			},
			"schedule": {
				Type: schema.TypeString, Title: "Schedule", Order: order(3),
				Description: "Cron expression such as <code>0 2 * * *</code> or <code>@hourly</code>. Leave empty for manual runs.",
				Placeholder: "0 2 * * *",
			},
			"timezone": {
				Type: schema.TypeString, Title: "Timezone", Order: order(4),
				Enum: zones, Default: timezones.Default,
			},
			"enabled": {Type: schema.TypeBoolean, Title: "Enabled", Default: true, Order: order(5)},
			"streams": {
				Type: schema.TypeArray, Title: "Streams", Order: order(6),
				Items: &schema.Schema{
					Type:     schema.TypeObject,
					Title:    "Stream",
					Required: []string{"name"},
					Properties: map[string]*schema.Schema{
						"name":      {Type: schema.TypeString, Title: "Name", Order: order(0)},
						"namespace": {Type: schema.TypeString, Title: "Namespace", Order: order(1)},
						"sync_mode": {
							Type: schema.TypeString, Title: "Sync mode", Order: order(2),
							Enum:      []any{domain.SyncFullRefresh, domain.SyncIncremental},
							EnumNames: []string{"Full refresh", "Incremental"},
							Default:   domain.SyncFullRefresh,
						},
						"cursor_field": {Type: schema.TypeString, Title: "Cursor field", Order: order(3)},
					},
				},
			},
		},
	}
	ui := schema.UISchema{
		"timezone": map[string]any{schema.UIVisibleIf: "schedule"},
		"streams": map[string]any{
			schema.UIAddButtonText: "Add stream",
			"items": map[string]any{
				schema.UIGrid: "grid grid-cols-4 gap-2",
			},
		},
	}
	return s, ui
}

func choices(n int, at func(int) (string, string)) ([]any, []string) {
	ids := make([]any, 0, n)
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, name := at(i)
		ids = append(ids, id)
		names = append(names, name)
	}
	return ids, names
}

// JobData is the form data for job.
func JobData(job domain.Job) map[string]any {
	streams := make([]any, 0, len(job.Streams))
	for _, stream := range job.Streams {
		row := map[string]any{"name": stream.Name}
		if stream.Namespace != "" {
			row["namespace"] = stream.Namespace
		}
		if stream.SyncMode != "" {
			row["sync_mode"] = stream.SyncMode
		}
		if stream.CursorField != "" {
			row["cursor_field"] = stream.CursorField
		}
		streams = append(streams, row)
	}
	return map[string]any{
		"name":           job.Name,
		"source_id":      job.SourceID,
		"destination_id": job.DestinationID,
		"schedule":       job.Schedule,
		"timezone":       job.Timezone,
		"enabled":        job.Enabled,
		"streams":        streams,
	}
}

// JobFromData builds a job from form data. Every listed stream is selected.
func JobFromData(data map[string]any) domain.Job {
	str := func(m map[string]any, key string) string {
		value, _ := m[key].(string)
		return value
	}
	job := domain.Job{
		Name:          str(data, "name"),
		SourceID:      str(data, "source_id"),
		DestinationID: str(data, "destination_id"),
		Schedule:      str(data, "schedule"),
		Timezone:      str(data, "timezone"),
	}
	job.Enabled, _ = data["enabled"].(bool)
	rows, _ := data["streams"].([]any)
	for _, raw := range rows {
		row, _ := raw.(map[string]any)
		job.Streams = append(job.Streams, domain.Stream{
			Name:        str(row, "name"),
			Namespace:   str(row, "namespace"),
			SyncMode:    str(row, "sync_mode"),
			CursorField: str(row, "cursor_field"),
			Selected:    true,
		})
	}
	return job
}

// JobSettingsSchema describes the per-job settings page.
func JobSettingsSchema() *schema.Schema {
	return &schema.Schema{
		Type:     schema.TypeObject,
		Required: []string{"retries", "timeout_minutes", "normalization"},
		Properties: map[string]*schema.Schema{
			"retries": {
				Type: schema.TypeInteger, Title: "Retries", Order: order(0),
				Default: float64(3), Minimum: number(0), Maximum: number(10),
			},
			"timeout_minutes": {
				Type: schema.TypeInteger, Title: "Timeout (minutes)", Order: order(1),
				Default: float64(60), Minimum: number(1),
			},
			"normalization": {
				Type: schema.TypeString, Title: "Normalization", Order: order(2),
				Enum:      []any{"raw", "basic"},
				EnumNames: []string{"Raw JSON", "Basic normalization"},
				Default:   "raw",
			},
			"notify_on_failure": {Type: schema.TypeBoolean, Title: "Notify on failure", Default: true, Order: order(3)},
			"webhook": {
				Type: schema.TypeObject, Title: "Failure webhook", Order: order(4),
				Properties: map[string]*schema.Schema{
					"url":    {Type: schema.TypeString, Title: "URL", Format: "uri", Order: order(0)},
					"secret": {Type: schema.TypeString, Title: "Signing secret", Format: "password", Order: order(1)},
				},
			},
		},
	}
}

// JobSettingsData is the settings form data for job: defaults filled in and
// secrets masked.
func JobSettingsData(job domain.Job) map[string]any {
	s := JobSettingsSchema()
	return widgets.Redact(s, nil, mergeDefaults(s.Defaults(), job.Settings))
}

// EditData is the connection form data for c with secrets masked.
func EditData(conn catalog.Connector, c domain.Connection) map[string]any {
	data := ConnectionData(c)
	data[ConfigKey] = widgets.Redact(conn.Schema, conn.UI, c.Config)
	return data
}
