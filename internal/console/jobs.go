package console

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-syncconsole/internal/console/response"
	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
	"github.com/goliatone/go-syncconsole/internal/service"
	"github.com/goliatone/go-syncconsole/internal/session"
	"github.com/goliatone/go-syncconsole/internal/timezones"
	"github.com/goliatone/go-syncconsole/pkg/adapter"
)

const timeLayout = "2006-01-02 15:04 MST"

func (c *Console) listJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobs, err := c.svc.Jobs.List(ctx)
	if err != nil {
		c.fail(r, "Loading jobs", err)
	}
	names := c.connectionNames(r)

	rows := make([]map[string]any, 0, len(jobs))
	for _, job := range jobs {
		row := map[string]any{
			"id":          job.ID,
			"name":        job.Name,
			"source":      nameOr(names, job.SourceID),
			"destination": nameOr(names, job.DestinationID),
			"schedule":    job.Schedule,
			"enabled":     job.Enabled,
			"status":      job.LastStatus,
			"streams":     strconv.Itoa(len(job.SelectedStreams())),
		}
		if job.Schedule == "" {
			row["schedule"] = "Manual"
		} else if job.Timezone != "" {
			row["timezone"] = job.Timezone
		}
		if next, ok := c.svc.Jobs.NextRun(job); ok {
			row["next_run"] = next.Format(timeLayout)
		}
		rows = append(rows, row)
	}
	c.page(w, r, http.StatusOK, "jobs", map[string]any{
		"section": "jobs",
		"jobs":    rows,
	})
}

// connectionNames maps source and destination ids to names for display.
func (c *Console) connectionNames(r *http.Request) map[string]string {
	names := map[string]string{}
	sources, err := c.svc.Sources.List(r.Context())
	if err != nil {
		c.fail(r, "Loading sources", err)
	}
	for _, s := range sources {
		names[s.ID] = s.Name
	}
	destinations, err := c.svc.Destinations.List(r.Context())
	if err != nil {
		c.fail(r, "Loading destinations", err)
	}
	for _, d := range destinations {
		names[d.ID] = d.Name
	}
	return names
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}

func (c *Console) jobView(ad *adapter.Adapter, job *domain.Job) formView {
	v := formView{
		Section:     "jobs",
		Heading:     "New job",
		Subtitle:    "Replicate streams from a source to a destination on a schedule.",
		Adapter:     ad,
		Action:      "/jobs/new",
		SubmitLabel: "Create job",
		Links:       []link{{Label: "All jobs", Href: "/jobs"}},
	}
	if job == nil {
		return v
	}
	base := "/jobs/" + job.ID
	v.Heading = job.Name
	v.Subtitle = ""
	v.Action = base + "/edit"
	v.SubmitLabel = "Save job"
	v.Links = append(v.Links,
		link{Label: "History", Href: base + "/history"},
		link{Label: "Settings", Href: base + "/settings"},
	)
	toggle := "Pause"
	if !job.Enabled {
		toggle = "Resume"
	}
	v.Actions = []action{
		{Label: toggle, Href: base + "/toggle"},
		{Label: "Delete", Href: base + "/delete", Confirm: fmt.Sprintf("Delete job %s?", job.Name), Danger: true},
	}
	return v
}

func (c *Console) newJob(w http.ResponseWriter, r *http.Request) {
	ad, err := c.jobAdapter(r.Context())
	if err != nil {
		c.fail(r, "Opening the job form", err)
		redirect(w, r, "/jobs")
		return
	}
	s := ad.Schema()
	if len(s.Properties["source_id"].Enum) == 0 || len(s.Properties["destination_id"].Enum) == 0 {
		c.flash(r, session.FlashInfo, "A job needs at least one source and one destination.")
	}
	v := c.jobView(ad, nil)
	v.Data = s.Defaults()
	c.renderForm(w, r, http.StatusOK, v)
}

func (c *Console) createJob(w http.ResponseWriter, r *http.Request) {
	ad, err := c.jobAdapter(r.Context())
	if err != nil {
		c.fail(r, "Creating the job", err)
		redirect(w, r, "/jobs")
		return
	}
	v := c.jobView(ad, nil)
	data, rerender, err := c.decodeSubmission(r, ad)
	if err != nil {
		c.submitFailed(w, r, "Reading the job form", err, v)
		return
	}
	v.Data = data
	if rerender {
		c.renderForm(w, r, http.StatusOK, v)
		return
	}
	job, err := c.svc.Jobs.Create(r.Context(), service.JobFromData(data))
	if err != nil {
		c.submitFailed(w, r, "Creating the job", err, v)
		return
	}
	c.flash(r, session.FlashSuccess, fmt.Sprintf("Job %s created", job.Name))
	redirect(w, r, "/jobs")
}

func (c *Console) loadJob(w http.ResponseWriter, r *http.Request) (domain.Job, bool) {
	job, err := c.svc.Jobs.Get(r.Context(), r.PathValue("jobId"))
	if err != nil {
		c.fail(r, "Loading the job", err)
		redirect(w, r, "/jobs")
		return domain.Job{}, false
	}
	return job, true
}

func (c *Console) editJob(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	ad, err := c.jobAdapter(r.Context())
	if err != nil {
		c.fail(r, "Opening the job form", err)
		redirect(w, r, "/jobs")
		return
	}
	v := c.jobView(ad, &job)
	v.Data = service.JobData(job)
	c.renderForm(w, r, http.StatusOK, v)
}

func (c *Console) updateJob(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	ad, err := c.jobAdapter(r.Context())
	if err != nil {
		c.fail(r, "Saving the job", err)
		redirect(w, r, "/jobs")
		return
	}
	v := c.jobView(ad, &job)
	data, rerender, err := c.decodeSubmission(r, ad)
	if err != nil {
		c.submitFailed(w, r, "Reading the job form", err, v)
		return
	}
	v.Data = data
	if rerender {
		c.renderForm(w, r, http.StatusOK, v)
		return
	}
	next := service.JobFromData(data)
	next.ID = job.ID
	saved, err := c.svc.Jobs.Update(r.Context(), next)
	if err != nil {
		c.submitFailed(w, r, "Saving the job", err, v)
		return
	}
	c.flash(r, session.FlashSuccess, fmt.Sprintf("Job %s saved", saved.Name))
	redirect(w, r, "/jobs")
}

func (c *Console) deleteJob(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	if err := c.svc.Jobs.Delete(r.Context(), job.ID); err != nil {
		c.fail(r, "Deleting the job", err)
		redirect(w, r, "/jobs/"+job.ID+"/edit")
		return
	}
	c.flash(r, session.FlashSuccess, fmt.Sprintf("Job %s deleted", job.Name))
	redirect(w, r, "/jobs")
}

func (c *Console) toggleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	updated, err := c.svc.Jobs.SetEnabled(r.Context(), job.ID, !job.Enabled)
	if err != nil {
		c.fail(r, "Changing the job schedule", err)
		redirect(w, r, "/jobs")
		return
	}
	state := "paused"
	if updated.Enabled {
		state = "resumed"
	}
	c.flash(r, session.FlashSuccess, fmt.Sprintf("Job %s %s", updated.Name, state))
	redirect(w, r, "/jobs")
}

func (c *Console) jobHistory(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	runs, err := c.svc.Jobs.History(r.Context(), job.ID)
	if err != nil {
		c.fail(r, "Loading the job history", err)
	}
	rows := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		row := map[string]any{
			"id":      run.ID,
			"status":  run.Status,
			"started": run.StartedAt.Format(timeLayout),
			"records": strconv.FormatInt(run.Records, 10),
			"bytes":   strconv.FormatInt(run.Bytes, 10),
			"error":   run.Error,
			"logs":    fmt.Sprintf("/jobs/%s/history/%s/logs", job.ID, run.ID),
		}
		if run.FinishedAt != nil {
			row["duration"] = run.Duration().String()
		}
		rows = append(rows, row)
	}
	c.page(w, r, http.StatusOK, "history", map[string]any{
		"section": "jobs",
		"job":     map[string]any{"id": job.ID, "name": job.Name},
		"runs":    rows,
	})
}

func (c *Console) jobLogs(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	historyID := r.PathValue("historyId")
	entries, err := c.svc.Jobs.Logs(r.Context(), job.ID, historyID)
	if errors.Is(err, repository.ErrNotFound) {
		c.fail(r, "Loading the run log", err)
		redirect(w, r, "/jobs/"+job.ID+"/history")
		return
	}
	if err != nil {
		c.fail(r, "Loading the run log", err)
	}
	lines := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, map[string]any{
			"time":    entry.Time.Format("15:04:05"),
			"level":   entry.Level,
			"message": entry.Message,
		})
	}
	c.page(w, r, http.StatusOK, "logs", map[string]any{
		"section": "jobs",
		"job":     map[string]any{"id": job.ID, "name": job.Name},
		"run":     historyID,
		"lines":   lines,
	})
}

// searchTimezones answers zone lookups as select options.
func (c *Console) searchTimezones(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	matches := timezones.Search(timezones.Zones(), r.URL.Query().Get("q"), limit)
	options := make([]map[string]string, 0, len(matches))
	for _, zone := range matches {
		options = append(options, map[string]string{"value": zone, "label": strings.ReplaceAll(zone, "_", " ")})
	}
	response.JSON(w, http.StatusOK, options)
}

func (c *Console) settingsView(job domain.Job) formView {
	base := "/jobs/" + job.ID
	return formView{
		Section:     "jobs",
		Heading:     job.Name + " settings",
		Subtitle:    "Retries, timeouts and failure notifications for this job.",
		Adapter:     c.settingsAdapter(),
		Action:      base + "/settings",
		SubmitLabel: "Save settings",
		Links: []link{
			{Label: "Edit job", Href: base + "/edit"},
			{Label: "History", Href: base + "/history"},
		},
	}
}

func (c *Console) jobSettings(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	v := c.settingsView(job)
	v.Data = service.JobSettingsData(job)
	c.renderForm(w, r, http.StatusOK, v)
}

func (c *Console) saveJobSettings(w http.ResponseWriter, r *http.Request) {
	job, ok := c.loadJob(w, r)
	if !ok {
		return
	}
	v := c.settingsView(job)
	data, _, err := c.decodeSubmission(r, v.Adapter)
	if err != nil {
		c.submitFailed(w, r, "Reading the settings form", err, v)
		return
	}
	v.Data = data
	if _, err := c.svc.Jobs.UpdateSettings(r.Context(), job.ID, data); err != nil {
		c.submitFailed(w, r, "Saving the job settings", err, v)
		return
	}
	c.flash(r, session.FlashSuccess, fmt.Sprintf("Settings for %s saved", job.Name))
	redirect(w, r, "/jobs/"+job.ID+"/settings")
}
