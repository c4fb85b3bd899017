package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
	"github.com/goliatone/go-syncconsole/internal/store"
	"github.com/goliatone/go-syncconsole/internal/timezones"
	"github.com/goliatone/go-syncconsole/pkg/validation"
)

// Jobs manages source to destination pipelines.
type Jobs struct {
	repo         repository.Repository[domain.Job]
	store        *store.Collection[domain.Job]
	sources      repository.Repository[domain.Source]
	destinations repository.Repository[domain.Destination]
	log          repository.JobLog
	logger       *slog.Logger
	now          func() time.Time
}

func newJobs(backend repository.Backend, o options) *Jobs {
	return &Jobs{
		repo:         backend.Jobs,
		store:        store.New(backend.Jobs),
		sources:      backend.Sources,
		destinations: backend.Destinations,
		log:          backend.JobLog,
		logger:       o.logger.With(slog.String("kind", "job")),
		now:          o.now,
	}
}

// ParseSchedule accepts a standard five-field cron expression or a
// descriptor such as "@daily". An empty schedule means manual runs only.
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	return cron.ParseStandard(spec)
}

// NextRun returns the first activation of spec after from. ok is false for
// manual schedules.
func NextRun(spec string, from time.Time) (next time.Time, ok bool, err error) {
	sched, err := ParseSchedule(spec)
	if err != nil || sched == nil {
		return time.Time{}, false, err
	}
	return sched.Next(from), true, nil
}

// ScheduleSpec is the cron spec of job bound to its timezone.
func ScheduleSpec(job domain.Job) string {
	spec := strings.TrimSpace(job.Schedule)
	if spec == "" || job.Timezone == "" || strings.HasPrefix(spec, "CRON_TZ=") || strings.HasPrefix(spec, "TZ=") {
		return spec
	}
	return "CRON_TZ=" + job.Timezone + " " + spec
}

// NextRun previews the next activation of job.
func (j *Jobs) NextRun(job domain.Job) (time.Time, bool) {
	if !job.Enabled {
		return time.Time{}, false
	}
	next, ok, err := NextRun(ScheduleSpec(job), j.now())
	if err != nil {
		return time.Time{}, false
	}
	return next, ok
}

// Validate checks the record and that the source and destination exist.
func (j *Jobs) Validate(ctx context.Context, job domain.Job) error {
	verr := &ValidationError{}
	if strings.TrimSpace(job.Name) == "" {
		verr.record("name", "Name is required")
	}
	if err := j.exists(ctx, "source", job.SourceID, func(ctx context.Context, id string) error {
		_, err := j.sources.Get(ctx, id)
		return err
	}, verr); err != nil {
		return err
	}
	if err := j.exists(ctx, "destination", job.DestinationID, func(ctx context.Context, id string) error {
		_, err := j.destinations.Get(ctx, id)
		return err
	}, verr); err != nil {
		return err
	}
	if job.Timezone != "" && !timezones.Valid(job.Timezone) {
		verr.record("timezone", fmt.Sprintf("Timezone %q is not a known zone", job.Timezone))
	} else if _, err := ParseSchedule(ScheduleSpec(job)); err != nil {
		verr.record("schedule", fmt.Sprintf("Schedule %q is not a valid cron expression", job.Schedule))
	}
	seen := map[string]bool{}
	for idx, stream := range job.Streams {
		path := fmt.Sprintf("streams.%d", idx)
		name := strings.TrimSpace(stream.Name)
		if name == "" {
			verr.record(path+".name", fmt.Sprintf("Stream %d needs a name", idx+1))
			continue
		}
		qualified := stream.Namespace + "." + name
		if seen[qualified] {
			verr.record(path+".name", fmt.Sprintf("Stream %s is listed twice", name))
		}
		seen[qualified] = true
		switch stream.SyncMode {
		case "", domain.SyncFullRefresh:
		case domain.SyncIncremental:
			if strings.TrimSpace(stream.CursorField) == "" {
				verr.record(path+".cursor_field", fmt.Sprintf("Stream %s syncs incrementally and needs a cursor field", name))
			}
		default:
			verr.record(path+".sync_mode", fmt.Sprintf("Stream %s has unknown sync mode %q", name, stream.SyncMode))
		}
	}
	if !verr.empty() {
		return verr
	}
	return nil
}

func (j *Jobs) exists(ctx context.Context, label, id string, get func(context.Context, string) error, verr *ValidationError) error {
	key := label + "_id"
	if strings.TrimSpace(id) == "" {
		verr.record(key, fmt.Sprintf("Choose a %s", label))
		return nil
	}
	err := get(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		verr.record(key, fmt.Sprintf("The selected %s no longer exists", label))
		return nil
	default:
		return fmt.Errorf("service: validate job: %w", err)
	}
}

// List refreshes and returns the jobs.
func (j *Jobs) List(ctx context.Context) ([]domain.Job, error) {
	return j.store.Refresh(ctx)
}

// Get returns one job.
func (j *Jobs) Get(ctx context.Context, id string) (domain.Job, error) {
	return j.repo.Get(ctx, id)
}

// Create validates and stores job. New jobs start pending.
func (j *Jobs) Create(ctx context.Context, job domain.Job) (domain.Job, error) {
	job = normalizeJob(job)
	if err := j.Validate(ctx, job); err != nil {
		return domain.Job{}, err
	}
	if job.LastStatus == "" {
		job.LastStatus = domain.StatusPending
	}
	stored, err := j.store.Create(ctx, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("service: create job: %w", err)
	}
	j.logger.InfoContext(ctx, "job created", slog.String("id", stored.ID), slog.String("schedule", stored.Schedule))
	return stored, nil
}

// Update validates and replaces job. Settings and status the caller left
// unset are carried over.
func (j *Jobs) Update(ctx context.Context, job domain.Job) (domain.Job, error) {
	current, err := j.repo.Get(ctx, job.ID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("service: update job: %w", err)
	}
	job = normalizeJob(job)
	if job.Settings == nil {
		job.Settings = current.Settings
	}
	if job.LastStatus == "" {
		job.LastStatus = current.LastStatus
	}
	if err := j.Validate(ctx, job); err != nil {
		return domain.Job{}, err
	}
	stored, err := j.store.Update(ctx, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("service: update job: %w", err)
	}
	j.logger.InfoContext(ctx, "job updated", slog.String("id", stored.ID))
	return stored, nil
}

// UpdateSettings validates settings against JobSettingsSchema and stores
// them on the job. Masked secrets keep their stored value.
func (j *Jobs) UpdateSettings(ctx context.Context, id string, settings map[string]any) (domain.Job, error) {
	job, err := j.repo.Get(ctx, id)
	if err != nil {
		return domain.Job{}, fmt.Errorf("service: update job settings: %w", err)
	}
	s := JobSettingsSchema()
	settings = keepSecrets(s, nil, settings, job.Settings)
	settings = mergeDefaults(s.Defaults(), settings)
	if errs := validation.Live(settings, s); len(errs) > 0 {
		return domain.Job{}, &ValidationError{Fields: errs}
	}
	job.Settings = settings
	stored, err := j.store.Update(ctx, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("service: update job settings: %w", err)
	}
	j.logger.InfoContext(ctx, "job settings updated", slog.String("id", id))
	return stored, nil
}

// SetEnabled switches the schedule of a job on or off.
func (j *Jobs) SetEnabled(ctx context.Context, id string, enabled bool) (domain.Job, error) {
	job, err := j.repo.Get(ctx, id)
	if err != nil {
		return domain.Job{}, fmt.Errorf("service: toggle job: %w", err)
	}
	job.Enabled = enabled
	stored, err := j.store.Update(ctx, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("service: toggle job: %w", err)
	}
	return stored, nil
}

// Delete removes a job.
func (j *Jobs) Delete(ctx context.Context, id string) error {
	if err := j.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("service: delete job: %w", err)
	}
	j.logger.InfoContext(ctx, "job deleted", slog.String("id", id))
	return nil
}

// ForSource lists the jobs reading from a source.
func (j *Jobs) ForSource(ctx context.Context, id string) ([]domain.Job, error) {
	return j.filter(ctx, func(job domain.Job) bool { return job.SourceID == id })
}

// ForDestination lists the jobs writing to a destination.
func (j *Jobs) ForDestination(ctx context.Context, id string) ([]domain.Job, error) {
	return j.filter(ctx, func(job domain.Job) bool { return job.DestinationID == id })
}

func (j *Jobs) filter(ctx context.Context, keep func(domain.Job) bool) ([]domain.Job, error) {
	all, err := j.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Job, 0, len(all))
	for _, job := range all {
		if keep(job) {
			out = append(out, job)
		}
	}
	return out, nil
}

// History lists the runs of a job, newest first.
func (j *Jobs) History(ctx context.Context, jobID string) ([]domain.JobHistory, error) {
	if _, err := j.repo.Get(ctx, jobID); err != nil {
		return nil, err
	}
	return j.log.History(ctx, jobID)
}

// Logs lists the log lines of one run.
func (j *Jobs) Logs(ctx context.Context, jobID, historyID string) ([]domain.LogEntry, error) {
	return j.log.Logs(ctx, jobID, historyID)
}

func normalizeJob(job domain.Job) domain.Job {
	job = job.Clone()
	job.Name = strings.TrimSpace(job.Name)
	job.Schedule = strings.TrimSpace(job.Schedule)
	job.Timezone = strings.TrimSpace(job.Timezone)
	for idx := range job.Streams {
		stream := &job.Streams[idx]
		stream.Name = strings.TrimSpace(stream.Name)
		stream.Namespace = strings.TrimSpace(stream.Namespace)
		if stream.SyncMode == "" {
			stream.SyncMode = domain.SyncFullRefresh
		}
	}
	return job
}

// Releases lists platform releases.
type Releases struct {
	repo repository.Releases
}

// List returns the releases, newest first.
func (r *Releases) List(ctx context.Context) ([]domain.Release, error) {
	if r.repo == nil {
		return []domain.Release{}, nil
	}
	return r.repo.Releases(ctx)
}
