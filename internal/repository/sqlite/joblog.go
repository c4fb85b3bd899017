package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

// JobLog stores run history and log lines.
type JobLog struct {
	db *DB
}

// Record stores a run and appends its log lines.
func (l *JobLog) Record(ctx context.Context, run domain.JobHistory, entries ...domain.LogEntry) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("sqlite: encode run: %w", err)
	}
	tx, err := l.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: record run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO job_history (id, job_id, started_at, body) VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_id, id) DO UPDATE SET started_at = excluded.started_at, body = excluded.body`,
		run.ID, run.JobID, run.StartedAt.UnixNano(), body); err != nil {
		return fmt.Errorf("sqlite: record run %s: %w", run.ID, err)
	}
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("sqlite: encode log: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_logs (job_id, history_id, body) VALUES (?, ?, ?)`,
			run.JobID, run.ID, line); err != nil {
			return fmt.Errorf("sqlite: record log %s: %w", run.ID, err)
		}
	}
	return tx.Commit()
}

// History returns the runs of jobID, newest first.
func (l *JobLog) History(ctx context.Context, jobID string) ([]domain.JobHistory, error) {
	rows, err := l.db.sql.QueryContext(ctx,
		`SELECT body FROM job_history WHERE job_id = ? ORDER BY started_at DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: history %s: %w", jobID, err)
	}
	defer rows.Close()

	out := []domain.JobHistory{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlite: history %s: %w", jobID, err)
		}
		var run domain.JobHistory
		if err := json.Unmarshal(body, &run); err != nil {
			return nil, fmt.Errorf("sqlite: decode run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Logs returns the log lines of one run in write order.
func (l *JobLog) Logs(ctx context.Context, jobID, historyID string) ([]domain.LogEntry, error) {
	var exists int
	if err := l.db.sql.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM job_history WHERE job_id = ? AND id = ?`, jobID, historyID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("sqlite: logs %s/%s: %w", jobID, historyID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("sqlite: logs %s/%s: %w", jobID, historyID, repository.ErrNotFound)
	}

	rows, err := l.db.sql.QueryContext(ctx,
		`SELECT body FROM job_logs WHERE job_id = ? AND history_id = ? ORDER BY seq`, jobID, historyID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: logs %s/%s: %w", jobID, historyID, err)
	}
	defer rows.Close()

	out := []domain.LogEntry{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlite: logs %s/%s: %w", jobID, historyID, err)
		}
		var entry domain.LogEntry
		if err := json.Unmarshal(body, &entry); err != nil {
			return nil, fmt.Errorf("sqlite: decode log: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Releases stores known platform releases.
type Releases struct {
	db *DB
}

// Save upserts releases by version.
func (r *Releases) Save(ctx context.Context, releases ...domain.Release) error {
	for _, rel := range releases {
		body, err := json.Marshal(rel)
		if err != nil {
			return fmt.Errorf("sqlite: encode release: %w", err)
		}
		if _, err := r.db.sql.ExecContext(ctx,
			`INSERT INTO releases (version, published_at, body) VALUES (?, ?, ?)
			 ON CONFLICT(version) DO UPDATE SET published_at = excluded.published_at, body = excluded.body`,
			rel.Version, rel.PublishedAt.UnixNano(), body); err != nil {
			return fmt.Errorf("sqlite: save release %s: %w", rel.Version, err)
		}
	}
	return nil
}

// Releases returns releases newest first.
func (r *Releases) Releases(ctx context.Context) ([]domain.Release, error) {
	rows, err := r.db.sql.QueryContext(ctx, `SELECT body FROM releases ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: releases: %w", err)
	}
	defer rows.Close()

	out := []domain.Release{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlite: releases: %w", err)
		}
		var rel domain.Release
		if err := json.Unmarshal(body, &rel); err != nil {
			return nil, fmt.Errorf("sqlite: decode release: %w", err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}
