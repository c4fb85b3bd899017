package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/goliatone/go-syncconsole/internal/domain"
	"github.com/goliatone/go-syncconsole/internal/repository"
)

var tablePattern = regexp.MustCompile(`^[a-z_]+$`)

// Table stores one entity type as JSON documents, ordered by insertion.
type Table[T domain.Entity[T]] struct {
	db   *DB
	name string
	opts options
}

var _ repository.Repository[domain.Job] = (*Table[domain.Job])(nil)

// NewTable binds T to an existing table. Table names are fixed identifiers,
// never user input.
func NewTable[T domain.Entity[T]](db *DB, name string, opts ...Option) *Table[T] {
	if !tablePattern.MatchString(name) {
		panic(fmt.Sprintf("sqlite: invalid table name %q", name))
	}
	return &Table[T]{db: db, name: name, opts: defaultOptions(opts)}
}

func (t *Table[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.db.sql.QueryContext(ctx, `SELECT body FROM `+t.name+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlite: list %s: %w", t.name, err)
		}
		var item T
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, fmt.Errorf("sqlite: decode %s: %w", t.name, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", t.name, err)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	var body []byte
	err := t.db.sql.QueryRowContext(ctx, `SELECT body FROM `+t.name+` WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("sqlite: get %s %s: %w", t.name, id, repository.ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("sqlite: get %s %s: %w", t.name, id, err)
	}
	var item T
	if err := json.Unmarshal(body, &item); err != nil {
		return zero, fmt.Errorf("sqlite: decode %s %s: %w", t.name, id, err)
	}
	return item, nil
}

func (t *Table[T]) Create(ctx context.Context, item T) (T, error) {
	var zero T
	id := item.Key()
	if id == "" {
		id = t.opts.newID()
	}
	now := t.opts.now()
	stored := item.Clone().Stamped(id, now, now)
	body, err := json.Marshal(stored)
	if err != nil {
		return zero, fmt.Errorf("sqlite: encode %s: %w", t.name, err)
	}
	_, err = t.db.sql.ExecContext(ctx,
		`INSERT INTO `+t.name+` (id, body, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, body, now.UnixNano(), now.UnixNano())
	if err != nil {
		if isConstraint(err) {
			return zero, fmt.Errorf("sqlite: create %s %s: %w", t.name, id, repository.ErrConflict)
		}
		return zero, fmt.Errorf("sqlite: create %s %s: %w", t.name, id, err)
	}
	return stored, nil
}

func (t *Table[T]) Update(ctx context.Context, item T) (T, error) {
	var zero T
	id := item.Key()
	tx, err := t.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("sqlite: update %s %s: %w", t.name, id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var body []byte
	err = tx.QueryRowContext(ctx, `SELECT body FROM `+t.name+` WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, fmt.Errorf("sqlite: update %s %s: %w", t.name, id, repository.ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("sqlite: update %s %s: %w", t.name, id, err)
	}
	var current T
	if err := json.Unmarshal(body, &current); err != nil {
		return zero, fmt.Errorf("sqlite: decode %s %s: %w", t.name, id, err)
	}

	now := t.opts.now()
	stored := item.Clone().Stamped(id, current.Created(), now)
	next, err := json.Marshal(stored)
	if err != nil {
		return zero, fmt.Errorf("sqlite: encode %s: %w", t.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+t.name+` SET body = ?, updated_at = ? WHERE id = ?`,
		next, now.UnixNano(), id); err != nil {
		return zero, fmt.Errorf("sqlite: update %s %s: %w", t.name, id, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("sqlite: update %s %s: %w", t.name, id, err)
	}
	return stored, nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	res, err := t.db.sql.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete %s %s: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete %s %s: %w", t.name, id, err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: delete %s %s: %w", t.name, id, repository.ErrNotFound)
	}
	return nil
}
