package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `id, title, description, status, priority, due_at, related_kind, related_id, assigned_to, created_by, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var description, relatedKind pgtype.Text
	var dueAt pgtype.Timestamptz
	var relatedID, assignedTo pgtype.Int8
	var status, priority string
	err := row.Scan(&t.ID, &t.Title, &description, &status, &priority, &dueAt,
		&relatedKind, &relatedID, &assignedTo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	t.Status = Status(status)
	t.Priority = Priority(priority)
	if description.Valid {
		v := description.String
		t.Description = &v
	}
	if dueAt.Valid {
		v := dueAt.Time
		t.DueAt = &v
	}
	if relatedKind.Valid {
		v := RelatedKind(relatedKind.String)
		t.RelatedKind = &v
	}
	if relatedID.Valid {
		t.RelatedID = &relatedID.Int64
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.Int64
	}
	return t, nil
}

// List returns tasks visible under the scope, most urgent first.
func (r *Repository) List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Task, int, error) {
	where, args := scope.SQL(1)
	argPos := len(args) + 1

	if filter.Status != "" {
		where += " AND status = $" + strconv.Itoa(argPos)
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.DueBy != nil {
		where += " AND due_at <= $" + strconv.Itoa(argPos)
		args = append(args, *filter.DueBy)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY due_at NULLS LAST, id LIMIT $%d OFFSET $%d`,
		taskColumns, where, argPos, argPos+1)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// Get fetches one task visible under the scope.
func (r *Repository) Get(ctx context.Context, scope authz.DataScope, id int64) (Task, error) {
	where, args := scope.SQL(2)
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND `+where,
		append([]any{id}, args...)...)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, shared.ErrNotFound
		}
		return Task{}, err
	}
	return t, nil
}

// Create inserts a new task.
func (r *Repository) Create(ctx context.Context, t Task) (Task, error) {
	var relatedKind *string
	if t.RelatedKind != nil {
		v := string(*t.RelatedKind)
		relatedKind = &v
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, status, priority, due_at, related_kind, related_id, assigned_to, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING `+taskColumns,
		t.Title, t.Description, string(t.Status), string(t.Priority),
		t.DueAt, relatedKind, t.RelatedID, t.AssignedTo, t.CreatedBy)
	return scanTask(row)
}

// Update rewrites the mutable fields of a task.
func (r *Repository) Update(ctx context.Context, t Task) (Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_at = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), t.DueAt)
	updated, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Task{}, shared.ErrNotFound
		}
		return Task{}, err
	}
	return updated, nil
}

// SetStatus moves the task to a new status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Assign moves the task to a new owner, or unassigns it when nil.
func (r *Repository) Assign(ctx context.Context, id int64, assignedTo *int64) error {
	var value pgtype.Int8
	if assignedTo != nil {
		value = pgtype.Int8{Int64: *assignedTo, Valid: true}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET assigned_to = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
