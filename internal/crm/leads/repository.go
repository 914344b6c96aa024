package leads

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

// Repository provides PostgreSQL backed persistence for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, name, company, email, phone, source, status, estimated_value, notes, assigned_to, created_by, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var company, email, phone, source, notes pgtype.Text
	var assignedTo pgtype.Int8
	var status string
	err := row.Scan(&l.ID, &l.Name, &company, &email, &phone, &source, &status,
		&l.EstimatedValue, &notes, &assignedTo, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return Lead{}, err
	}
	l.Status = Status(status)
	l.Company = textPtr(company)
	l.Email = textPtr(email)
	l.Phone = textPtr(phone)
	l.Source = textPtr(source)
	l.Notes = textPtr(notes)
	if assignedTo.Valid {
		l.AssignedTo = &assignedTo.Int64
	}
	return l, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.String
	return &v
}

// List returns leads visible under the scope, newest first.
func (r *Repository) List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Lead, int, error) {
	where, args := scope.SQL(1)
	argPos := len(args) + 1

	if filter.Status != "" {
		where += " AND status = $" + strconv.Itoa(argPos)
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR company ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		leadColumns, where, argPos, argPos+1)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

// Get fetches one lead visible under the scope.
func (r *Repository) Get(ctx context.Context, scope authz.DataScope, id int64) (Lead, error) {
	where, args := scope.SQL(2)
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND `+where,
		append([]any{id}, args...)...)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, shared.ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

// Create inserts a new lead.
func (r *Repository) Create(ctx context.Context, lead Lead) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (name, company, email, phone, source, status, estimated_value, notes, assigned_to, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING `+leadColumns,
		lead.Name, lead.Company, lead.Email, lead.Phone, lead.Source,
		string(lead.Status), lead.EstimatedValue, lead.Notes, lead.AssignedTo, lead.CreatedBy)
	return scanLead(row)
}

// Update rewrites the mutable fields of a lead.
func (r *Repository) Update(ctx context.Context, lead Lead) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET name = $2, company = $3, email = $4, phone = $5, source = $6,
		    status = $7, estimated_value = $8, notes = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+leadColumns,
		lead.ID, lead.Name, lead.Company, lead.Email, lead.Phone, lead.Source,
		string(lead.Status), lead.EstimatedValue, lead.Notes)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, shared.ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

// Assign moves the lead to a new owner, or unassigns it when nil.
func (r *Repository) Assign(ctx context.Context, id int64, assignedTo *int64) error {
	var value pgtype.Int8
	if assignedTo != nil {
		value = pgtype.Int8{Int64: *assignedTo, Valid: true}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE leads SET assigned_to = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a lead.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
