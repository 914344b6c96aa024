package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ErrCodeTaken indicates the customer code is already in use.
var ErrCodeTaken = errors.New("customers: code already taken")

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, code, name, email, phone, tax_id, city, country, is_active, notes, assigned_to, created_by, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	var email, phone, taxID, city, notes pgtype.Text
	var assignedTo pgtype.Int8
	err := row.Scan(&c.ID, &c.Code, &c.Name, &email, &phone, &taxID, &city, &c.Country,
		&c.IsActive, &notes, &assignedTo, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, err
	}
	c.Email = textPtr(email)
	c.Phone = textPtr(phone)
	c.TaxID = textPtr(taxID)
	c.City = textPtr(city)
	c.Notes = textPtr(notes)
	if assignedTo.Valid {
		c.AssignedTo = &assignedTo.Int64
	}
	return c, nil
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.String
	return &v
}

// List returns customers visible under the scope, ordered by name.
func (r *Repository) List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Customer, int, error) {
	where, args := scope.SQL(1)
	argPos := len(args) + 1

	if filter.Search != "" {
		where += fmt.Sprintf(" AND (name ILIKE $%d OR code ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	if filter.ActiveOnly {
		where += " AND is_active"
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		customerColumns, where, argPos, argPos+1)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Get fetches one customer visible under the scope.
func (r *Repository) Get(ctx context.Context, scope authz.DataScope, id int64) (Customer, error) {
	where, args := scope.SQL(2)
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND `+where,
		append([]any{id}, args...)...)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

// NextCode reserves the next sequential customer code.
func (r *Repository) NextCode(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('customer_code_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("CUST-%05d", n), nil
}

// Create inserts a new customer.
func (r *Repository) Create(ctx context.Context, c Customer) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (code, name, email, phone, tax_id, city, country, is_active, notes, assigned_to, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9, $10, NOW(), NOW())
		RETURNING `+customerColumns,
		c.Code, c.Name, c.Email, c.Phone, c.TaxID, c.City, c.Country, c.Notes, c.AssignedTo, c.CreatedBy)
	created, err := scanCustomer(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Customer{}, ErrCodeTaken
		}
		return Customer{}, err
	}
	return created, nil
}

// Update rewrites the mutable fields of a customer.
func (r *Repository) Update(ctx context.Context, c Customer) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE customers
		SET name = $2, email = $3, phone = $4, tax_id = $5, city = $6,
		    country = $7, is_active = $8, notes = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+customerColumns,
		c.ID, c.Name, c.Email, c.Phone, c.TaxID, c.City, c.Country, c.IsActive, c.Notes)
	updated, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrNotFound
		}
		return Customer{}, err
	}
	return updated, nil
}

// Assign moves the customer to a new owner, or unassigns it when nil.
func (r *Repository) Assign(ctx context.Context, id int64, assignedTo *int64) error {
	var value pgtype.Int8
	if assignedTo != nil {
		value = pgtype.Int8{Int64: *assignedTo, Valid: true}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET assigned_to = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a customer.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
