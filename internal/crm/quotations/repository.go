package quotations

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Repository provides PostgreSQL backed persistence for quotations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const quotationColumns = `id, number, customer_id, status, currency, subtotal, tax_amount, total_amount, valid_until, notes, assigned_to, created_by, created_at, updated_at`

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	var notes pgtype.Text
	var assignedTo pgtype.Int8
	var status string
	err := row.Scan(&q.ID, &q.Number, &q.CustomerID, &status, &q.Currency,
		&q.Subtotal, &q.TaxAmount, &q.TotalAmount, &q.ValidUntil,
		&notes, &assignedTo, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Quotation{}, err
	}
	q.Status = Status(status)
	if notes.Valid {
		v := notes.String
		q.Notes = &v
	}
	if assignedTo.Valid {
		q.AssignedTo = &assignedTo.Int64
	}
	return q, nil
}

// List returns quotations visible under the scope, newest first. Lines are
// not loaded for listings.
func (r *Repository) List(ctx context.Context, scope authz.DataScope, filter ListFilter) ([]Quotation, int, error) {
	where, args := scope.SQL(1)
	argPos := len(args) + 1

	if filter.Status != "" {
		where += " AND status = $" + strconv.Itoa(argPos)
		args = append(args, string(filter.Status))
		argPos++
	}
	if filter.CustomerID > 0 {
		where += " AND customer_id = $" + strconv.Itoa(argPos)
		args = append(args, filter.CustomerID)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM quotations WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		quotationColumns, where, argPos, argPos+1)
	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// Get fetches one quotation with its lines.
func (r *Repository) Get(ctx context.Context, scope authz.DataScope, id int64) (Quotation, error) {
	where, args := scope.SQL(2)
	row := r.pool.QueryRow(ctx,
		`SELECT `+quotationColumns+` FROM quotations WHERE id = $1 AND `+where,
		append([]any{id}, args...)...)
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, shared.ErrNotFound
		}
		return Quotation{}, err
	}

	lines, err := r.loadLines(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	q.Lines = lines
	return q, nil
}

func (r *Repository) loadLines(ctx context.Context, quotationID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quotation_id, description, quantity, unit_price,
		       discount_percent, discount_amount, tax_percent, tax_amount, line_total, line_order
		FROM quotation_lines
		WHERE quotation_id = $1
		ORDER BY line_order`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.Description, &l.Quantity, &l.UnitPrice,
			&l.DiscountPercent, &l.DiscountAmount, &l.TaxPercent, &l.TaxAmount, &l.LineTotal, &l.LineOrder); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// NextNumber reserves the next sequential quotation number for the year.
func (r *Repository) NextNumber(ctx context.Context, year int) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('quotation_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("QT-%d-%05d", year, n), nil
}

// Create inserts a quotation and its lines in one transaction.
func (r *Repository) Create(ctx context.Context, q Quotation) (Quotation, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Quotation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO quotations (number, customer_id, status, currency, subtotal, tax_amount, total_amount, valid_until, notes, assigned_to, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING `+quotationColumns,
		q.Number, q.CustomerID, string(q.Status), q.Currency,
		q.Subtotal, q.TaxAmount, q.TotalAmount, q.ValidUntil, q.Notes, q.AssignedTo, q.CreatedBy)
	created, err := scanQuotation(row)
	if err != nil {
		return Quotation{}, err
	}

	for _, l := range q.Lines {
		err := tx.QueryRow(ctx, `
			INSERT INTO quotation_lines (quotation_id, description, quantity, unit_price, discount_percent, discount_amount, tax_percent, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			created.ID, l.Description, l.Quantity, l.UnitPrice,
			l.DiscountPercent, l.DiscountAmount, l.TaxPercent, l.TaxAmount, l.LineTotal, l.LineOrder,
		).Scan(&l.ID)
		if err != nil {
			return Quotation{}, err
		}
		l.QuotationID = created.ID
		created.Lines = append(created.Lines, l)
	}

	if err := tx.Commit(ctx); err != nil {
		return Quotation{}, err
	}
	return created, nil
}

// ReplaceLines swaps all lines and totals of a draft quotation in one
// transaction.
func (r *Repository) ReplaceLines(ctx context.Context, id int64, lines []Line, subtotal, taxAmount, totalAmount float64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE quotations
		SET subtotal = $2, tax_amount = $3, total_amount = $4, updated_at = NOW()
		WHERE id = $1`, id, subtotal, taxAmount, totalAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, id); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO quotation_lines (quotation_id, description, quantity, unit_price, discount_percent, discount_amount, tax_percent, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, l.Description, l.Quantity, l.UnitPrice,
			l.DiscountPercent, l.DiscountAmount, l.TaxPercent, l.TaxAmount, l.LineTotal, l.LineOrder); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// UpdateStatus moves a quotation to a new lifecycle status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quotations SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Assign moves the quotation to a new owner, or unassigns it when nil.
func (r *Repository) Assign(ctx context.Context, id int64, assignedTo *int64) error {
	var value pgtype.Int8
	if assignedTo != nil {
		value = pgtype.Int8{Int64: *assignedTo, Valid: true}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE quotations SET assigned_to = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a quotation and its lines.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

// ExpireOverdue marks every sent quotation past its validity as expired,
// returning the number of rows changed. Called from the background worker.
func (r *Repository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND valid_until < $3`,
		string(StatusExpired), string(StatusSent), now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
