package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ErrEmailTaken indicates the email is already registered.
var ErrEmailTaken = errors.New("users: email already taken")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, custom_role_id, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var customRoleID pgtype.Int8
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &customRoleID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role = authz.Role(role)
	if customRoleID.Valid {
		u.CustomRoleID = &customRoleID.Int64
	}
	return u, nil
}

// ListUsers returns one page of users plus the total count.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// GetUser fetches one user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// CreateUser inserts a new account with a hashed password.
func (r *Repository) CreateUser(ctx context.Context, email, name, passwordHash string, role authz.Role) (User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW())
		RETURNING `+userColumns,
		email, name, passwordHash, string(role))
	u, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// UpdateUser changes the account's name and email.
func (r *Repository) UpdateUser(ctx context.Context, id int64, email, name string) (User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET email = $2, name = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, email, name)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

// SetRole changes the account's fixed role.
func (r *Repository) SetRole(ctx context.Context, id int64, role authz.Role) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetCustomRole attaches or detaches (nil) the account's custom role.
func (r *Repository) SetCustomRole(ctx context.Context, id int64, customRoleID *int64) error {
	var value pgtype.Int8
	if customRoleID != nil {
		value = pgtype.Int8{Int64: *customRoleID, Valid: true}
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET custom_role_id = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetActive flips the account's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindAuthzUser loads the authorization engine's view of one account.
// Implements authz.UserSource.
func (r *Repository) FindAuthzUser(ctx context.Context, userID int64) (authz.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, role, custom_role_id, is_active FROM users WHERE id = $1`, userID)
	var u authz.User
	var role string
	var customRoleID pgtype.Int8
	if err := row.Scan(&u.ID, &role, &customRoleID, &u.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.User{}, shared.ErrNotFound
		}
		return authz.User{}, err
	}
	u.Role = authz.Role(role)
	if customRoleID.Valid {
		u.CustomRoleID = &customRoleID.Int64
	}
	return u, nil
}

var _ authz.UserSource = (*Repository)(nil)
