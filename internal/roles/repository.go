package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ErrNameTaken indicates a custom role with that name already exists.
var ErrNameTaken = errors.New("roles: name already taken")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (CustomRole, error) {
	var cr CustomRole
	err := row.Scan(&cr.ID, &cr.Name, &cr.Description, &cr.IsActive, &cr.CreatedAt, &cr.UpdatedAt)
	return cr, err
}

// ListRoles returns all custom roles ordered by name, without permissions.
func (r *Repository) ListRoles(ctx context.Context) ([]CustomRole, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM custom_roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []CustomRole
	for rows.Next() {
		cr, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, cr)
	}
	return roles, rows.Err()
}

// GetRole fetches one custom role with its permission assignments.
func (r *Repository) GetRole(ctx context.Context, id int64) (CustomRole, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM custom_roles WHERE id = $1`, id)
	cr, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomRole{}, shared.ErrNotFound
		}
		return CustomRole{}, err
	}

	perms, err := r.rolePermissions(ctx, id)
	if err != nil {
		return CustomRole{}, err
	}
	cr.Permissions = perms
	return cr, nil
}

// CreateRole inserts a new custom role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (CustomRole, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO custom_roles (name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, TRUE, NOW(), NOW())
		RETURNING `+roleColumns,
		name, description)
	cr, err := scanRole(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return CustomRole{}, ErrNameTaken
		}
		return CustomRole{}, err
	}
	return cr, nil
}

// UpdateRole changes name and description.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string) (CustomRole, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE custom_roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		id, name, description)
	cr, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomRole{}, shared.ErrNotFound
		}
		if db.IsUniqueViolation(err) {
			return CustomRole{}, ErrNameTaken
		}
		return CustomRole{}, err
	}
	return cr, nil
}

// SetActive flips the role's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE custom_roles SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteRole removes a custom role and its permission assignments. Users
// still referencing it resolve to their fixed-role fallback afterwards.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET custom_role_id = NULL WHERE custom_role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM custom_role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM custom_roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// ReplacePermissions swaps the role's full permission assignment set.
func (r *Repository) ReplacePermissions(ctx context.Context, id int64, perms []authz.Permission) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM custom_roles WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM custom_role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		for _, p := range perms {
			if _, err := tx.Exec(ctx, `
				INSERT INTO custom_role_permissions (role_id, resource, action)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING`,
				id, p.Resource, p.Action); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResolveCustomRole loads the permission set for an *active* custom role.
// Implements authz.RolePermissionStore: a missing role returns
// authz.ErrRoleNotFound, a deactivated one authz.ErrRoleInactive, and any
// other failure surfaces as-is for the resolver to treat as transient.
func (r *Repository) ResolveCustomRole(ctx context.Context, roleID int64) (authz.Set, error) {
	var isActive bool
	err := r.pool.QueryRow(ctx, `SELECT is_active FROM custom_roles WHERE id = $1`, roleID).Scan(&isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Set{}, authz.ErrRoleNotFound
		}
		return authz.Set{}, fmt.Errorf("roles: resolve custom role %d: %w", roleID, err)
	}
	if !isActive {
		return authz.Set{}, authz.ErrRoleInactive
	}

	perms, err := r.rolePermissions(ctx, roleID)
	if err != nil {
		return authz.Set{}, fmt.Errorf("roles: resolve custom role %d: %w", roleID, err)
	}
	return authz.NewSet(perms...), nil
}

func (r *Repository) rolePermissions(ctx context.Context, roleID int64) ([]authz.Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT resource, action FROM custom_role_permissions
		WHERE role_id = $1
		ORDER BY resource, action`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []authz.Permission
	for rows.Next() {
		var p authz.Permission
		if err := rows.Scan(&p.Resource, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

var _ authz.RolePermissionStore = (*Repository)(nil)
