package authz

import (
	"context"
	"errors"
	"log/slog"
)

// Source identifies which source of truth produced a permission set.
type Source int

const (
	// SourceCustomRole means the dynamically administered custom role resolved.
	SourceCustomRole Source = iota
	// SourceCatalog means the compiled-in fixed-role table was used.
	SourceCatalog
)

func (s Source) String() string {
	switch s {
	case SourceCustomRole:
		return "custom_role"
	case SourceCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// FallbackReason records why a resolution used the catalog instead of the
// user's custom role. Keeping the reason a first-class value makes the
// "failed to resolve" and "resolved to an empty set" cases structurally
// distinct instead of both collapsing into an empty list.
type FallbackReason int

const (
	// FallbackNone means no fallback occurred.
	FallbackNone FallbackReason = iota
	// FallbackNoCustomRole means the user has no custom role attached.
	FallbackNoCustomRole
	// FallbackRoleNotFound means the referenced custom role does not exist.
	FallbackRoleNotFound
	// FallbackRoleInactive means the custom role is deactivated.
	FallbackRoleInactive
	// FallbackStoreUnavailable means the store query failed transiently.
	FallbackStoreUnavailable
)

func (f FallbackReason) String() string {
	switch f {
	case FallbackNone:
		return "none"
	case FallbackNoCustomRole:
		return "no_custom_role"
	case FallbackRoleNotFound:
		return "role_not_found"
	case FallbackRoleInactive:
		return "role_inactive"
	case FallbackStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// Resolution is the tagged outcome of one fresh permission resolution.
type Resolution struct {
	Permissions Set
	Source      Source
	Reason      FallbackReason
}

// FallbackRecorder receives a count each time a resolution falls back from
// the custom-role store to the catalog. Implemented by observability.Metrics.
type FallbackRecorder interface {
	RecordAuthzFallback(reason string)
}

// Resolver produces the effective permission set for a user by merging the
// two sources of truth: the database-backed custom-role store and the
// compiled-in catalog. Results are cached per user with bounded staleness.
type Resolver struct {
	store   RolePermissionStore
	cache   *Cache
	logger  *slog.Logger
	metrics FallbackRecorder
}

// NewResolver constructs a Resolver. The cache must not be shared with
// another resolver holding a different store.
func NewResolver(store RolePermissionStore, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, logger: logger}
}

// WithMetrics attaches a fallback recorder. Safe to skip in tests.
func (r *Resolver) WithMetrics(m FallbackRecorder) *Resolver {
	r.metrics = m
	return r
}

// Resolve returns the effective permission set for the user. It never
// returns an error: a store failure degrades to the fixed-role catalog for
// this one resolution, and an unknown fixed role denies everything. The
// only blocking point is the custom-role store query, which respects the
// caller's context.
func (r *Resolver) Resolve(ctx context.Context, user User) Set {
	if perms, ok := r.cache.Get(user.ID); ok {
		return perms
	}

	res := r.resolveFresh(ctx, user)
	r.cache.Put(user.ID, res.Permissions)
	return res.Permissions
}

// resolveFresh performs one resolution bypassing the cache.
//
// An active custom role that legitimately grants zero permissions denies
// everything rather than falling back to the catalog; only resolution
// failures fall back. Falling back on empty would let a deliberately
// locked-down role silently regain its fixed-role permissions.
func (r *Resolver) resolveFresh(ctx context.Context, user User) Resolution {
	reason := FallbackNoCustomRole
	if user.CustomRoleID != nil {
		perms, err := r.store.ResolveCustomRole(ctx, *user.CustomRoleID)
		if err == nil {
			return Resolution{Permissions: perms, Source: SourceCustomRole, Reason: FallbackNone}
		}
		switch {
		case errors.Is(err, ErrRoleNotFound):
			reason = FallbackRoleNotFound
		case errors.Is(err, ErrRoleInactive):
			reason = FallbackRoleInactive
		default:
			reason = FallbackStoreUnavailable
			r.logger.Warn("authz: custom role store unavailable, using catalog fallback",
				slog.Int64("user_id", user.ID),
				slog.Int64("custom_role_id", *user.CustomRoleID),
				slog.Any("error", err))
		}
		if r.metrics != nil {
			r.metrics.RecordAuthzFallback(reason.String())
		}
	}

	perms, err := Lookup(user.Role)
	if err != nil {
		// Unreachable with an enum-constrained user record. Deny rather
		// than guess.
		r.logger.Error("authz: catalog lookup failed, denying",
			slog.Int64("user_id", user.ID),
			slog.String("role", string(user.Role)),
			slog.Any("error", err))
		return Resolution{Permissions: Set{}, Source: SourceCatalog, Reason: reason}
	}
	return Resolution{Permissions: perms, Source: SourceCatalog, Reason: reason}
}

// HasPermission reports exact (resource, action) membership in the user's
// resolved set.
func (r *Resolver) HasPermission(ctx context.Context, user User, resource, action string) bool {
	return r.Resolve(ctx, user).Has(resource, action)
}

// HasAnyPermission reports whether at least one of the given permissions is
// granted. An empty list is false.
func (r *Resolver) HasAnyPermission(ctx context.Context, user User, perms []Permission) bool {
	set := r.Resolve(ctx, user)
	for _, p := range perms {
		if set.Contains(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every given permission is granted. An
// empty list is vacuously true.
func (r *Resolver) HasAllPermissions(ctx context.Context, user User, perms []Permission) bool {
	set := r.Resolve(ctx, user)
	for _, p := range perms {
		if !set.Contains(p) {
			return false
		}
	}
	return true
}

// CanAccessResource reports whether any action at all is granted for the
// resource. Used as a coarse first gate and for menu visibility.
func (r *Resolver) CanAccessResource(ctx context.Context, user User, resource string) bool {
	return r.Resolve(ctx, user).HasResource(resource)
}

// ResourceActions returns the sorted actions granted for one resource, used
// to compute UI affordances.
func (r *Resolver) ResourceActions(ctx context.Context, user User, resource string) []string {
	return r.Resolve(ctx, user).ActionsFor(resource)
}

// Invalidate drops the cached set for one user.
func (r *Resolver) Invalidate(userID int64) {
	r.cache.Invalidate(userID)
}

// InvalidateAll drops every cached set.
func (r *Resolver) InvalidateAll() {
	r.cache.InvalidateAll()
}
