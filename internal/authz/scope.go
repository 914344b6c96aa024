package authz

import "fmt"

// ScopeKind classifies the row-level visibility a role grants.
type ScopeKind int

const (
	// ScopeNone matches no rows. Superadmins manage users and roles only,
	// never CRM records.
	ScopeNone ScopeKind = iota
	// ScopeAll matches every row.
	ScopeAll
	// ScopeOwned matches rows assigned to or created by the user.
	ScopeOwned
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeNone:
		return "none"
	case ScopeAll:
		return "all"
	case ScopeOwned:
		return "owned"
	default:
		return "unknown"
	}
}

// DataScope is a role-derived query restriction. It narrows which rows are
// visible once an operation is permitted; it does not decide whether the
// operation is permitted at all. Handlers apply it only when the caller
// holds the "assigned" variant of a permission rather than the "all" one.
type DataScope struct {
	Kind   ScopeKind
	UserID int64
}

// ScopeFor maps a role to its data scope. Total over all inputs: an
// unrecognized role gets the most restrictive useful scope, owned rows only.
func ScopeFor(role Role, userID int64) DataScope {
	switch role {
	case RoleSuperadmin:
		return DataScope{Kind: ScopeNone, UserID: userID}
	case RoleAdmin, RoleManager:
		return DataScope{Kind: ScopeAll, UserID: userID}
	default:
		return DataScope{Kind: ScopeOwned, UserID: userID}
	}
}

// Matches evaluates the scope against one row's ownership columns.
func (s DataScope) Matches(assignedTo, createdBy *int64) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeOwned:
		if assignedTo != nil && *assignedTo == s.UserID {
			return true
		}
		if createdBy != nil && *createdBy == s.UserID {
			return true
		}
		return false
	default:
		return false
	}
}

// SQL renders the scope as a WHERE fragment over the standard ownership
// columns, numbering placeholders from argPos. ScopeAll and ScopeNone
// render constant predicates so callers can always AND the fragment in.
func (s DataScope) SQL(argPos int) (string, []any) {
	switch s.Kind {
	case ScopeAll:
		return "TRUE", nil
	case ScopeOwned:
		return fmt.Sprintf("(assigned_to = $%d OR created_by = $%d)", argPos, argPos+1),
			[]any{s.UserID, s.UserID}
	default:
		return "FALSE", nil
	}
}
