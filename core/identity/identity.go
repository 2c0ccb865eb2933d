// Package identity resolves which user a request acts on: the authenticated principal,
// possibly overridden by an admin-initiated impersonation.
package identity

import (
	"github.com/pkg/errors"

	"github.com/qantedservices-cmd/amilou-sub002/core/user"
)

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrForbidden       = errors.New("permission denied")
	ErrNoSession       = errors.New("principal has no session")
)

// Principal is the authenticated caller of a request, before any impersonation override.
// SessionID identifies the login session the request belongs to; it is kept across token refreshes.
type Principal struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	SessionID string `json:"-"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == user.RoleAdmin
}

// CanImpersonate reports whether the principal's role permits impersonation (admins only).
func (p Principal) CanImpersonate() bool {
	return p.IsAdmin() && p.ID != "" && p.SessionID != ""
}

// EffectiveIdentity is the resolved acting identity of a request.
//
// UserID scopes data access (it is the impersonated user while impersonating).
// AuthorizationRole gates actions and is always the principal's own role;
// PrincipalID is the real actor, recorded on writes.
type EffectiveIdentity struct {
	UserID            string `json:"user_id"`
	PrincipalID       string `json:"principal_id"`
	AuthorizationRole string `json:"authorization_role"`
	IsImpersonating   bool   `json:"is_impersonating"`
	TargetDisplayName string `json:"target_display_name,omitempty"`
}

// IsAdmin reports whether the real actor is an admin.
func (ei EffectiveIdentity) IsAdmin() bool {
	return ei.AuthorizationRole == user.RoleAdmin
}
