package domain

import (
	"strings"
	"time"
)

// Role is the closed set of identity roles.
type Role string

const (
	RoleOrdinary      Role = "ordinary"
	RoleAdministrator Role = "administrator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOrdinary || r == RoleAdministrator
}

// ParseRole maps external role strings onto the enumeration. The legacy
// values "user" and "admin" are accepted.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ordinary", "user":
		return RoleOrdinary, true
	case "administrator", "admin":
		return RoleAdministrator, true
	default:
		return "", false
	}
}

// Identity is a registered person, either an ordinary user or an administrator.
type Identity struct {
	ID                    string
	Email                 string
	Name                  string
	PasswordHash          string
	Role                  Role
	EmailVerified         bool
	Faculty               string
	Department            string
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
}

// IsAdmin reports whether the identity holds the administrator role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdministrator
}

// NormalizeEmail trims and lower-cases an address so the store's unique
// index treats addresses case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IdentityCounts is the per-identity review bookkeeping shown to administrators.
type IdentityCounts struct {
	Received int64
	Written  int64
}
