// Package auth is responsible for authentication and authorization:
// user registration, login, opaque bearer token management, and role checks.
package auth

import (
	"fmt"

	"github.com/user/libcat-go/apperror"
)

// Role is the closed set of permission levels a user can hold.
type Role string

const (
	// RoleMember is the default role: can browse the catalogue and manage
	// their own loans.
	RoleMember Role = "MEMBER"
	// RoleLibrarian can additionally manage authors, books and all loans.
	RoleLibrarian Role = "LIBRARIAN"
	// RoleAdmin has the same elevated access as a librarian.
	RoleAdmin Role = "ADMIN"
)

// ParseRole validates a raw role string against the closed enumeration.
// The empty string maps to RoleMember.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case "":
		return RoleMember, nil
	case RoleMember, RoleLibrarian, RoleAdmin:
		return Role(raw), nil
	default:
		return "", apperror.NewValidationError(fmt.Sprintf("invalid role %q", raw), nil)
	}
}

// IsStaff reports whether the role grants elevated read/write access.
func (r Role) IsStaff() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

// In returns whether the role is one of the allowed set.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// User represents an API user as stored in users.json.
// PasswordHash is persisted to disk but must never reach an API response;
// handlers convert to UserResponse instead of serializing User directly.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Role         Role   `json:"role"`
}

// RecordID implements store.Record.
func (u User) RecordID() int { return u.ID }
