package types

import "time"

// Roles recognized by the system. Any other value is rejected at the
// validation boundary.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleStaff = "staff"
)

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique, opaque identifier of the account (UUID string).
	ID string `json:"id" db:"id"`

	// Email is the unique login handle. It is stored trimmed and
	// lower-cased; all lookups use the normalized form.
	Email string `json:"email" db:"email"`

	// Role indicates the account's authorization level:
	// "admin", "user", or "staff".
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the account's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidRole reports whether role is one of the recognized role values.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUser, RoleStaff:
		return true
	}
	return false
}
