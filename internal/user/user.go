// Package user defines the user model used throughout the application,
// particularly for authentication and alias ownership.
package user

// Roles assignable to a user. RoleUser is the default for new signups.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string `json:"id"`

	// Email is unique across all users; uniqueness is enforced by the storage.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// It is excluded from every JSON representation.
	PasswordHash string `json:"-"`

	// Role is either RoleUser or RoleAdmin.
	Role string `json:"role"`
}

// IsValidRole reports whether the given string names a known role.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
