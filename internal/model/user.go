package model

import "time"

// Role constants. Role membership is the presence of the label; anything
// that is not an admin is a competitor.
const (
	RoleAdmin      = "admin"
	RoleCompetitor = "competitor"
)

// User is a registered account: either a competitor or an administrator.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NewUser creates a user with the given role.
func NewUser(id, email, displayName, passwordHash, role string) User {
	now := time.Now().UTC().Format(time.RFC3339)
	return User{
		ID:           id,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
