package models

import "gorm.io/gorm"

const (
	RoleUser    = "user"
	RoleBuilder = "builder"
	RoleAdmin   = "admin"
)

// User is the local mirror of an identity held by the external auth provider.
// Rows are created lazily the first time a token for ExternalID is seen.
type User struct {
	gorm.Model

	ExternalID string  `gorm:"uniqueIndex;not null" json:"external_id"`
	Email      string  `gorm:"index" json:"email"`
	FullName   *string `json:"full_name,omitempty"`
	Username   *string `gorm:"index" json:"username,omitempty"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
	Role       string  `gorm:"not null;default:'user'" json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) IsBuilder() bool {
	return u != nil && (u.Role == RoleBuilder || u.Role == RoleAdmin)
}

// DisplayName falls back from full name to username to email.
func (u *User) DisplayName() string {
	switch {
	case u.FullName != nil && *u.FullName != "":
		return *u.FullName
	case u.Username != nil && *u.Username != "":
		return *u.Username
	default:
		return u.Email
	}
}

// SelfAssignableRole reports whether a user may switch themselves to role.
func SelfAssignableRole(role string) bool {
	return role == RoleUser || role == RoleBuilder
}
