package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents a user role in the marketplace.
type Role string

const (
	RoleOrg   Role = "org"
	RoleBrand Role = "brand"
	RoleAdmin Role = "admin"
)

// legacyRoleOrg is the role spelling written by earlier signup flows.
const legacyRoleOrg = "student_org"

// ParseRole maps a stored or claimed role string to a Role.
// Unknown and empty values fall back to RoleOrg; only the exact "admin" claim yields RoleAdmin.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(RoleBrand):
		return RoleBrand
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleOrg), legacyRoleOrg:
		return RoleOrg
	default:
		return RoleOrg
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleOrg || r == RoleBrand || r == RoleAdmin
}

// User represents an identity on the platform.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
