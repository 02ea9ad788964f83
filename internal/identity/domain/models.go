package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is the caller's standing in the utility.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleEmployee Role = "Employee"
	RoleCustomer Role = "Customer"
)

// ParseRole normalizes a stored role name. Unknown names report false.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "admin":
		return RoleAdmin, true
	case "employee":
		return RoleEmployee, true
	case "customer":
		return RoleCustomer, true
	default:
		return "", false
	}
}

// User is an authenticated principal. Credentials live with the external identity provider.
type User struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Email     string       `json:"email" gorm:"type:text;not null;uniqueIndex:ux_users_email"`
	FullName  string       `json:"full_name" gorm:"type:text;not null"`
	Role      Role         `json:"role" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
