package domain

import (
	"context"

	"github.com/smallbiznis/aguas/pkg/apperror"
)

//go:generate mockgen -source=lookup.go -destination=../mocks/mock_lookup.go -package=mocks

// Lookup resolves authenticated callers. It is the only identity surface the billing core depends on.
type Lookup interface {
	ResolveUser(ctx context.Context, email string) (*User, error)
	RoleOf(ctx context.Context, user *User) (Role, error)
}

// Service adds the administrative operations used by seeding and the API.
type Service interface {
	Lookup
	Create(ctx context.Context, req CreateRequest) (*User, error)
}

type CreateRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

var (
	ErrUserNotFound  = apperror.New(apperror.KindNotFound, "user_not_found", "user not found")
	ErrInvalidEmail  = apperror.New(apperror.KindValidation, "invalid_email", "email is required")
	ErrInvalidName   = apperror.New(apperror.KindValidation, "invalid_full_name", "full name is required")
	ErrInvalidRole   = apperror.New(apperror.KindValidation, "invalid_role", "role must be Admin, Employee or Customer")
	ErrDuplicateUser = apperror.New(apperror.KindValidation, "duplicate_email", "email already registered")
)
