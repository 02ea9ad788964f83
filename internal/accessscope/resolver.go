package accessscope

import (
	"context"

	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"go.uber.org/fx"
)

var Module = fx.Module("accessscope",
	fx.Provide(NewResolver),
)

var ErrUnknownCaller = apperror.New(apperror.KindUnknownCaller, "unknown_caller", "caller is not a registered user")

// Caller is a resolved principal.
type Caller struct {
	User  *identitydomain.User
	Role  identitydomain.Role
	Scope Scope
}

type Resolver struct {
	lookup identitydomain.Lookup
}

func NewResolver(lookup identitydomain.Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve maps an authenticated email to its visibility scope.
func (r *Resolver) Resolve(ctx context.Context, email string) (Scope, error) {
	caller, err := r.ResolveCaller(ctx, email)
	if err != nil {
		return Scope{}, err
	}
	return caller.Scope, nil
}

// ResolveCaller is Resolve plus the user and role, for permission checks.
func (r *Resolver) ResolveCaller(ctx context.Context, email string) (*Caller, error) {
	user, err := r.lookup.ResolveUser(ctx, email)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, ErrUnknownCaller.Wrap(err)
		}
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownCaller
	}

	role, err := r.lookup.RoleOf(ctx, user)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, ErrUnknownCaller.Wrap(err)
		}
		return nil, err
	}

	var scope Scope
	switch role {
	case identitydomain.RoleCustomer:
		scope = Owned(user.ID)
	case identitydomain.RoleEmployee, identitydomain.RoleAdmin:
		scope = All()
	default:
		return nil, ErrUnknownCaller
	}

	return &Caller{User: user, Role: role, Scope: scope}, nil
}
