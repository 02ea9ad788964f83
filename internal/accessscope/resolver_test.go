package accessscope

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	"github.com/smallbiznis/aguas/internal/identity/mocks"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	customer := &identitydomain.User{ID: snowflake.ID(7), Email: "customer@mail"}
	employee := &identitydomain.User{ID: snowflake.ID(8), Email: "employee@mail"}
	admin := &identitydomain.User{ID: snowflake.ID(9), Email: "admin@mail"}

	tests := []struct {
		name  string
		email string
		user  *identitydomain.User
		role  identitydomain.Role
		want  Scope
	}{
		{name: "customer sees own", email: "customer@mail", user: customer, role: identitydomain.RoleCustomer, want: Owned(7)},
		{name: "employee sees all", email: "employee@mail", user: employee, role: identitydomain.RoleEmployee, want: All()},
		{name: "admin sees all", email: "admin@mail", user: admin, role: identitydomain.RoleAdmin, want: All()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			lookup := mocks.NewMockLookup(ctrl)
			lookup.EXPECT().ResolveUser(gomock.Any(), tc.email).Return(tc.user, nil)
			lookup.EXPECT().RoleOf(gomock.Any(), tc.user).Return(tc.role, nil)

			scope, err := NewResolver(lookup).Resolve(context.Background(), tc.email)
			require.NoError(t, err)
			assert.Equal(t, tc.want, scope)
		})
	}
}

func TestResolveUnknownEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	lookup := mocks.NewMockLookup(ctrl)
	lookup.EXPECT().ResolveUser(gomock.Any(), "ghost@mail").Return(nil, identitydomain.ErrUserNotFound)

	_, err := NewResolver(lookup).Resolve(context.Background(), "ghost@mail")
	assert.ErrorIs(t, err, ErrUnknownCaller)
	assert.Equal(t, apperror.KindUnknownCaller, apperror.KindOf(err))
}

func TestResolveUnknownRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	user := &identitydomain.User{ID: 1}
	lookup := mocks.NewMockLookup(ctrl)
	lookup.EXPECT().ResolveUser(gomock.Any(), "odd@mail").Return(user, nil)
	lookup.EXPECT().RoleOf(gomock.Any(), user).Return(identitydomain.Role("Auditor"), nil)

	_, err := NewResolver(lookup).Resolve(context.Background(), "odd@mail")
	assert.ErrorIs(t, err, ErrUnknownCaller)
}

func TestResolvePropagatesStorageFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	lookup := mocks.NewMockLookup(ctrl)
	lookup.EXPECT().ResolveUser(gomock.Any(), gomock.Any()).Return(nil, apperror.Storage(errors.New("db down")))

	_, err := NewResolver(lookup).Resolve(context.Background(), "customer@mail")
	assert.Equal(t, apperror.KindStorage, apperror.KindOf(err))
}

func TestScopeAllows(t *testing.T) {
	assert.True(t, All().Allows(3))
	assert.True(t, Owned(3).Allows(3))
	assert.False(t, Owned(3).Allows(4))
	assert.False(t, Owned(0).Allows(0))
	assert.False(t, Scope{}.Allows(3))

	owner, ok := Owned(3).OwnerID()
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(3), owner)
	_, ok = All().OwnerID()
	assert.False(t, ok)
}
