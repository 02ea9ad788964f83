package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	"github.com/smallbiznis/aguas/pkg/db/option"
	"github.com/smallbiznis/aguas/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() identitydomain.Repository {
	return &repo{}
}

func (r *repo) store(db *gorm.DB) repository.Repository[identitydomain.User] {
	return repository.ProvideStore[identitydomain.User](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *identitydomain.User) error {
	return r.store(db).Create(ctx, user)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*identitydomain.User, error) {
	return r.store(db).FindOne(ctx, &identitydomain.User{},
		option.WithWhere("LOWER(email) = ?", identitydomain.NormalizeEmail(email)),
	)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*identitydomain.User, error) {
	if id == 0 {
		return nil, nil
	}
	return r.store(db).FindOne(ctx, &identitydomain.User{ID: id})
}
