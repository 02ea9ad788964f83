package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"github.com/smallbiznis/aguas/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  identitydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  identitydomain.Repository
	genID *snowflake.Node
}

func New(p Params) identitydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("identity.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) ResolveUser(ctx context.Context, email string) (*identitydomain.User, error) {
	email = identitydomain.NormalizeEmail(email)
	if email == "" {
		return nil, identitydomain.ErrUserNotFound
	}

	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	if user == nil {
		return nil, identitydomain.ErrUserNotFound
	}
	return user, nil
}

// RoleOf re-reads the role so a demotion takes effect on the next request.
func (s *Service) RoleOf(ctx context.Context, user *identitydomain.User) (identitydomain.Role, error) {
	if user == nil {
		return "", identitydomain.ErrUserNotFound
	}

	current, err := s.repo.FindByID(ctx, s.db, user.ID)
	if err != nil {
		return "", apperror.Storage(err)
	}
	if current == nil {
		return "", identitydomain.ErrUserNotFound
	}
	return current.Role, nil
}

func (s *Service) Create(ctx context.Context, req identitydomain.CreateRequest) (*identitydomain.User, error) {
	email := identitydomain.NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, identitydomain.ErrInvalidEmail
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, identitydomain.ErrInvalidName
	}
	role, ok := identitydomain.ParseRole(req.Role)
	if !ok {
		return nil, identitydomain.ErrInvalidRole
	}

	user := &identitydomain.User{
		ID:        s.genID.Generate(),
		Email:     email,
		FullName:  name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, identitydomain.ErrDuplicateUser
		}
		return nil, apperror.Storage(err)
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}
