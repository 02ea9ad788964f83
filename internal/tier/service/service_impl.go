package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
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
	Repo  tierdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  tierdomain.Repository
}

func New(p Params) tierdomain.Catalog {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tier.catalog"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Snapshot reads the whole catalog once. The result is detached from later catalog edits.
func (s *Service) Snapshot(ctx context.Context) (tierdomain.Schedule, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return tierdomain.Schedule{}, apperror.Storage(err)
	}
	return tierdomain.NewSchedule(items), nil
}

func (s *Service) List(ctx context.Context) ([]tierdomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, apperror.Storage(err)
	}

	resp := make([]tierdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req tierdomain.CreateRequest) (*tierdomain.Response, error) {
	tier, err := s.build(req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByLimit(ctx, tx, tier.VolumeLimit)
		if err != nil {
			return err
		}
		if existing != nil {
			return tierdomain.ErrDuplicateLimit
		}
		return s.repo.Insert(ctx, tx, tier)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, tierdomain.ErrDuplicateLimit
		}
		return nil, apperror.Storage(err)
	}

	s.log.Info("tier created",
		zap.Int64("volume_limit", tier.VolumeLimit),
		zap.String("unit_price", tier.UnitPrice.StringFixed(2)),
	)
	resp := toResponse(tier)
	return &resp, nil
}

// SyncFromConfig seeds an empty catalog with the configured schedule and
// leaves a populated one untouched. It returns the number of tiers inserted.
func (s *Service) SyncFromConfig(ctx context.Context, tiers []tierdomain.CreateRequest) (int, error) {
	built := make([]tierdomain.Tier, 0, len(tiers))
	for _, req := range tiers {
		tier, err := s.build(req)
		if err != nil {
			return 0, err
		}
		built = append(built, *tier)
	}
	if err := tierdomain.NewSchedule(built).Validate(); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.repo.Count(ctx, tx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for i := range built {
			if err := s.repo.Insert(ctx, tx, &built[i]); err != nil {
				return err
			}
		}
		inserted = len(built)
		return nil
	})
	if err != nil {
		return 0, apperror.Storage(err)
	}

	if inserted > 0 {
		s.log.Info("tier catalog initialized", zap.Int("tiers", inserted))
	}
	return inserted, nil
}

func (s *Service) build(req tierdomain.CreateRequest) (*tierdomain.Tier, error) {
	if req.VolumeLimit <= 0 {
		return nil, tierdomain.ErrInvalidLimit
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
	if err != nil || price.IsNegative() {
		return nil, tierdomain.ErrInvalidUnitPrice
	}
	price = price.Round(2)
	if price.GreaterThan(tierdomain.MaxAmount) {
		return nil, tierdomain.ErrInvalidUnitPrice
	}

	return &tierdomain.Tier{
		ID:          s.genID.Generate(),
		VolumeLimit: req.VolumeLimit,
		UnitPrice:   price,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func toResponse(t *tierdomain.Tier) tierdomain.Response {
	return tierdomain.Response{
		ID:          t.ID.String(),
		VolumeLimit: t.VolumeLimit,
		UnitPrice:   t.UnitPrice.StringFixed(2),
		CreatedAt:   t.CreatedAt,
	}
}
