package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aguas/internal/accessscope"
	"github.com/smallbiznis/aguas/internal/clock"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"github.com/smallbiznis/aguas/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     meterdomain.Repository
	Users    identitydomain.Repository
	Invoices invoicedomain.Repository
	Numberer invoicedomain.Numberer
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     meterdomain.Repository
	users    identitydomain.Repository
	invoices invoicedomain.Repository
	numberer invoicedomain.Numberer
}

func New(p Params) meterdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("meter.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		users:    p.Users,
		invoices: p.Invoices,
		numberer: p.Numberer,
	}
}

func (s *Service) ListMetersFor(ctx context.Context, scope accessscope.Scope) ([]meterdomain.MeterView, error) {
	items, err := s.repo.ListMeters(ctx, s.db, scope)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return items, nil
}

func (s *Service) GetMeter(ctx context.Context, id snowflake.ID) (*meterdomain.MeterView, error) {
	view, err := s.repo.FindMeterView(ctx, s.db, id)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	if view == nil {
		return nil, meterdomain.ErrMeterNotFound
	}
	return view, nil
}

func (s *Service) GetMeterWithConsumptions(ctx context.Context, id snowflake.ID) (*meterdomain.MeterDetail, error) {
	var detail meterdomain.MeterDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := s.repo.FindMeterView(ctx, tx, id)
		if err != nil {
			return err
		}
		if view == nil {
			return meterdomain.ErrMeterNotFound
		}

		items, err := s.repo.ListConsumptionsForMeter(ctx, tx, id)
		if err != nil {
			return err
		}

		detail = meterdomain.MeterDetail{Meter: *view, Consumptions: items}
		return nil
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return &detail, nil
}

func (s *Service) CreateMeter(ctx context.Context, req meterdomain.CreateMeterRequest) (*meterdomain.MeterView, error) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, meterdomain.ErrInvalidAddress
	}
	if req.SerialNumber <= 0 {
		return nil, meterdomain.ErrInvalidSerialNumber
	}

	now := s.clock.Now()
	m := &meterdomain.Meter{
		ID:           s.genID.Generate(),
		Address:      address,
		SerialNumber: req.SerialNumber,
		OwnerID:      req.OwnerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var view *meterdomain.MeterView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owner, err := s.users.FindByID(ctx, tx, req.OwnerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return meterdomain.ErrOwnerNotFound
		}

		if err := s.repo.InsertMeter(ctx, tx, m); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return meterdomain.ErrDuplicateSerialNumber
			}
			return err
		}

		view, err = s.repo.FindMeterView(ctx, tx, m.ID)
		return err
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.log.Info("meter created",
		zap.String("meter_id", m.ID.String()),
		zap.String("owner_id", m.OwnerID.String()),
	)
	return view, nil
}

// DeleteMeter removes a meter that has never reported a reading.
func (s *Service) DeleteMeter(ctx context.Context, id snowflake.ID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := s.repo.FindMeterView(ctx, tx, id)
		if err != nil {
			return err
		}
		if view == nil {
			return meterdomain.ErrMeterNotFound
		}

		count, err := s.repo.CountConsumptionsForMeter(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return meterdomain.ErrMeterHasConsumptions
		}

		rows, err := s.repo.DeleteMeter(ctx, tx, id)
		if err != nil {
			// A reading landed between the count and the delete.
			if db.IsForeignKeyErr(err) {
				return meterdomain.ErrMeterHasConsumptions
			}
			return err
		}
		if rows == 0 {
			return meterdomain.ErrMeterNotFound
		}
		return nil
	})
	if err != nil {
		return apperror.Storage(err)
	}

	s.log.Info("meter deleted", zap.String("meter_id", id.String()))
	return nil
}
