package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aguas/internal/accessscope"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) ListConsumptionsFor(ctx context.Context, scope accessscope.Scope) ([]meterdomain.ConsumptionView, error) {
	items, err := s.repo.ListConsumptions(ctx, s.db, scope)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return items, nil
}

func (s *Service) GetConsumption(ctx context.Context, id snowflake.ID) (*meterdomain.Consumption, error) {
	item, err := s.repo.FindConsumption(ctx, s.db, id)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	if item == nil {
		return nil, meterdomain.ErrConsumptionNotFound
	}
	return item, nil
}

func (s *Service) SubmitConsumption(ctx context.Context, req meterdomain.SubmitRequest) (*meterdomain.Consumption, error) {
	if req.Volume < 0 {
		return nil, meterdomain.ErrInvalidVolume
	}
	if req.Date.IsZero() {
		return nil, meterdomain.ErrInvalidReadingDate
	}

	now := s.clock.Now()
	c := &meterdomain.Consumption{
		ID:          s.genID.Generate(),
		MeterID:     req.MeterID,
		ReadingDate: meterdomain.TruncateDate(req.Date),
		Volume:      req.Volume,
		Status:      meterdomain.StatusPendingApproval,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meter, err := s.repo.FindMeterView(ctx, tx, req.MeterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return meterdomain.ErrMeterNotFound
		}
		return s.repo.InsertConsumption(ctx, tx, c)
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.log.Info("consumption submitted",
		zap.String("consumption_id", c.ID.String()),
		zap.String("meter_id", c.MeterID.String()),
		zap.Int64("volume", c.Volume),
	)
	return c, nil
}

// UpdateConsumption edits a pending reading in place. The owning meter always
// comes from the stored row, never from the request.
func (s *Service) UpdateConsumption(ctx context.Context, req meterdomain.UpdateRequest) (*meterdomain.Consumption, error) {
	if req.Volume < 0 {
		return nil, meterdomain.ErrInvalidVolume
	}
	if req.Date.IsZero() {
		return nil, meterdomain.ErrInvalidReadingDate
	}

	var updated meterdomain.Consumption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindConsumption(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return meterdomain.ErrConsumptionNotFound
		}
		if !current.IsPending() {
			return meterdomain.ErrNotPending
		}
		if req.MeterID != 0 && req.MeterID != current.MeterID {
			return meterdomain.ErrMeterMismatch
		}

		meter, err := s.repo.FindMeterView(ctx, tx, current.MeterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return meterdomain.ErrMeterNotFound
		}

		expected := req.Version
		if expected == 0 {
			expected = current.Version
		}

		updated = *current
		updated.ReadingDate = meterdomain.TruncateDate(req.Date)
		updated.Volume = req.Volume
		updated.UpdatedAt = s.clock.Now()

		rows, err := s.repo.UpdatePendingConsumption(ctx, tx, &updated, expected)
		if err != nil {
			return err
		}
		if rows == 0 {
			return meterdomain.ErrConcurrentModification
		}
		updated.Version = expected + 1
		return nil
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.log.Info("consumption updated",
		zap.String("consumption_id", updated.ID.String()),
		zap.Int64("version", updated.Version),
	)
	return &updated, nil
}

// DeleteConsumption removes a pending reading and returns its meter id.
func (s *Service) DeleteConsumption(ctx context.Context, id snowflake.ID) (snowflake.ID, error) {
	var meterID snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindConsumption(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return meterdomain.ErrConsumptionNotFound
		}

		meter, err := s.repo.FindMeterView(ctx, tx, current.MeterID)
		if err != nil {
			return err
		}
		if meter == nil {
			return meterdomain.ErrMeterNotFound
		}

		invoiced, err := s.invoices.ExistsForConsumption(ctx, tx, id)
		if err != nil {
			return err
		}
		if invoiced {
			return invoicedomain.ErrAlreadyInvoiced
		}
		if !current.IsPending() {
			return meterdomain.ErrNotPending
		}

		rows, err := s.repo.DeletePendingConsumption(ctx, tx, id, current.MeterID, current.Version)
		if err != nil {
			return err
		}
		if rows == 0 {
			return meterdomain.ErrConcurrentModification
		}
		meterID = current.MeterID
		return nil
	})
	if err != nil {
		return 0, apperror.Storage(err)
	}

	s.log.Info("consumption deleted",
		zap.String("consumption_id", id.String()),
		zap.String("meter_id", meterID.String()),
	)
	return meterID, nil
}
