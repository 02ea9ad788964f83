package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"github.com/smallbiznis/aguas/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (s *Service) GetInvoiceForConsumption(ctx context.Context, consumptionID snowflake.ID) (*meterdomain.InvoiceDetail, error) {
	var detail *meterdomain.InvoiceDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		consumption, err := s.repo.FindConsumption(ctx, tx, consumptionID)
		if err != nil {
			return err
		}
		if consumption == nil {
			return meterdomain.ErrConsumptionNotFound
		}

		invoice, err := s.invoices.FindByConsumption(ctx, tx, consumptionID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}

		detail, err = s.loadInvoiceDetail(ctx, tx, consumption, invoice)
		return err
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}
	return detail, nil
}

// CommitApproval is the single write path out of PendingApproval. The status
// flip is conditional on the version the caller priced, so of two concurrent
// approvals only one can insert an invoice.
func (s *Service) CommitApproval(ctx context.Context, consumption *meterdomain.Consumption, invoice *invoicedomain.Invoice) (*meterdomain.InvoiceDetail, error) {
	if consumption == nil || invoice == nil {
		return nil, meterdomain.ErrConsumptionNotFound
	}

	var detail *meterdomain.InvoiceDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.MarkAwaitingPayment(ctx, tx, consumption.ID, consumption.Version, invoice.IssuedAt)
		if err != nil {
			return err
		}
		if rows == 0 {
			return s.explainLostApproval(ctx, tx, consumption.ID)
		}

		number, err := s.numberer.Next(ctx, tx, invoice.IssuedAt)
		if err != nil {
			return err
		}
		invoice.Number = number
		invoice.ConsumptionID = consumption.ID

		if err := s.invoices.Insert(ctx, tx, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrAlreadyInvoiced.Wrap(err)
			}
			return err
		}

		approved, err := s.repo.FindConsumption(ctx, tx, consumption.ID)
		if err != nil {
			return err
		}
		if approved == nil {
			return meterdomain.ErrConsumptionNotFound
		}

		stored, err := s.invoices.FindByConsumption(ctx, tx, consumption.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return invoicedomain.ErrInvoiceNotFound
		}

		detail, err = s.loadInvoiceDetail(ctx, tx, approved, stored)
		return err
	})
	if err != nil {
		return nil, apperror.Storage(err)
	}

	s.log.Info("consumption approved",
		zap.String("consumption_id", consumption.ID.String()),
		zap.String("invoice_number", detail.Invoice.Number),
	)
	return detail, nil
}

// explainLostApproval classifies a conditional update that matched no row.
func (s *Service) explainLostApproval(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	current, err := s.repo.FindConsumption(ctx, tx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return meterdomain.ErrConsumptionNotFound
	}
	if !current.IsPending() {
		return meterdomain.ErrAlreadyApproved
	}
	return meterdomain.ErrConcurrentModification
}

func (s *Service) loadInvoiceDetail(ctx context.Context, tx *gorm.DB, consumption *meterdomain.Consumption, invoice *invoicedomain.Invoice) (*meterdomain.InvoiceDetail, error) {
	meter, err := s.repo.FindMeterView(ctx, tx, consumption.MeterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrMeterNotFound
	}
	return &meterdomain.InvoiceDetail{
		Invoice:     *invoice,
		Consumption: *consumption,
		Meter:       *meter,
	}, nil
}
