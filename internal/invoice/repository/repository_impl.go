package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	"github.com/smallbiznis/aguas/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice) error {
	err := tx.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, number, consumption_id, price, volume, metadata, issued_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.Number,
		invoice.ConsumptionID,
		invoice.Price,
		invoice.Volume,
		invoice.Metadata,
		invoice.IssuedAt,
		invoice.CreatedAt,
	).Error
	if err != nil {
		return err
	}

	for _, usage := range invoice.Usages {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO tier_usages (id, invoice_id, tier_id, position, volume_used, unit_price, price)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			usage.ID,
			invoice.ID,
			usage.TierID,
			usage.Position,
			usage.VolumeUsed,
			usage.UnitPrice,
			usage.Price,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByConsumption(ctx context.Context, tx *gorm.DB, consumptionID snowflake.ID) (*invoicedomain.Invoice, error) {
	var invoice invoicedomain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT id, number, consumption_id, price, volume, metadata, issued_at, created_at
		 FROM invoices WHERE consumption_id = ?`,
		consumptionID,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}

	var usages []invoicedomain.TierUsage
	err = tx.WithContext(ctx).Raw(
		`SELECT id, invoice_id, tier_id, position, volume_used, unit_price, price
		 FROM tier_usages WHERE invoice_id = ? ORDER BY position ASC`,
		invoice.ID,
	).Scan(&usages).Error
	if err != nil {
		return nil, err
	}
	invoice.Usages = usages
	return &invoice, nil
}

func (r *repo) ExistsForConsumption(ctx context.Context, tx *gorm.DB, consumptionID snowflake.ID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE consumption_id = ?`,
		consumptionID,
	).Scan(&count).Error
	return count > 0, err
}

// NextSequence bumps the named counter and returns the value it held. The
// UPDATE takes the row lock, so concurrent callers serialize on it. A missing
// row is created on first use.
func (r *repo) NextSequence(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE invoice_sequences SET next_value = next_value + 1 WHERE name = ?`,
		name,
	)
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected == 0 {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO invoice_sequences (name, next_value) VALUES (?, ?)`,
			name,
			2,
		).Error
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return 0, invoicedomain.ErrSequenceContended
			}
			return 0, err
		}
		return 1, nil
	}

	var next int64
	err := tx.WithContext(ctx).Raw(
		`SELECT next_value FROM invoice_sequences WHERE name = ?`,
		name,
	).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next - 1, nil
}
