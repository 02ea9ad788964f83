package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert writes the invoice and its usages. A second invoice for the same
	// consumption fails with a duplicate key error.
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByConsumption(ctx context.Context, db *gorm.DB, consumptionID snowflake.ID) (*Invoice, error)
	ExistsForConsumption(ctx context.Context, db *gorm.DB, consumptionID snowflake.ID) (bool, error)
	NextSequence(ctx context.Context, db *gorm.DB, name string) (int64, error)
}

// Numberer allocates human-readable invoice numbers inside the caller's transaction.
type Numberer interface {
	Next(ctx context.Context, tx *gorm.DB, issuedAt time.Time) (string, error)
}
