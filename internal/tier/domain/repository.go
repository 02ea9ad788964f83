package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tier *Tier) error
	FindByLimit(ctx context.Context, db *gorm.DB, volumeLimit int64) (*Tier, error)
	List(ctx context.Context, db *gorm.DB) ([]Tier, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
