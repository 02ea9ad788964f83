package repository

import (
	"context"

	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tierdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tier *tierdomain.Tier) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tiers (id, volume_limit, unit_price, created_at) VALUES (?, ?, ?, ?)`,
		tier.ID,
		tier.VolumeLimit,
		tier.UnitPrice,
		tier.CreatedAt,
	).Error
}

func (r *repo) FindByLimit(ctx context.Context, db *gorm.DB, volumeLimit int64) (*tierdomain.Tier, error) {
	var tier tierdomain.Tier
	err := db.WithContext(ctx).Raw(
		`SELECT id, volume_limit, unit_price, created_at FROM tiers WHERE volume_limit = ?`,
		volumeLimit,
	).Scan(&tier).Error
	if err != nil {
		return nil, err
	}
	if tier.ID == 0 {
		return nil, nil
	}
	return &tier, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]tierdomain.Tier, error) {
	var items []tierdomain.Tier
	err := db.WithContext(ctx).Raw(
		`SELECT id, volume_limit, unit_price, created_at FROM tiers ORDER BY volume_limit ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM tiers`).Scan(&count).Error
	return count, err
}
