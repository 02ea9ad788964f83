package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/aguas/pkg/apperror"
)

// Catalog is the read side used by billing plus the administrative writes.
type Catalog interface {
	Snapshot(ctx context.Context) (Schedule, error)
	List(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	SyncFromConfig(ctx context.Context, tiers []CreateRequest) (int, error)
}

type CreateRequest struct {
	VolumeLimit int64  `json:"volume_limit"`
	UnitPrice   string `json:"unit_price"`
}

type Response struct {
	ID          string    `json:"id"`
	VolumeLimit int64     `json:"volume_limit"`
	UnitPrice   string    `json:"unit_price"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrEmptyCatalog     = apperror.New(apperror.KindConfiguration, "empty_tier_catalog", "no tiers configured")
	ErrInvalidSchedule  = apperror.New(apperror.KindConfiguration, "invalid_tier_schedule", "tier limits must be positive and strictly increasing")
	ErrInvalidLimit     = apperror.New(apperror.KindValidation, "invalid_volume_limit", "volume limit must be positive")
	ErrInvalidUnitPrice = apperror.New(apperror.KindValidation, "invalid_unit_price", "unit price must be a non-negative decimal")
	ErrDuplicateLimit   = apperror.New(apperror.KindValidation, "duplicate_volume_limit", "a tier with this volume limit already exists")
)
