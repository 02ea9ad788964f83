package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aguas/internal/accessscope"
	"gorm.io/gorm"
)

type Repository interface {
	InsertMeter(ctx context.Context, db *gorm.DB, meter *Meter) error
	DeleteMeter(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	FindMeterView(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MeterView, error)
	ListMeters(ctx context.Context, db *gorm.DB, scope accessscope.Scope) ([]MeterView, error)
	CountConsumptionsForMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (int64, error)

	InsertConsumption(ctx context.Context, db *gorm.DB, consumption *Consumption) error
	FindConsumption(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Consumption, error)
	ListConsumptions(ctx context.Context, db *gorm.DB, scope accessscope.Scope) ([]ConsumptionView, error)
	ListConsumptionsForMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) ([]Consumption, error)

	// UpdatePendingConsumption applies the new reading only while the row is
	// pending, belongs to the stored meter and still carries expectedVersion.
	UpdatePendingConsumption(ctx context.Context, db *gorm.DB, consumption *Consumption, expectedVersion int64) (int64, error)
	DeletePendingConsumption(ctx context.Context, db *gorm.DB, id, meterID snowflake.ID, expectedVersion int64) (int64, error)
	// MarkAwaitingPayment flips a pending row at expectedVersion and bumps its version.
	MarkAwaitingPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, at time.Time) (int64, error)
}
