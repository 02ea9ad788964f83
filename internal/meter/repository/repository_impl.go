package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aguas/internal/accessscope"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"gorm.io/gorm"
)

const (
	meterViewColumns = `m.id, m.address, m.serial_number, m.owner_id,
		u.full_name AS owner_name, u.email AS owner_email, m.created_at`
	consumptionViewColumns = `c.id, c.meter_id, c.reading_date, c.volume, c.status, c.version,
		m.address AS meter_address, m.serial_number AS meter_serial_number, m.owner_id,
		u.full_name AS owner_name, u.email AS owner_email`
	consumptionColumns = `id, meter_id, reading_date, volume, status, version, created_at, updated_at`
)

type repo struct{}

func Provide() meterdomain.Repository {
	return &repo{}
}

func (r *repo) InsertMeter(ctx context.Context, db *gorm.DB, m *meterdomain.Meter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meters (id, address, serial_number, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.Address,
		m.SerialNumber,
		m.OwnerID,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repo) DeleteMeter(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM meters WHERE id = ?`, id)
	return result.RowsAffected, result.Error
}

func (r *repo) FindMeterView(ctx context.Context, db *gorm.DB, id snowflake.ID) (*meterdomain.MeterView, error) {
	var view meterdomain.MeterView
	err := db.WithContext(ctx).
		Table("meters AS m").
		Select(meterViewColumns).
		Joins("JOIN users u ON u.id = m.owner_id").
		Where("m.id = ?", id).
		Scan(&view).Error
	if err != nil {
		return nil, err
	}
	if view.ID == 0 {
		return nil, nil
	}
	return &view, nil
}

func (r *repo) ListMeters(ctx context.Context, db *gorm.DB, scope accessscope.Scope) ([]meterdomain.MeterView, error) {
	var views []meterdomain.MeterView
	err := db.WithContext(ctx).
		Table("meters AS m").
		Select(meterViewColumns).
		Joins("JOIN users u ON u.id = m.owner_id").
		Scopes(scope.Meters()).
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (r *repo) CountConsumptionsForMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM consumptions WHERE meter_id = ?`,
		meterID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) InsertConsumption(ctx context.Context, db *gorm.DB, c *meterdomain.Consumption) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consumptions (id, meter_id, reading_date, volume, status, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.MeterID,
		c.ReadingDate,
		c.Volume,
		string(c.Status),
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindConsumption(ctx context.Context, db *gorm.DB, id snowflake.ID) (*meterdomain.Consumption, error) {
	var c meterdomain.Consumption
	err := db.WithContext(ctx).Raw(
		`SELECT `+consumptionColumns+` FROM consumptions WHERE id = ?`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) ListConsumptions(ctx context.Context, db *gorm.DB, scope accessscope.Scope) ([]meterdomain.ConsumptionView, error) {
	var views []meterdomain.ConsumptionView
	err := db.WithContext(ctx).
		Table("consumptions AS c").
		Select(consumptionViewColumns).
		Joins("JOIN meters m ON m.id = c.meter_id").
		Joins("JOIN users u ON u.id = m.owner_id").
		Scopes(scope.Consumptions()).
		Scan(&views).Error
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (r *repo) ListConsumptionsForMeter(ctx context.Context, db *gorm.DB, meterID snowflake.ID) ([]meterdomain.Consumption, error) {
	var items []meterdomain.Consumption
	err := db.WithContext(ctx).Raw(
		`SELECT `+consumptionColumns+` FROM consumptions
		 WHERE meter_id = ? ORDER BY reading_date DESC, id DESC`,
		meterID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePendingConsumption(ctx context.Context, db *gorm.DB, c *meterdomain.Consumption, expectedVersion int64) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE consumptions
		 SET reading_date = ?, volume = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND meter_id = ? AND status = ? AND version = ?`,
		c.ReadingDate,
		c.Volume,
		c.UpdatedAt,
		c.ID,
		c.MeterID,
		string(meterdomain.StatusPendingApproval),
		expectedVersion,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeletePendingConsumption(ctx context.Context, db *gorm.DB, id, meterID snowflake.ID, expectedVersion int64) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM consumptions WHERE id = ? AND meter_id = ? AND status = ? AND version = ?`,
		id,
		meterID,
		string(meterdomain.StatusPendingApproval),
		expectedVersion,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkAwaitingPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, expectedVersion int64, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE consumptions
		 SET status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND status = ? AND version = ?`,
		string(meterdomain.StatusAwaitingPayment),
		at,
		id,
		string(meterdomain.StatusPendingApproval),
		expectedVersion,
	)
	return result.RowsAffected, result.Error
}
