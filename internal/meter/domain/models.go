package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
)

// Meter is a customer's water meter. Every meter has exactly one owner.
type Meter struct {
	ID           snowflake.ID         `json:"id" gorm:"primaryKey"`
	Address      string               `json:"address" gorm:"type:text;not null"`
	SerialNumber int64                `json:"serial_number" gorm:"not null;uniqueIndex:ux_meters_serial_number"`
	OwnerID      snowflake.ID         `json:"owner_id" gorm:"not null;index"`
	Owner        *identitydomain.User `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:RESTRICT"`
	CreatedAt    time.Time            `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time            `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Meter) TableName() string { return "meters" }

// ConsumptionStatus is persisted as its literal name.
type ConsumptionStatus string

const (
	StatusPendingApproval ConsumptionStatus = "PendingApproval"
	StatusAwaitingPayment ConsumptionStatus = "AwaitingPayment"
)

// Consumption is one meter reading. It moves from PendingApproval to
// AwaitingPayment exactly once, when it is approved and invoiced.
type Consumption struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	MeterID     snowflake.ID      `json:"meter_id" gorm:"not null;index"`
	Meter       *Meter            `json:"-" gorm:"foreignKey:MeterID;constraint:OnDelete:RESTRICT"`
	ReadingDate time.Time         `json:"reading_date" gorm:"type:date;not null"`
	Volume      int64             `json:"volume" gorm:"not null"`
	Status      ConsumptionStatus `json:"status" gorm:"type:varchar(32);not null"`
	Version     int64             `json:"version" gorm:"not null;default:1"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Consumption) TableName() string { return "consumptions" }

func (c Consumption) IsPending() bool { return c.Status == StatusPendingApproval }

// MeterView is a meter joined with its owner.
type MeterView struct {
	ID           snowflake.ID `json:"id"`
	Address      string       `json:"address"`
	SerialNumber int64        `json:"serial_number"`
	OwnerID      snowflake.ID `json:"owner_id"`
	OwnerName    string       `json:"owner_name"`
	OwnerEmail   string       `json:"owner_email"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ConsumptionView is a consumption joined with its meter and owner.
type ConsumptionView struct {
	ID                snowflake.ID      `json:"id"`
	MeterID           snowflake.ID      `json:"meter_id"`
	ReadingDate       time.Time         `json:"reading_date"`
	Volume            int64             `json:"volume"`
	Status            ConsumptionStatus `json:"status"`
	Version           int64             `json:"version"`
	MeterAddress      string            `json:"meter_address"`
	MeterSerialNumber int64             `json:"meter_serial_number"`
	OwnerID           snowflake.ID      `json:"owner_id"`
	OwnerName         string            `json:"owner_name"`
	OwnerEmail        string            `json:"owner_email"`
}

type MeterDetail struct {
	Meter        MeterView     `json:"meter"`
	Consumptions []Consumption `json:"consumptions"`
}

// TruncateDate keeps the calendar date of t and drops the time of day.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
