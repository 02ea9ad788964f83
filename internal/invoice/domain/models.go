// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice is the priced result of approving exactly one consumption.
type Invoice struct {
	ID            snowflake.ID      `json:"id" gorm:"primaryKey"`
	Number        string            `json:"number" gorm:"type:varchar(64);not null;uniqueIndex:ux_invoices_number"`
	ConsumptionID snowflake.ID      `json:"consumption_id" gorm:"not null;uniqueIndex:ux_invoices_consumption"`
	Price         decimal.Decimal   `json:"price" gorm:"type:numeric(12,2);not null"`
	Volume        int64             `json:"volume" gorm:"not null"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`
	IssuedAt      time.Time         `json:"issued_at" gorm:"not null"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null"`
	Usages        []TierUsage       `json:"tier_usages" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// TierUsage is one line of an invoice. UnitPrice is copied from the tier at
// billing time so later catalog edits never change issued invoices.
type TierUsage struct {
	ID         snowflake.ID    `json:"id" gorm:"primaryKey"`
	InvoiceID  snowflake.ID    `json:"invoice_id" gorm:"not null;index"`
	TierID     snowflake.ID    `json:"tier_id" gorm:"not null"`
	Position   int             `json:"position" gorm:"not null"`
	VolumeUsed int64           `json:"volume_used" gorm:"not null"`
	UnitPrice  decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
}

// TableName sets the database table name.
func (TierUsage) TableName() string { return "tier_usages" }

// InvoiceSequence is a named monotonic counter for invoice numbers.
type InvoiceSequence struct {
	Name      string `gorm:"type:varchar(64);primaryKey"`
	NextValue int64  `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// DefaultSequence is the sequence used for all invoices.
const DefaultSequence = "invoice"
