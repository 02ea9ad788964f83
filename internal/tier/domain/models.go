package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MaxAmount is the largest value a numeric(12,2) money column holds. Unit
// prices, invoice totals and invoice lines all use that column type.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Tier is one bracket of the progressive rate schedule: up to VolumeLimit units
// are billed at UnitPrice before the next bracket applies.
type Tier struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	VolumeLimit int64           `json:"volume_limit" gorm:"not null;uniqueIndex:ux_tiers_volume_limit"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null"`
}

func (Tier) TableName() string { return "tiers" }

// Schedule is an immutable snapshot of the catalog, ascending by volume limit.
type Schedule struct {
	tiers []Tier
}

// NewSchedule copies tiers in the given order. Callers are expected to pass them ascending.
func NewSchedule(tiers []Tier) Schedule {
	copied := make([]Tier, len(tiers))
	copy(copied, tiers)
	return Schedule{tiers: copied}
}

// Tiers returns a copy of the brackets.
func (s Schedule) Tiers() []Tier {
	out := make([]Tier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

func (s Schedule) Len() int { return len(s.tiers) }

// Capacity is the total volume the schedule can bill. It saturates at
// math.MaxInt64, so an open-ended top tier reads as unbounded.
func (s Schedule) Capacity() int64 {
	var total int64
	for _, t := range s.tiers {
		if t.VolumeLimit > 0 && total > math.MaxInt64-t.VolumeLimit {
			return math.MaxInt64
		}
		total += t.VolumeLimit
	}
	return total
}

// Validate reports ErrEmptyCatalog or ErrInvalidSchedule; both are configuration errors.
func (s Schedule) Validate() error {
	if len(s.tiers) == 0 {
		return ErrEmptyCatalog
	}
	var previous int64
	for _, t := range s.tiers {
		if t.VolumeLimit <= 0 || t.VolumeLimit <= previous || t.UnitPrice.IsNegative() {
			return ErrInvalidSchedule
		}
		previous = t.VolumeLimit
	}
	return nil
}
