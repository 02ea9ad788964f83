// Package billing prices a consumption against the tier schedule and turns an
// approval into an invoice.
package billing

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
)

var (
	ErrNegativeVolume        = apperror.New(apperror.KindValidation, "invalid_volume", "volume must not be negative")
	ErrVolumeExceedsCapacity = apperror.New(apperror.KindConfiguration, "volume_exceeds_tier_capacity", "volume exceeds the capacity of the tier schedule")
	ErrApprovalInProgress    = apperror.New(apperror.KindConcurrencyConflict, "approval_in_progress", "consumption is being approved by another request")
	ErrTotalOutOfRange       = apperror.New(apperror.KindConfiguration, "invoice_total_out_of_range", "invoice total exceeds the largest storable amount")
)

// Line is the share of a volume billed by one tier.
type Line struct {
	TierID     snowflake.ID
	Position   int
	VolumeUsed int64
	UnitPrice  decimal.Decimal
	Price      decimal.Decimal
}

// Quote is the priced breakdown of a volume.
type Quote struct {
	Volume int64
	Total  decimal.Decimal
	Lines  []Line
}

// Price fills tiers in ascending order, each up to its own limit. Tiers that
// receive no volume produce no line. A total above tierdomain.MaxAmount is
// rejected; every line is bounded by the total.
func Price(volume int64, schedule tierdomain.Schedule) (Quote, error) {
	if err := schedule.Validate(); err != nil {
		return Quote{}, err
	}
	if volume < 0 {
		return Quote{}, ErrNegativeVolume
	}

	quote := Quote{Volume: volume, Total: decimal.Zero, Lines: []Line{}}
	remaining := volume
	for i, tier := range schedule.Tiers() {
		if remaining <= 0 {
			break
		}
		used := min(remaining, tier.VolumeLimit)
		price := tier.UnitPrice.Mul(decimal.NewFromInt(used)).Round(2)
		quote.Lines = append(quote.Lines, Line{
			TierID:     tier.ID,
			Position:   i,
			VolumeUsed: used,
			UnitPrice:  tier.UnitPrice,
			Price:      price,
		})
		quote.Total = quote.Total.Add(price)
		remaining -= used
	}

	if remaining > 0 {
		return Quote{}, ErrVolumeExceedsCapacity
	}
	if quote.Total.GreaterThan(tierdomain.MaxAmount) {
		return Quote{}, ErrTotalOutOfRange
	}
	return quote, nil
}
