package billing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedule(pairs ...any) tierdomain.Schedule {
	tiers := make([]tierdomain.Tier, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		tiers = append(tiers, tierdomain.Tier{
			ID:          snowflake.ID(i/2 + 1),
			VolumeLimit: int64(pairs[i].(int)),
			UnitPrice:   decimal.RequireFromString(pairs[i+1].(string)),
		})
	}
	return tierdomain.NewSchedule(tiers)
}

func TestPriceFillsTiersInOrder(t *testing.T) {
	quote, err := Price(25, schedule(10, "2.00", 20, "1.50", 1000000, "1.00"))
	require.NoError(t, err)

	assert.Equal(t, "42.50", quote.Total.StringFixed(2))
	require.Len(t, quote.Lines, 2)

	assert.Equal(t, snowflake.ID(1), quote.Lines[0].TierID)
	assert.Equal(t, int64(10), quote.Lines[0].VolumeUsed)
	assert.Equal(t, "20.00", quote.Lines[0].Price.StringFixed(2))

	assert.Equal(t, snowflake.ID(2), quote.Lines[1].TierID)
	assert.Equal(t, int64(15), quote.Lines[1].VolumeUsed)
	assert.Equal(t, "1.50", quote.Lines[1].UnitPrice.StringFixed(2))
	assert.Equal(t, "22.50", quote.Lines[1].Price.StringFixed(2))
	assert.Equal(t, 1, quote.Lines[1].Position)
}

func TestPriceZeroVolume(t *testing.T) {
	quote, err := Price(0, schedule(10, "2.00"))
	require.NoError(t, err)
	assert.Empty(t, quote.Lines)
	assert.True(t, quote.Total.IsZero())
	assert.Equal(t, "0.00", quote.Total.StringFixed(2))
}

func TestPriceExactTierBoundary(t *testing.T) {
	quote, err := Price(10, schedule(10, "2.00", 20, "1.50"))
	require.NoError(t, err)
	require.Len(t, quote.Lines, 1)
	assert.Equal(t, "20.00", quote.Total.StringFixed(2))

	quote, err = Price(30, schedule(10, "2.00", 20, "1.50"))
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, "50.00", quote.Total.StringFixed(2))
}

func TestPriceRejectsBadInput(t *testing.T) {
	_, err := Price(-1, schedule(10, "2.00"))
	assert.ErrorIs(t, err, ErrNegativeVolume)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = Price(5, tierdomain.NewSchedule(nil))
	assert.ErrorIs(t, err, tierdomain.ErrEmptyCatalog)
	assert.Equal(t, apperror.KindConfiguration, apperror.KindOf(err))

	_, err = Price(5, schedule(20, "1.00", 10, "2.00"))
	assert.ErrorIs(t, err, tierdomain.ErrInvalidSchedule)

	_, err = Price(31, schedule(10, "2.00", 20, "1.50"))
	assert.ErrorIs(t, err, ErrVolumeExceedsCapacity)
	assert.Equal(t, apperror.KindConfiguration, apperror.KindOf(err))
}

func TestPriceLinesAddUpToTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		n := 1 + rng.Intn(5)
		tiers := make([]tierdomain.Tier, 0, n)
		var limit int64
		for i := 0; i < n; i++ {
			limit += 1 + rng.Int63n(50)
			tiers = append(tiers, tierdomain.Tier{
				ID:          snowflake.ID(i + 1),
				VolumeLimit: limit,
				UnitPrice:   decimal.New(rng.Int63n(500), -2),
			})
		}
		s := tierdomain.NewSchedule(tiers)
		volume := rng.Int63n(s.Capacity() + 1)

		quote, err := Price(volume, s)
		require.NoError(t, err)

		sum := decimal.Zero
		var used int64
		for _, line := range quote.Lines {
			assert.Positive(t, line.VolumeUsed)
			sum = sum.Add(line.Price)
			used += line.VolumeUsed
		}
		assert.True(t, sum.Equal(quote.Total), "run %d: %s != %s", run, sum, quote.Total)
		assert.Equal(t, volume, used, "run %d", run)
	}
}

func TestPriceBoundsTotalToStorableAmount(t *testing.T) {
	open := tierdomain.NewSchedule([]tierdomain.Tier{
		{ID: 1, VolumeLimit: 10, UnitPrice: decimal.RequireFromString("2.00")},
		{ID: 2, VolumeLimit: math.MaxInt64, UnitPrice: decimal.RequireFromString("1.00")},
	})

	quote, err := Price(9999999989, open)
	require.NoError(t, err)
	assert.Equal(t, "9999999999.00", quote.Total.StringFixed(2))

	_, err = Price(10000000000, open)
	assert.ErrorIs(t, err, ErrTotalOutOfRange)
	assert.Equal(t, apperror.KindConfiguration, apperror.KindOf(err))

	_, err = Price(math.MaxInt64, open)
	assert.ErrorIs(t, err, ErrTotalOutOfRange)
}
