package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	"github.com/smallbiznis/aguas/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.TierUsage{},
		&invoicedomain.InvoiceSequence{},
	))
	return conn
}

func sampleInvoice(id, consumptionID snowflake.ID, number string) *invoicedomain.Invoice {
	now := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	return &invoicedomain.Invoice{
		ID:            id,
		Number:        number,
		ConsumptionID: consumptionID,
		Price:         decimal.RequireFromString("42.50"),
		Volume:        25,
		Metadata:      datatypes.JSONMap{"tier_count": 2},
		IssuedAt:      now,
		CreatedAt:     now,
		Usages: []invoicedomain.TierUsage{
			{ID: id*10 + 2, TierID: 2, Position: 1, VolumeUsed: 15, UnitPrice: decimal.RequireFromString("1.50"), Price: decimal.RequireFromString("22.50")},
			{ID: id*10 + 1, TierID: 1, Position: 0, VolumeUsed: 10, UnitPrice: decimal.RequireFromString("2.00"), Price: decimal.RequireFromString("20.00")},
		},
	}
}

func TestInsertAndFindByConsumption(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	repo := Provide()

	require.NoError(t, repo.Insert(ctx, conn, sampleInvoice(1, 100, "INV-1")))

	found, err := repo.FindByConsumption(ctx, conn, 100)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "INV-1", found.Number)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("42.50")))
	require.Len(t, found.Usages, 2)
	assert.Equal(t, 0, found.Usages[0].Position)
	assert.Equal(t, int64(10), found.Usages[0].VolumeUsed)

	exists, err := repo.ExistsForConsumption(ctx, conn, 100)
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := repo.FindByConsumption(ctx, conn, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSecondInvoiceForConsumptionIsRejected(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	repo := Provide()

	require.NoError(t, repo.Insert(ctx, conn, sampleInvoice(1, 100, "INV-1")))
	err := repo.Insert(ctx, conn, sampleInvoice(2, 100, "INV-2"))
	require.Error(t, err)
	assert.True(t, db.IsDuplicateKeyErr(err))
}

func TestNextSequenceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	conn := setupDB(t)
	repo := Provide()

	var got []int64
	for i := 0; i < 3; i++ {
		err := conn.Transaction(func(tx *gorm.DB) error {
			seq, err := repo.NextSequence(ctx, tx, invoicedomain.DefaultSequence)
			got = append(got, seq)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}
