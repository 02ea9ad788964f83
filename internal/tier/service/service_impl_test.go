package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	"github.com/smallbiznis/aguas/internal/tier/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupCatalog(t *testing.T) tierdomain.Catalog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&tierdomain.Tier{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})
}

func TestCreateKeepsScheduleOrdered(t *testing.T) {
	ctx := context.Background()
	catalog := setupCatalog(t)

	for _, req := range []tierdomain.CreateRequest{
		{VolumeLimit: 1000000, UnitPrice: "1.00"},
		{VolumeLimit: 10, UnitPrice: "2.00"},
		{VolumeLimit: 20, UnitPrice: "1.5"},
	} {
		_, err := catalog.Create(ctx, req)
		require.NoError(t, err)
	}

	schedule, err := catalog.Snapshot(ctx)
	require.NoError(t, err)
	require.NoError(t, schedule.Validate())

	tiers := schedule.Tiers()
	require.Len(t, tiers, 3)
	assert.Equal(t, []int64{10, 20, 1000000}, []int64{tiers[0].VolumeLimit, tiers[1].VolumeLimit, tiers[2].VolumeLimit})
	assert.Equal(t, "1.50", tiers[1].UnitPrice.StringFixed(2))

	listed, err := catalog.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.00", listed[0].UnitPrice)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	catalog := setupCatalog(t)

	_, err := catalog.Create(ctx, tierdomain.CreateRequest{VolumeLimit: 0, UnitPrice: "1"})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidLimit)

	_, err = catalog.Create(ctx, tierdomain.CreateRequest{VolumeLimit: 5, UnitPrice: "-1"})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidUnitPrice)

	_, err = catalog.Create(ctx, tierdomain.CreateRequest{VolumeLimit: 5, UnitPrice: "abc"})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidUnitPrice)

	_, err = catalog.Create(ctx, tierdomain.CreateRequest{VolumeLimit: 5, UnitPrice: "9999999999.995"})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidUnitPrice)

	_, err = catalog.Create(ctx, tierdomain.CreateRequest{VolumeLimit: 5, UnitPrice: "1"})
	require.NoError(t, err)
	_, err = catalog.Create(ctx, tierdomain.CreateRequest{VolumeLimit: 5, UnitPrice: "2"})
	assert.ErrorIs(t, err, tierdomain.ErrDuplicateLimit)
}

func TestSyncFromConfigOnlySeedsEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := setupCatalog(t)

	cfg := []tierdomain.CreateRequest{
		{VolumeLimit: 5, UnitPrice: "0.30"},
		{VolumeLimit: 15, UnitPrice: "0.80"},
	}

	inserted, err := catalog.SyncFromConfig(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	inserted, err = catalog.SyncFromConfig(ctx, []tierdomain.CreateRequest{{VolumeLimit: 100, UnitPrice: "9"}})
	require.NoError(t, err)
	assert.Zero(t, inserted)

	schedule, err := catalog.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), schedule.Capacity())
}

func TestSyncFromConfigRejectsBrokenSchedule(t *testing.T) {
	catalog := setupCatalog(t)

	_, err := catalog.SyncFromConfig(context.Background(), []tierdomain.CreateRequest{
		{VolumeLimit: 10, UnitPrice: "1"},
		{VolumeLimit: 5, UnitPrice: "1"},
	})
	assert.ErrorIs(t, err, tierdomain.ErrInvalidSchedule)

	_, err = catalog.SyncFromConfig(context.Background(), nil)
	assert.ErrorIs(t, err, tierdomain.ErrEmptyCatalog)
}

func TestEmptySnapshotFailsValidation(t *testing.T) {
	schedule, err := setupCatalog(t).Snapshot(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, schedule.Validate(), tierdomain.ErrEmptyCatalog)
}
