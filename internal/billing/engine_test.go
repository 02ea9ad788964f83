package billing

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/aguas/internal/clock"
	"github.com/smallbiznis/aguas/internal/config"
	identitydomain "github.com/smallbiznis/aguas/internal/identity/domain"
	identityrepo "github.com/smallbiznis/aguas/internal/identity/repository"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/aguas/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/aguas/internal/invoice/service"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	meterrepo "github.com/smallbiznis/aguas/internal/meter/repository"
	meterservice "github.com/smallbiznis/aguas/internal/meter/service"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	tierrepo "github.com/smallbiznis/aguas/internal/tier/repository"
	tierservice "github.com/smallbiznis/aguas/internal/tier/service"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	db      *gorm.DB
	engine  *Engine
	meters  meterdomain.Service
	catalog tierdomain.Catalog
	meterID snowflake.ID
}

func newHarness(t *testing.T, tiers ...tierdomain.CreateRequest) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&identitydomain.User{},
		&tierdomain.Tier{},
		&meterdomain.Meter{},
		&meterdomain.Consumption{},
		&invoicedomain.Invoice{},
		&invoicedomain.TierUsage{},
		&invoicedomain.InvoiceSequence{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 4, 2, 8, 30, 0, 0, time.UTC))
	log := zap.NewNop()

	numberer, err := invoiceservice.NewNumbererWithTemplate("", invoicerepo.Provide())
	require.NoError(t, err)

	meters := meterservice.New(meterservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Repo:     meterrepo.Provide(),
		Users:    identityrepo.Provide(),
		Invoices: invoicerepo.Provide(),
		Numberer: numberer,
	})
	catalog := tierservice.New(tierservice.Params{DB: db, Log: log, GenID: node, Repo: tierrepo.Provide()})
	for _, tier := range tiers {
		_, err := catalog.Create(context.Background(), tier)
		require.NoError(t, err)
	}

	owner := &identitydomain.User{ID: node.Generate(), Email: "customer@mail", FullName: "Joana", Role: identitydomain.RoleCustomer, CreatedAt: fake.Now()}
	require.NoError(t, db.Create(owner).Error)
	meter, err := meters.CreateMeter(context.Background(), meterdomain.CreateMeterRequest{Address: "Rua das Flores", SerialNumber: 2345678, OwnerID: owner.ID})
	require.NoError(t, err)

	engine := NewEngine(Params{
		Log:     log,
		GenID:   node,
		Clock:   fake,
		Meters:  meters,
		Catalog: catalog,
		Billing: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})
	return &harness{db: db, engine: engine, meters: meters, catalog: catalog, meterID: meter.ID}
}

func scenarioTiers() []tierdomain.CreateRequest {
	return []tierdomain.CreateRequest{
		{VolumeLimit: 10, UnitPrice: "2.00"},
		{VolumeLimit: 20, UnitPrice: "1.50"},
		{VolumeLimit: 1000000, UnitPrice: "1.00"},
	}
}

func (h *harness) submit(t *testing.T, volume int64) *meterdomain.Consumption {
	t.Helper()
	c, err := h.meters.SubmitConsumption(context.Background(), meterdomain.SubmitRequest{
		MeterID: h.meterID,
		Date:    time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Volume:  volume,
	})
	require.NoError(t, err)
	return c
}

func (h *harness) invoiceCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&invoicedomain.Invoice{}).Count(&n).Error)
	return n
}

func TestApproveCreatesInvoice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scenarioTiers()...)
	c := h.submit(t, 25)

	detail, err := h.engine.Approve(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, "42.50", detail.Invoice.Price.StringFixed(2))
	assert.Equal(t, int64(25), detail.Invoice.Volume)
	assert.Equal(t, "INV-20240402-000001", detail.Invoice.Number)
	assert.Equal(t, meterdomain.StatusAwaitingPayment, detail.Consumption.Status)
	assert.Equal(t, "Rua das Flores", detail.Meter.Address)

	require.Len(t, detail.Invoice.Usages, 2)
	assert.Equal(t, int64(10), detail.Invoice.Usages[0].VolumeUsed)
	assert.Equal(t, "20.00", detail.Invoice.Usages[0].Price.StringFixed(2))
	assert.Equal(t, int64(15), detail.Invoice.Usages[1].VolumeUsed)
	assert.Equal(t, "22.50", detail.Invoice.Usages[1].Price.StringFixed(2))
	assert.Equal(t, "EUR", detail.Invoice.Metadata["currency"])
}

func TestApproveZeroVolume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scenarioTiers()...)
	c := h.submit(t, 0)

	detail, err := h.engine.Approve(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Invoice.Usages)
	assert.Equal(t, "0.00", detail.Invoice.Price.StringFixed(2))
	assert.Equal(t, meterdomain.StatusAwaitingPayment, detail.Consumption.Status)
	assert.Equal(t, int64(1), h.invoiceCount(t))
}

func TestApproveTwiceFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scenarioTiers()...)
	c := h.submit(t, 12)

	_, err := h.engine.Approve(ctx, c.ID)
	require.NoError(t, err)

	_, err = h.engine.Approve(ctx, c.ID)
	assert.ErrorIs(t, err, meterdomain.ErrAlreadyApproved)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))
	assert.Equal(t, int64(1), h.invoiceCount(t))
}

func TestApproveUnknownConsumption(t *testing.T) {
	h := newHarness(t, scenarioTiers()...)

	_, err := h.engine.Approve(context.Background(), snowflake.ID(99))
	assert.ErrorIs(t, err, meterdomain.ErrConsumptionNotFound)
}

func TestConcurrentApprovalsIssueOneInvoice(t *testing.T) {
	h := newHarness(t, scenarioTiers()...)
	c := h.submit(t, 25)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Approve(context.Background(), c.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	for _, err := range failures {
		assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err), err.Error())
	}
	assert.Equal(t, int64(1), h.invoiceCount(t))
}

func TestInvoiceSurvivesCatalogChanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scenarioTiers()...)
	c := h.submit(t, 25)

	approved, err := h.engine.Approve(ctx, c.ID)
	require.NoError(t, err)

	_, err = h.catalog.Create(ctx, tierdomain.CreateRequest{VolumeLimit: 5, UnitPrice: "9.99"})
	require.NoError(t, err)

	fetched, err := h.meters.GetInvoiceForConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, approved.Invoice.Number, fetched.Invoice.Number)
	assert.Equal(t, "42.50", fetched.Invoice.Price.StringFixed(2))
	require.Len(t, fetched.Invoice.Usages, 2)
	assert.Equal(t, "2.00", fetched.Invoice.Usages[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "1.50", fetched.Invoice.Usages[1].UnitPrice.StringFixed(2))
}

func TestApproveAboveCapacityPersistsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tierdomain.CreateRequest{VolumeLimit: 10, UnitPrice: "1.00"})
	c := h.submit(t, 11)

	_, err := h.engine.Approve(ctx, c.ID)
	assert.ErrorIs(t, err, ErrVolumeExceedsCapacity)
	assert.Equal(t, apperror.KindConfiguration, apperror.KindOf(err))

	stored, err := h.meters.GetConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, meterdomain.StatusPendingApproval, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
	assert.Zero(t, h.invoiceCount(t))
}

func TestApproveWithEmptyCatalog(t *testing.T) {
	h := newHarness(t)
	c := h.submit(t, 3)

	_, err := h.engine.Approve(context.Background(), c.ID)
	assert.ErrorIs(t, err, tierdomain.ErrEmptyCatalog)
	assert.Zero(t, h.invoiceCount(t))
}

func TestApproveWithOpenEndedTopTier(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		tierdomain.CreateRequest{VolumeLimit: 10, UnitPrice: "2.00"},
		tierdomain.CreateRequest{VolumeLimit: math.MaxInt64, UnitPrice: "1.00"},
	)
	c := h.submit(t, 25)

	detail, err := h.engine.Approve(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "35.00", detail.Invoice.Price.StringFixed(2))
	assert.Equal(t, "9223372036854775807", fmt.Sprint(detail.Invoice.Metadata["schedule_capacity"]))
}

func TestApproveTotalBeyondStorableAmountPersistsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, tierdomain.CreateRequest{VolumeLimit: math.MaxInt64, UnitPrice: "1.00"})
	c := h.submit(t, 20000000000)

	_, err := h.engine.Approve(ctx, c.ID)
	assert.ErrorIs(t, err, ErrTotalOutOfRange)
	assert.Equal(t, apperror.KindConfiguration, apperror.KindOf(err))

	stored, err := h.meters.GetConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, meterdomain.StatusPendingApproval, stored.Status)
	assert.Zero(t, h.invoiceCount(t))
}
