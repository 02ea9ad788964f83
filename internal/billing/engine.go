package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aguas/internal/clock"
	"github.com/smallbiznis/aguas/internal/config"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	"github.com/smallbiznis/aguas/internal/lock"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"github.com/smallbiznis/aguas/internal/observability/logger"
	"github.com/smallbiznis/aguas/internal/observability/metrics"
	"github.com/smallbiznis/aguas/internal/observability/tracing"
	tierdomain "github.com/smallbiznis/aguas/internal/tier/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Meters  meterdomain.Service
	Catalog tierdomain.Catalog
	Billing *config.BillingConfigHolder `optional:"true"`
	Lock    *lock.ApprovalLock          `optional:"true"`
	Metrics *metrics.Metrics            `optional:"true"`
}

type Engine struct {
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	meters  meterdomain.Service
	catalog tierdomain.Catalog
	billing *config.BillingConfigHolder
	lock    *lock.ApprovalLock
	metrics *metrics.Metrics
}

func NewEngine(p Params) *Engine {
	return &Engine{
		log:     p.Log.Named("billing.engine"),
		genID:   p.GenID,
		clock:   p.Clock,
		meters:  p.Meters,
		catalog: p.Catalog,
		billing: p.Billing,
		lock:    p.Lock,
		metrics: p.Metrics,
	}
}

// Approve prices a pending consumption against the current tier snapshot and
// commits the invoice together with the status transition.
func (e *Engine) Approve(ctx context.Context, consumptionID snowflake.ID) (*meterdomain.InvoiceDetail, error) {
	ctx, span := otel.Tracer("aguas/billing").Start(ctx, "billing.approve")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(attribute.String("consumption.id", consumptionID.String()))...)

	detail, err := e.approve(ctx, consumptionID)
	if err != nil {
		safe := tracing.SafeError(err)
		span.RecordError(safe)
		span.SetStatus(codes.Error, safe.Error())
		if apperror.IsKind(err, apperror.KindConcurrencyConflict) || errors.Is(err, meterdomain.ErrAlreadyApproved) {
			e.metrics.RecordApprovalConflict(ctx, apperror.CodeOf(err))
		}
		logger.WithContext(ctx, e.log).Warn("approval rejected",
			zap.String("consumption_id", consumptionID.String()),
			zap.String("kind", string(apperror.KindOf(err))),
			zap.String("code", apperror.CodeOf(err)),
		)
		return nil, err
	}

	e.metrics.RecordInvoiceCreated(ctx, len(detail.Invoice.Usages), detail.Invoice.Volume)
	logger.WithContext(ctx, e.log).Info("invoice created",
		zap.String("consumption_id", consumptionID.String()),
		zap.String("invoice_id", detail.Invoice.ID.String()),
		zap.String("invoice_number", detail.Invoice.Number),
		zap.Int64("volume", detail.Invoice.Volume),
		zap.String("price", detail.Invoice.Price.StringFixed(2)),
		zap.Int("tier_usages", len(detail.Invoice.Usages)),
	)
	return detail, nil
}

func (e *Engine) approve(ctx context.Context, consumptionID snowflake.ID) (*meterdomain.InvoiceDetail, error) {
	release, ok, err := e.lock.Acquire(ctx, consumptionID)
	if err != nil {
		return nil, apperror.Storage(err)
	}
	if !ok {
		return nil, ErrApprovalInProgress
	}
	defer release(context.WithoutCancel(ctx))

	consumption, err := e.meters.GetConsumption(ctx, consumptionID)
	if err != nil {
		return nil, err
	}
	if !consumption.IsPending() {
		return nil, meterdomain.ErrAlreadyApproved
	}

	_, err = e.meters.GetInvoiceForConsumption(ctx, consumptionID)
	switch {
	case err == nil:
		return nil, invoicedomain.ErrAlreadyInvoiced
	case !errors.Is(err, invoicedomain.ErrInvoiceNotFound):
		return nil, err
	}

	schedule, err := e.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	quote, err := Price(consumption.Volume, schedule)
	if err != nil {
		return nil, err
	}

	invoice := e.buildInvoice(consumption, schedule, quote)
	return e.meters.CommitApproval(ctx, consumption, invoice)
}

func (e *Engine) buildInvoice(consumption *meterdomain.Consumption, schedule tierdomain.Schedule, quote Quote) *invoicedomain.Invoice {
	now := e.clock.Now()
	invoice := &invoicedomain.Invoice{
		ID:            e.genID.Generate(),
		ConsumptionID: consumption.ID,
		Price:         quote.Total,
		Volume:        quote.Volume,
		IssuedAt:      now,
		CreatedAt:     now,
		Metadata: datatypes.JSONMap{
			"tier_count":        schedule.Len(),
			"schedule_capacity": schedule.Capacity(),
			"meter_id":          consumption.MeterID.String(),
			"reading_date":      consumption.ReadingDate.Format("2006-01-02"),
		},
		Usages: make([]invoicedomain.TierUsage, 0, len(quote.Lines)),
	}
	if currency := e.currency(); currency != "" {
		invoice.Metadata["currency"] = currency
	}

	for _, line := range quote.Lines {
		invoice.Usages = append(invoice.Usages, invoicedomain.TierUsage{
			ID:         e.genID.Generate(),
			InvoiceID:  invoice.ID,
			TierID:     line.TierID,
			Position:   line.Position,
			VolumeUsed: line.VolumeUsed,
			UnitPrice:  line.UnitPrice,
			Price:      line.Price,
		})
	}
	return invoice
}

func (e *Engine) currency() string {
	if e.billing == nil {
		return ""
	}
	return strings.TrimSpace(e.billing.Get().Currency)
}
