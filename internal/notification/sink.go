// Package notification tells the outside world about issued invoices.
package notification

import (
	"context"

	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"github.com/smallbiznis/aguas/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewLogSink),
)

// Sink receives invoices after the approval transaction has committed.
type Sink interface {
	InvoiceCreated(ctx context.Context, detail meterdomain.InvoiceDetail) error
}

// LogSink writes one structured line per invoice.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) Sink {
	return &LogSink{log: log.Named("notification")}
}

func (s *LogSink) InvoiceCreated(ctx context.Context, detail meterdomain.InvoiceDetail) error {
	logger.WithContext(ctx, s.log).Info("invoice issued",
		zap.String("invoice_id", detail.Invoice.ID.String()),
		zap.String("invoice_number", detail.Invoice.Number),
		zap.String("consumption_id", detail.Consumption.ID.String()),
		zap.String("meter_id", detail.Meter.ID.String()),
		zap.String("owner_id", detail.Meter.OwnerID.String()),
		zap.Int64("volume", detail.Invoice.Volume),
		zap.String("price", detail.Invoice.Price.StringFixed(2)),
	)
	return nil
}
