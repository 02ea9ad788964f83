package notification

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSinkWritesInvoiceLine(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	err := sink.InvoiceCreated(context.Background(), meterdomain.InvoiceDetail{
		Invoice: invoicedomain.Invoice{
			ID:     11,
			Number: "INV-20240402-000001",
			Price:  decimal.RequireFromString("42.5"),
			Volume: 25,
		},
		Consumption: meterdomain.Consumption{ID: 22},
		Meter:       meterdomain.MeterView{ID: 33, OwnerID: 44},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("invoice issued").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "INV-20240402-000001", fields["invoice_number"])
	assert.Equal(t, "42.50", fields["price"])
	assert.Equal(t, "22", fields["consumption_id"])
	assert.Equal(t, int64(25), fields["volume"])
}
