package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aguas/internal/accessscope"
	invoicedomain "github.com/smallbiznis/aguas/internal/invoice/domain"
	"github.com/smallbiznis/aguas/pkg/apperror"
)

// Service is the consumption store: meters, readings and their invoices.
type Service interface {
	ListMetersFor(ctx context.Context, scope accessscope.Scope) ([]MeterView, error)
	GetMeter(ctx context.Context, id snowflake.ID) (*MeterView, error)
	GetMeterWithConsumptions(ctx context.Context, id snowflake.ID) (*MeterDetail, error)
	CreateMeter(ctx context.Context, req CreateMeterRequest) (*MeterView, error)
	DeleteMeter(ctx context.Context, id snowflake.ID) error

	ListConsumptionsFor(ctx context.Context, scope accessscope.Scope) ([]ConsumptionView, error)
	GetConsumption(ctx context.Context, id snowflake.ID) (*Consumption, error)
	SubmitConsumption(ctx context.Context, req SubmitRequest) (*Consumption, error)
	UpdateConsumption(ctx context.Context, req UpdateRequest) (*Consumption, error)
	DeleteConsumption(ctx context.Context, id snowflake.ID) (snowflake.ID, error)

	GetInvoiceForConsumption(ctx context.Context, consumptionID snowflake.ID) (*InvoiceDetail, error)
	// CommitApproval flips consumption to AwaitingPayment and stores invoice in one
	// transaction. invoice.Number is assigned here.
	CommitApproval(ctx context.Context, consumption *Consumption, invoice *invoicedomain.Invoice) (*InvoiceDetail, error)
}

type CreateMeterRequest struct {
	Address      string       `json:"address"`
	SerialNumber int64        `json:"serial_number"`
	OwnerID      snowflake.ID `json:"owner_id"`
}

type SubmitRequest struct {
	MeterID snowflake.ID
	Date    time.Time
	Volume  int64
}

// UpdateRequest edits a pending reading. A zero MeterID keeps the stored meter;
// a zero Version means the current version.
type UpdateRequest struct {
	ID      snowflake.ID
	MeterID snowflake.ID
	Date    time.Time
	Volume  int64
	Version int64
}

// InvoiceDetail is an invoice with its ordered usages, the consumption it bills and its meter.
type InvoiceDetail struct {
	Invoice     invoicedomain.Invoice `json:"invoice"`
	Consumption Consumption           `json:"consumption"`
	Meter       MeterView             `json:"meter"`
}

var (
	ErrInvalidID              = apperror.New(apperror.KindValidation, "invalid_id", "invalid id")
	ErrMeterNotFound          = apperror.New(apperror.KindNotFound, "meter_not_found", "meter not found")
	ErrConsumptionNotFound    = apperror.New(apperror.KindNotFound, "consumption_not_found", "consumption not found")
	ErrInvalidVolume          = apperror.New(apperror.KindValidation, "invalid_volume", "volume must not be negative")
	ErrInvalidReadingDate     = apperror.New(apperror.KindValidation, "invalid_reading_date", "reading date is required")
	ErrMeterMismatch          = apperror.New(apperror.KindValidation, "meter_mismatch", "a reading cannot be moved to another meter")
	ErrNotPending             = apperror.New(apperror.KindInvalidState, "consumption_not_pending", "only readings awaiting approval can change")
	ErrAlreadyApproved        = apperror.New(apperror.KindInvalidState, "consumption_already_approved", "consumption was already approved")
	ErrConcurrentModification = apperror.New(apperror.KindConcurrencyConflict, "consumption_modified", "consumption was modified concurrently")
	ErrMeterHasConsumptions   = apperror.New(apperror.KindInvalidState, "meter_has_consumptions", "a meter with readings cannot be deleted")
	ErrInvalidAddress         = apperror.New(apperror.KindValidation, "invalid_address", "address is required")
	ErrInvalidSerialNumber    = apperror.New(apperror.KindValidation, "invalid_serial_number", "serial number must be positive")
	ErrDuplicateSerialNumber  = apperror.New(apperror.KindValidation, "duplicate_serial_number", "serial number already registered")
	ErrOwnerNotFound          = apperror.New(apperror.KindValidation, "owner_not_found", "owner does not exist")
)

func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
