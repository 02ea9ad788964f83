package domain

import "github.com/smallbiznis/aguas/pkg/apperror"

var (
	ErrInvoiceNotFound    = apperror.New(apperror.KindNotFound, "invoice_not_found", "no invoice for this consumption")
	ErrAlreadyInvoiced    = apperror.New(apperror.KindInvalidState, "consumption_already_invoiced", "consumption already has an invoice")
	ErrSequenceContended  = apperror.New(apperror.KindConcurrencyConflict, "invoice_sequence_contended", "invoice sequence was initialized concurrently")
	ErrInvalidNumberTempl = apperror.New(apperror.KindConfiguration, "invalid_invoice_number_template", "invoice number template is invalid")
)
