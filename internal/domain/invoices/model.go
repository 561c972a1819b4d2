// Package invoices provides invoice line signals.
//
// Invoiced quantities are a read signal for the reconciliation engine: an
// invoiced quantity proves the goods were at least dispatched. The engine
// never mutates invoice data; this package owns its lifecycle.
package invoices

import (
	"context"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// Signal is one invoiced quantity against an order line, optionally pinned to
// a lot.
type Signal struct {
	ID id.ID `db:"id" json:"id"`

	// Supplier invoice reference
	InvoiceNumber string    `db:"invoice_number" json:"invoiceNumber"`
	InvoiceDate   time.Time `db:"invoice_date" json:"invoiceDate"`

	OrderLineID id.ID  `db:"order_line_id" json:"orderLineId"`
	LotID       *id.ID `db:"lot_id" json:"lotId,omitempty"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Amount   types.Money    `db:"amount" json:"amount"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewSignal creates an invoice line signal.
func NewSignal(invoiceNumber string, orderLineID id.ID, quantity types.Quantity) *Signal {
	return &Signal{
		ID:            id.New(),
		InvoiceNumber: invoiceNumber,
		InvoiceDate:   time.Now().UTC(),
		OrderLineID:   orderLineID,
		Quantity:      quantity,
		Amount:        types.ZeroMoney(),
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks the signal.
func (sig *Signal) Validate(ctx context.Context) error {
	if sig.InvoiceNumber == "" {
		return apperror.NewValidation("invoice number is required").
			WithDetail("field", "invoiceNumber")
	}
	if id.IsNil(sig.OrderLineID) {
		return apperror.NewValidation("order line is required").
			WithDetail("field", "orderLineId")
	}
	if !sig.Quantity.IsPositive() {
		return apperror.NewValidation("invoiced quantity must be positive").
			WithDetail("invoice_number", sig.InvoiceNumber)
	}
	return nil
}
