// Package receipt provides the goods Receipt document.
package receipt

import (
	"context"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// Receipt represents one goods receipt against an order. Each line becomes a
// receipt record in the reconciliation ledger.
type Receipt struct {
	entity.Document

	// Order the goods were received against
	OrderID id.ID `db:"order_id" json:"orderId"`

	// Carrier's delivery note reference
	DeliveryNoteRef string `db:"delivery_note_ref" json:"deliveryNoteRef,omitempty"`

	// Totals (calculated from lines)
	TotalReceived types.Quantity `db:"total_received" json:"totalReceived"`
	TotalRejected types.Quantity `db:"total_rejected" json:"totalRejected"`

	// Table part: receipt records
	Lines []Line `db:"-" json:"lines"`
}

// Line is one receipt record. Received includes rejected goods:
// received = accepted + rejected.
type Line struct {
	RecordID id.ID `db:"record_id" json:"recordId"`
	LineNo   int   `db:"line_no" json:"lineNo"`

	// Target order line; lot and dispatch batch attribution are optional.
	OrderLineID     id.ID  `db:"order_line_id" json:"orderLineId"`
	LotID           *id.ID `db:"lot_id" json:"lotId,omitempty"`
	DispatchBatchID *id.ID `db:"dispatch_batch_id" json:"dispatchBatchId,omitempty"`

	ReceivedQty types.Quantity `db:"received_qty" json:"receivedQty"`
	RejectedQty types.Quantity `db:"rejected_qty" json:"rejectedQty"`
}

// NewReceipt creates a new receipt document.
func NewReceipt(orderID id.ID) *Receipt {
	return &Receipt{
		Document: entity.NewDocument(),
		OrderID:  orderID,
		Lines:    make([]Line, 0),
	}
}

// AddLine appends a receipt record and recalculates totals.
func (r *Receipt) AddLine(orderLineID id.ID, lotID, batchID *id.ID, received, rejected types.Quantity) {
	r.Lines = append(r.Lines, Line{
		RecordID:        id.New(),
		LineNo:          len(r.Lines) + 1,
		OrderLineID:     orderLineID,
		LotID:           lotID,
		DispatchBatchID: batchID,
		ReceivedQty:     received,
		RejectedQty:     rejected,
	})
	r.recalculateTotals()
}

// recalculateTotals updates document totals from lines.
func (r *Receipt) recalculateTotals() {
	r.TotalReceived = 0
	r.TotalRejected = 0
	for _, line := range r.Lines {
		r.TotalReceived += line.ReceivedQty
		r.TotalRejected += line.RejectedQty
	}
}

// Validate implements entity.Validatable.
// Quantity-level validation (positive received, rejected within received)
// belongs to the reconciliation engine, which sees every record regardless of
// how it arrived.
func (r *Receipt) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(r.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}

	if len(r.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	return nil
}
