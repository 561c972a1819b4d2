// Package dispatch provides the DispatchBatch document.
package dispatch

import (
	"context"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

// DispatchBatch represents one shippable dispatch document against an order.
// Each line becomes a dispatch record in the reconciliation ledger; admission
// control runs per line at creation time.
type DispatchBatch struct {
	entity.Document

	// Order the batch dispatches against
	OrderID id.ID `db:"order_id" json:"orderId"`

	// Carrier tracking reference
	TrackingRef string `db:"tracking_ref" json:"trackingRef,omitempty"`

	// Expected arrival
	ETA *time.Time `db:"eta" json:"eta,omitempty"`

	// Total dispatched quantity (calculated from lines)
	TotalQuantity types.Quantity `db:"total_qty" json:"totalQuantity"`

	// Table part: dispatch records
	Lines []Line `db:"-" json:"lines"`
}

// Line is one dispatch record of the batch.
//
// ReceivedQty and RejectedQty are per-batch receipt visibility maintained by
// the reconciliation engine; they are never written by callers.
type Line struct {
	RecordID id.ID `db:"record_id" json:"recordId"`
	LineNo   int   `db:"line_no" json:"lineNo"`

	// Target order line; LotID nil means unassigned, distributed across
	// lots during recalculation.
	OrderLineID id.ID  `db:"order_line_id" json:"orderLineId"`
	LotID       *id.ID `db:"lot_id" json:"lotId,omitempty"`

	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	ReceivedQty types.Quantity `db:"received_qty" json:"receivedQty"`
	RejectedQty types.Quantity `db:"rejected_qty" json:"rejectedQty"`
}

// NewDispatchBatch creates a new dispatch batch document.
func NewDispatchBatch(orderID id.ID) *DispatchBatch {
	return &DispatchBatch{
		Document: entity.NewDocument(),
		OrderID:  orderID,
		Lines:    make([]Line, 0),
	}
}

// AddLine appends a dispatch record and recalculates the total.
func (d *DispatchBatch) AddLine(orderLineID id.ID, lotID *id.ID, quantity types.Quantity) {
	d.Lines = append(d.Lines, Line{
		RecordID:    id.New(),
		LineNo:      len(d.Lines) + 1,
		OrderLineID: orderLineID,
		LotID:       lotID,
		Quantity:    quantity,
	})
	d.recalculateTotal()
}

// recalculateTotal updates the batch total from lines.
func (d *DispatchBatch) recalculateTotal() {
	d.TotalQuantity = 0
	for _, line := range d.Lines {
		d.TotalQuantity += line.Quantity
	}
}

// OrderLineIDs returns the distinct order lines the batch touches.
func (d *DispatchBatch) OrderLineIDs() []id.ID {
	seen := make(map[id.ID]struct{}, len(d.Lines))
	out := make([]id.ID, 0, len(d.Lines))
	for _, line := range d.Lines {
		if _, ok := seen[line.OrderLineID]; ok {
			continue
		}
		seen[line.OrderLineID] = struct{}{}
		out = append(out, line.OrderLineID)
	}
	return out
}

// Validate implements entity.Validatable.
func (d *DispatchBatch) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(d.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}

	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range d.Lines {
		if id.IsNil(line.OrderLineID) {
			return apperror.NewValidation("order line is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}
