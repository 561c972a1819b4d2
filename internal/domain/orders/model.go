// Package orders provides the supply contract Order aggregate.
package orders

import (
	"context"
	"time"

	"procura/internal/core/apperror"
	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reconcile"
)

// Order represents a confirmed supply contract order.
// It is the root the reconciliation ledger hangs off: each line carries
// promised/dispatched/received quantities and owns one or more delivery lots.
type Order struct {
	entity.Document

	// Supplier reference
	SupplierID id.ID `db:"supplier_id" json:"supplierId"`

	// Supplier's own order/contract reference
	SupplierRef string `db:"supplier_ref" json:"supplierRef,omitempty"`

	// Currency
	Currency string `db:"currency" json:"currency"`

	// TotalAmount is calculated from lines
	TotalAmount types.Money `db:"total_amount" json:"totalAmount"`

	// Table part: order lines with their lots
	Lines []Line `db:"-" json:"lines"`
}

// Line represents one order line.
//
// DispatchedQty, ReceivedQty and RejectedQty are owned by the reconciliation
// engine; callers never set them directly. OverrideQty is the one exception:
// an explicit user action that may raise the reported dispatch.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	// Product identification
	SKU         string `db:"sku" json:"sku"`
	Description string `db:"description" json:"description,omitempty"`

	// Quantities
	PromisedQty   types.Quantity  `db:"promised_qty" json:"promisedQty"`
	DispatchedQty types.Quantity  `db:"dispatched_qty" json:"dispatchedQty"`
	ReceivedQty   types.Quantity  `db:"received_qty" json:"receivedQty"`
	RejectedQty   types.Quantity  `db:"rejected_qty" json:"rejectedQty"`
	OverrideQty   *types.Quantity `db:"override_qty" json:"overrideQty,omitempty"`

	// Pricing
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	Amount    types.Money `db:"amount" json:"amount"`

	// Status is derived on read, never stored
	Status reconcile.Status `db:"-" json:"status"`

	// Delivery schedule
	Lots []Lot `db:"-" json:"lots"`
}

// Lot is one delivery schedule entry of an order line.
type Lot struct {
	LotID       id.ID `db:"lot_id" json:"lotId"`
	OrderLineID id.ID `db:"order_line_id" json:"orderLineId"`
	LotNo       int   `db:"lot_no" json:"lotNo"`

	PromisedQty   types.Quantity  `db:"promised_qty" json:"promisedQty"`
	DispatchedQty types.Quantity  `db:"dispatched_qty" json:"dispatchedQty"`
	ReceivedQty   types.Quantity  `db:"received_qty" json:"receivedQty"`
	OverrideQty   *types.Quantity `db:"override_qty" json:"overrideQty,omitempty"`

	DueDate *time.Time `db:"due_date" json:"dueDate,omitempty"`
}

// NewOrder creates a new order document.
func NewOrder(supplierID id.ID) *Order {
	return &Order{
		Document:    entity.NewDocument(),
		SupplierID:  supplierID,
		Currency:    "EUR",
		TotalAmount: types.ZeroMoney(),
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a line to the order and recalculates the total.
func (o *Order) AddLine(sku string, promised types.Quantity, unitPrice types.Money) *Line {
	line := Line{
		LineID:      id.New(),
		LineNo:      len(o.Lines) + 1,
		SKU:         sku,
		PromisedQty: promised,
		UnitPrice:   unitPrice,
		Amount:      unitPrice.Mul(types.NewMoney(promised.Float64())),
	}
	o.Lines = append(o.Lines, line)
	o.recalculateTotal()
	return &o.Lines[len(o.Lines)-1]
}

// AddLot appends a delivery lot to the line.
func (l *Line) AddLot(promised types.Quantity, dueDate *time.Time) {
	l.Lots = append(l.Lots, Lot{
		LotID:       id.New(),
		OrderLineID: l.LineID,
		LotNo:       len(l.Lots) + 1,
		PromisedQty: promised,
		DueDate:     dueDate,
	})
}

// recalculateTotal updates the order total from lines.
func (o *Order) recalculateTotal() {
	total := types.ZeroMoney()
	for _, line := range o.Lines {
		total = total.Add(line.Amount)
	}
	o.TotalAmount = total
}

// EnsureLots guarantees every line has at least one lot. A line ingested
// without an explicit delivery schedule gets a single lot covering the whole
// promised quantity.
func (o *Order) EnsureLots() {
	for i := range o.Lines {
		line := &o.Lines[i]
		if len(line.Lots) == 0 {
			line.AddLot(line.PromisedQty, nil)
		}
		for j := range line.Lots {
			lot := &line.Lots[j]
			if id.IsNil(lot.LotID) {
				lot.LotID = id.New()
			}
			lot.OrderLineID = line.LineID
			lot.LotNo = j + 1
		}
	}
}

// DeriveStatuses fills the derived status on every line. The order-level
// status uses the same deriver over summed quantities.
func (o *Order) DeriveStatuses() {
	for i := range o.Lines {
		line := &o.Lines[i]
		line.Status = reconcile.DeriveStatus(line.PromisedQty, line.DispatchedQty, line.ReceivedQty)
	}
}

// Status returns the aggregated order status.
func (o *Order) Status() reconcile.Status {
	var promised, dispatched, received types.Quantity
	for _, line := range o.Lines {
		promised += line.PromisedQty
		dispatched += line.DispatchedQty
		received += line.ReceivedQty
	}
	return reconcile.DeriveStatus(promised, dispatched, received)
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(o.SupplierID) {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplierId")
	}

	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range o.Lines {
		if line.SKU == "" {
			return apperror.NewValidation("sku is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.PromisedQty.IsPositive() {
			return apperror.NewValidation("promised quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		for j, lot := range line.Lots {
			if !lot.PromisedQty.IsPositive() {
				return apperror.NewValidation("lot promised quantity must be positive").
					WithDetail("lineNo", i+1).
					WithDetail("lotNo", j+1)
			}
		}
	}

	return nil
}
