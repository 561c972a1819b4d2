// Package reports provides read-only fulfillment reporting.
package reports

import (
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reconcile"
)

// FulfillmentFilter narrows the fulfillment report.
type FulfillmentFilter struct {
	SupplierID *id.ID
	OrderID    *id.ID
	DateFrom   *time.Time
	DateTo     *time.Time

	// Status keeps only lines in the given derived status.
	Status *reconcile.Status

	Limit  int
	Offset int
}

// FulfillmentRow is one order line in the fulfillment report.
type FulfillmentRow struct {
	OrderID     id.ID  `db:"order_id" json:"orderId"`
	OrderNumber string `db:"order_number" json:"orderNumber"`
	OrderDate   time.Time `db:"order_date" json:"orderDate"`
	SupplierID  id.ID  `db:"supplier_id" json:"supplierId"`

	LineID id.ID  `db:"line_id" json:"lineId"`
	LineNo int    `db:"line_no" json:"lineNo"`
	SKU    string `db:"sku" json:"sku"`

	PromisedQty   types.Quantity `db:"promised_qty" json:"promisedQty"`
	DispatchedQty types.Quantity `db:"dispatched_qty" json:"dispatchedQty"`
	ReceivedQty   types.Quantity `db:"received_qty" json:"receivedQty"`
	RejectedQty   types.Quantity `db:"rejected_qty" json:"rejectedQty"`

	// OutstandingQty = promised - received, floored at zero.
	OutstandingQty types.Quantity `db:"outstanding_qty" json:"outstandingQty"`

	// Status is derived, never read from storage.
	Status reconcile.Status `db:"-" json:"status"`
}

// FulfillmentReport is the report envelope.
type FulfillmentReport struct {
	Rows       []FulfillmentRow `json:"rows"`
	TotalCount int64            `json:"totalCount"`

	// Aggregates over the whole filtered set, not just the page.
	TotalPromised   types.Quantity `json:"totalPromised"`
	TotalDispatched types.Quantity `json:"totalDispatched"`
	TotalReceived   types.Quantity `json:"totalReceived"`
	TotalRejected   types.Quantity `json:"totalRejected"`

	GeneratedAt time.Time `json:"generatedAt"`
}
