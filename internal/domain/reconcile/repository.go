package reconcile

import (
	"context"
	"time"

	"procura/internal/core/id"
	"procura/internal/core/types"
)

// Exclusion names one event whose records the recalculation must ignore.
// Used to compute "as if this event did not exist" before a physical delete:
// the algorithm reads from the same rows it is about to lose, so the
// simulation has to run while they still exist.
type Exclusion struct {
	// DispatchBatchID excludes all dispatch records of this batch.
	DispatchBatchID id.ID
	// ReceiptID excludes all receipt records of this receipt.
	ReceiptID id.ID
}

// IsZero reports whether no event is excluded.
func (e Exclusion) IsZero() bool {
	return id.IsNil(e.DispatchBatchID) && id.IsNil(e.ReceiptID)
}

// ExcludeDispatchBatch builds an exclusion for a doomed dispatch batch.
func ExcludeDispatchBatch(batchID id.ID) Exclusion {
	return Exclusion{DispatchBatchID: batchID}
}

// ExcludeReceipt builds an exclusion for a doomed receipt.
func ExcludeReceipt(receiptID id.ID) Exclusion {
	return Exclusion{ReceiptID: receiptID}
}

// Line is the engine's view of an order line ledger row.
type Line struct {
	ID            id.ID           `db:"id"`
	OrderID       id.ID           `db:"order_id"`
	PromisedQty   types.Quantity  `db:"promised_qty"`
	DispatchedQty types.Quantity  `db:"dispatched_qty"`
	ReceivedQty   types.Quantity  `db:"received_qty"`
	RejectedQty   types.Quantity  `db:"rejected_qty"`
	OverrideQty   *types.Quantity `db:"override_dispatched_qty"`
}

// Lot is the engine's view of a delivery lot ledger row.
type Lot struct {
	ID            id.ID           `db:"id"`
	OrderLineID   id.ID           `db:"order_line_id"`
	LotNo         int             `db:"lot_no"`
	PromisedQty   types.Quantity  `db:"promised_qty"`
	DispatchedQty types.Quantity  `db:"dispatched_qty"`
	ReceivedQty   types.Quantity  `db:"received_qty"`
	OverrideQty   *types.Quantity `db:"override_dispatched_qty"`
}

// Totals aggregates dispatch/receipt quantities over a set of records.
type Totals struct {
	Dispatched types.Quantity
	Received   types.Quantity
	Rejected   types.Quantity
}

// LotDispatch is one dispatch record against a lot, with its batch ordering key.
type LotDispatch struct {
	RecordID       id.ID          `db:"id"`
	BatchID        id.ID          `db:"batch_id"`
	Dispatched     types.Quantity `db:"quantity"`
	BatchCreatedAt time.Time      `db:"batch_created_at"`
}

// DispatchInsert is a dispatch record to be admitted into the ledger.
type DispatchInsert struct {
	RecordID    id.ID
	BatchID     id.ID
	OrderLineID id.ID
	// LotID is nil for lot-unassigned dispatch; the recalculation distributes
	// it across lots.
	LotID    *id.ID
	Quantity types.Quantity
}

// ReceiptInsert is a receipt record to be ingested into the ledger.
type ReceiptInsert struct {
	RecordID    id.ID
	ReceiptID   id.ID
	OrderLineID id.ID
	LotID       *id.ID
	// DispatchBatchID links the receipt back to the physical shipment, when known.
	DispatchBatchID *id.ID
	ReceivedQty     types.Quantity
	RejectedQty     types.Quantity
}

// Repository is the storage contract the engine folds over.
//
// Every method must run against the caller's transaction; the engine performs
// no transaction management of its own.
type Repository interface {
	// GetLineForUpdate fetches an order line ledger row with a row lock.
	GetLineForUpdate(ctx context.Context, lineID id.ID) (*Line, error)

	// ListLots returns the line's lots ordered by lot number ascending.
	ListLots(ctx context.Context, lineID id.ID) ([]Lot, error)

	// SharedTotals sums live records for the line that carry no lot reference.
	SharedTotals(ctx context.Context, lineID id.ID, excl Exclusion) (Totals, error)

	// DirectTotals sums live records that explicitly reference the lot.
	DirectTotals(ctx context.Context, lotID id.ID, excl Exclusion) (Totals, error)

	// RejectedTotal sums rejected quantity recorded against the line.
	RejectedTotal(ctx context.Context, lineID id.ID, excl Exclusion) (types.Quantity, error)

	// InvoiceSignal returns the invoiced quantity for a line or lot.
	// Invoicing something proves it was at least dispatched and received.
	InvoiceSignal(ctx context.Context, lineID id.ID, lotID *id.ID) (types.Quantity, error)

	// ListLotDispatches returns live dispatch records against the lot, ordered
	// by batch creation time ascending.
	ListLotDispatches(ctx context.Context, lotID id.ID, excl Exclusion) ([]LotDispatch, error)

	// SaveLotQuantities persists a lot's recalculated dispatched/received.
	SaveLotQuantities(ctx context.Context, lot *Lot) error

	// SaveLineQuantities persists a line's recalculated quantities.
	SaveLineQuantities(ctx context.Context, line *Line) error

	// SaveRecordReceipt persists per-batch receipt visibility on a dispatch record.
	SaveRecordReceipt(ctx context.Context, recordID id.ID, received, rejected types.Quantity) error

	// InsertDispatchRecord inserts a dispatch record if and only if the target
	// lot (or line, for unassigned records) has remaining capacity. The
	// implementation must serialize admissions per target, locking the
	// capacity-bearing row in the caller's transaction before the check, so
	// that two concurrent admissions cannot both pass against the same
	// remaining capacity. On capacity violation it returns an
	// INSUFFICIENT_CAPACITY business rule error.
	InsertDispatchRecord(ctx context.Context, rec DispatchInsert) error

	// InsertReceiptRecords batch inserts receipt records.
	InsertReceiptRecords(ctx context.Context, recs []ReceiptInsert) error

	// LineIDsByOrder returns all line ids of an order, in line order.
	LineIDsByOrder(ctx context.Context, orderID id.ID) ([]id.ID, error)

	// LineIDsByDispatchBatch returns the distinct lines a batch touches.
	LineIDsByDispatchBatch(ctx context.Context, batchID id.ID) ([]id.ID, error)

	// LineIDsByReceipt returns the distinct lines a receipt touches.
	LineIDsByReceipt(ctx context.Context, receiptID id.ID) ([]id.ID, error)

	// HasReceiptsForBatch reports whether any receipt references the batch.
	HasReceiptsForBatch(ctx context.Context, batchID id.ID) (bool, error)

	// LockOrder takes a row lock on the order, the lock scope for bulk sync.
	LockOrder(ctx context.Context, orderID id.ID) error
}
