// Package reconcile implements the quantity reconciliation engine.
//
// The engine keeps one consistent picture of how much of each order line has
// effectively moved, merging dispatch events, receipt events, invoice signals
// and manual overrides into per-lot and per-line dispatched/received figures.
// It runs synchronously inside the caller's transaction and never manages
// transactions itself.
package reconcile

import (
	"context"
	"fmt"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/pkg/logger"
)

// Engine recomputes ledger state from dispatch/receipt events.
type Engine struct {
	repo Repository
}

// NewEngine creates a reconciliation engine over the given storage.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// AdmitDispatch inserts a dispatch record under admission control.
// The capacity check and the insert are a single atomic storage statement;
// a capacity violation surfaces as INSUFFICIENT_CAPACITY and must abort the
// caller's whole batch.
func (e *Engine) AdmitDispatch(ctx context.Context, rec DispatchInsert) error {
	if id.IsNil(rec.OrderLineID) {
		return apperror.NewValidation("order line is required").
			WithDetail("field", "orderLineId")
	}
	if !rec.Quantity.IsPositive() {
		return apperror.NewValidation("dispatch quantity must be positive").
			WithDetail("order_line_id", rec.OrderLineID)
	}
	if id.IsNil(rec.RecordID) {
		rec.RecordID = id.New()
	}
	return e.repo.InsertDispatchRecord(ctx, rec)
}

// OnDispatchCreated recalculates every order line touched by a new batch.
// Admission control has already run per record via AdmitDispatch.
func (e *Engine) OnDispatchCreated(ctx context.Context, lineIDs []id.ID, batchID id.ID) error {
	for _, lineID := range distinct(lineIDs) {
		if err := e.RecalculateLine(ctx, lineID, Exclusion{}); err != nil {
			return fmt.Errorf("recalculate line %s: %w", lineID, err)
		}
	}
	logger.Debug(ctx, "dispatch batch reconciled", "batch_id", batchID, "lines", len(lineIDs))
	return nil
}

// OnDispatchDeleted recomputes affected lines as if the batch never existed.
// Must be called before the batch's records are physically deleted.
//
// A batch with receipts recorded against it cannot be removed: the receipt is
// downstream evidence of the shipment and deleting its dispatch would orphan it.
func (e *Engine) OnDispatchDeleted(ctx context.Context, batchID id.ID) error {
	attached, err := e.repo.HasReceiptsForBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("check receipts for batch %s: %w", batchID, err)
	}
	if attached {
		return apperror.NewReceiptAttached(batchID.String())
	}

	lineIDs, err := e.repo.LineIDsByDispatchBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("lines for batch %s: %w", batchID, err)
	}

	excl := ExcludeDispatchBatch(batchID)
	for _, lineID := range lineIDs {
		if err := e.RecalculateLine(ctx, lineID, excl); err != nil {
			return fmt.Errorf("recalculate line %s excluding batch: %w", lineID, err)
		}
	}
	logger.Debug(ctx, "dispatch batch reconciled out", "batch_id", batchID, "lines", len(lineIDs))
	return nil
}

// OnReceiptIngested validates and inserts receipt records, then recalculates
// every affected line. Additive, so no exclusion is needed.
func (e *Engine) OnReceiptIngested(ctx context.Context, recs []ReceiptInsert, receiptID, orderID id.ID) error {
	if len(recs) == 0 {
		return apperror.NewValidation("at least one receipt line is required").
			WithDetail("receipt_id", receiptID)
	}

	lineIDs := make([]id.ID, 0, len(recs))
	for i := range recs {
		rec := &recs[i]
		if id.IsNil(rec.OrderLineID) {
			return apperror.NewValidation("order line is required").
				WithDetail("lineNo", i+1)
		}
		if !rec.ReceivedQty.IsPositive() {
			return apperror.NewValidation("received quantity must be positive").
				WithDetail("lineNo", i+1)
		}
		if rec.RejectedQty.IsNegative() {
			return apperror.NewValidation("rejected quantity cannot be negative").
				WithDetail("lineNo", i+1)
		}
		if !rec.RejectedQty.LteWithin(rec.ReceivedQty) {
			return apperror.NewValidation("rejected quantity cannot exceed received").
				WithDetail("lineNo", i+1).
				WithDetail("received", rec.ReceivedQty).
				WithDetail("rejected", rec.RejectedQty)
		}
		if id.IsNil(rec.RecordID) {
			rec.RecordID = id.New()
		}
		rec.ReceiptID = receiptID
		lineIDs = append(lineIDs, rec.OrderLineID)
	}

	if err := e.repo.InsertReceiptRecords(ctx, recs); err != nil {
		return fmt.Errorf("insert receipt records: %w", err)
	}

	for _, lineID := range distinct(lineIDs) {
		if err := e.RecalculateLine(ctx, lineID, Exclusion{}); err != nil {
			return fmt.Errorf("recalculate line %s: %w", lineID, err)
		}
	}
	logger.Debug(ctx, "receipt reconciled", "receipt_id", receiptID, "order_id", orderID, "lines", len(recs))
	return nil
}

// OnReceiptDeleted recomputes affected lines as if the receipt never existed.
// Must be called before the receipt's records are physically deleted.
func (e *Engine) OnReceiptDeleted(ctx context.Context, receiptID id.ID) error {
	lineIDs, err := e.repo.LineIDsByReceipt(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("lines for receipt %s: %w", receiptID, err)
	}

	excl := ExcludeReceipt(receiptID)
	for _, lineID := range lineIDs {
		if err := e.RecalculateLine(ctx, lineID, excl); err != nil {
			return fmt.Errorf("recalculate line %s excluding receipt: %w", lineID, err)
		}
	}
	logger.Debug(ctx, "receipt reconciled out", "receipt_id", receiptID, "lines", len(lineIDs))
	return nil
}

// SyncOrder re-derives every line of an order from the current set of events.
// Idempotent: a second run with no intervening event changes nothing. The
// order row lock is the sync's exclusion scope against concurrent handlers.
func (e *Engine) SyncOrder(ctx context.Context, orderID id.ID) error {
	if err := e.repo.LockOrder(ctx, orderID); err != nil {
		return fmt.Errorf("lock order %s: %w", orderID, err)
	}

	lineIDs, err := e.repo.LineIDsByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("lines for order %s: %w", orderID, err)
	}

	for _, lineID := range lineIDs {
		if err := e.RecalculateLine(ctx, lineID, Exclusion{}); err != nil {
			return fmt.Errorf("recalculate line %s: %w", lineID, err)
		}
	}

	logger.Info(ctx, "order synced", "order_id", orderID, "lines", len(lineIDs))
	return nil
}

// RecalculateLine recomputes one order line's lot-level and line-level
// dispatched/received quantities from first principles, optionally excluding
// one named event.
//
// Dispatch and receipt data arrive from sources that do not always agree on
// lot attribution; records without a lot reference form a shared pool that is
// distributed across lots in lot-number order, with the last lot absorbing
// any leftover so quantity is never silently dropped.
func (e *Engine) RecalculateLine(ctx context.Context, lineID id.ID, excl Exclusion) error {
	line, err := e.repo.GetLineForUpdate(ctx, lineID)
	if err != nil {
		return err
	}

	lots, err := e.repo.ListLots(ctx, lineID)
	if err != nil {
		return fmt.Errorf("list lots: %w", err)
	}
	if len(lots) == 0 {
		return apperror.NewConflict("order line has no lots").
			WithDetail("order_line_id", lineID.String())
	}

	shared, err := e.repo.SharedTotals(ctx, lineID, excl)
	if err != nil {
		return fmt.Errorf("shared totals: %w", err)
	}

	sharedDisp := shared.Dispatched.Clamped()
	sharedRecv := shared.Received.Clamped()
	sharedRej := shared.Rejected.Clamped()

	// Invoice signals without a lot reference floor the line as a whole; they
	// are spread across lots like the shared pool, and the part already covered
	// by a lot's received figure consumes the pool without raising anything.
	lineInvoiced, err := e.repo.InvoiceSignal(ctx, lineID, nil)
	if err != nil {
		return fmt.Errorf("line invoice signal: %w", err)
	}
	invPool := lineInvoiced.Clamped()

	var sumDispatched, sumReceived types.Quantity

	for i := range lots {
		lot := &lots[i]
		last := i == len(lots)-1

		direct, err := e.repo.DirectTotals(ctx, lot.ID, excl)
		if err != nil {
			return fmt.Errorf("direct totals for lot %s: %w", lot.ID, err)
		}

		dispShare := takeShare(&sharedDisp, lot.PromisedQty, direct.Dispatched, last)
		recvShare := takeShare(&sharedRecv, lot.PromisedQty, direct.Received, last)

		invoiced, err := e.repo.InvoiceSignal(ctx, lineID, &lot.ID)
		if err != nil {
			return fmt.Errorf("invoice signal for lot %s: %w", lot.ID, err)
		}

		received := direct.Received + recvShare
		received = types.MaxQuantity(received, invoiced)

		invFloor := types.MinQuantity(invPool, lot.PromisedQty)
		if last {
			invFloor = invPool
		}
		received = types.MaxQuantity(received, invFloor)

		if id.IsNil(excl.ReceiptID) {
			// High-water-mark: recorded received never decreases unless the
			// excluded event could have been its source. Only receipts carry
			// received quantity, so a dispatch-batch exclusion keeps the
			// recorded figure intact.
			received = types.MaxQuantity(received, lot.ReceivedQty)
		}

		invPool -= types.MinQuantity(invPool, received)

		dispatched := direct.Dispatched + dispShare
		dispatched = types.MaxQuantity(dispatched, received)
		if lot.OverrideQty != nil {
			dispatched = types.MaxQuantity(dispatched, *lot.OverrideQty)
		}

		lot.DispatchedQty = dispatched
		lot.ReceivedQty = received
		if err := e.repo.SaveLotQuantities(ctx, lot); err != nil {
			return fmt.Errorf("save lot %s: %w", lot.ID, err)
		}

		// Rejected share follows the received share, capped by it.
		lotRejected := direct.Rejected + takeCapped(&sharedRej, recvShare, last)
		if err := e.redistributeReceipts(ctx, lot, received, lotRejected, excl); err != nil {
			return err
		}

		sumDispatched += dispatched
		sumReceived += received
	}

	rejected, err := e.repo.RejectedTotal(ctx, lineID, excl)
	if err != nil {
		return fmt.Errorf("rejected total: %w", err)
	}

	lineDispatched := sumDispatched
	// A manual override may raise (never lower) the reported dispatch, but
	// once the line is fully received the system-computed total wins.
	if line.OverrideQty != nil && !sumReceived.GteWithin(line.PromisedQty) {
		lineDispatched = types.MaxQuantity(lineDispatched, *line.OverrideQty)
	}

	line.DispatchedQty = lineDispatched
	line.ReceivedQty = sumReceived
	line.RejectedQty = rejected.Clamped()
	if err := e.repo.SaveLineQuantities(ctx, line); err != nil {
		return fmt.Errorf("save line %s: %w", lineID, err)
	}

	return nil
}

// redistributeReceipts spreads a lot's net received/rejected quantity across
// the dispatch records that reference it, in batch creation order. Each batch
// absorbs up to its own dispatched quantity; the last batch takes any
// remainder so per-batch receipt visibility always sums to the lot total.
func (e *Engine) redistributeReceipts(ctx context.Context, lot *Lot, received, rejected types.Quantity, excl Exclusion) error {
	records, err := e.repo.ListLotDispatches(ctx, lot.ID, excl)
	if err != nil {
		return fmt.Errorf("dispatches for lot %s: %w", lot.ID, err)
	}
	if len(records) == 0 {
		return nil
	}

	recvLeft := received.Clamped()
	rejLeft := rejected.Clamped()

	for i, rec := range records {
		last := i == len(records)-1

		r := types.MinQuantity(recvLeft, rec.Dispatched)
		if last {
			r = recvLeft
		}
		rj := types.MinQuantity(rejLeft, r)
		if last {
			rj = rejLeft
		}
		recvLeft -= r
		rejLeft -= rj

		if err := e.repo.SaveRecordReceipt(ctx, rec.RecordID, r, rj); err != nil {
			return fmt.Errorf("save record receipt %s: %w", rec.RecordID, err)
		}
	}

	return nil
}

// takeShare allocates from the shared pool up to the lot's remaining capacity
// (promised minus direct). The last lot absorbs the whole remaining pool
// regardless of capacity.
func takeShare(pool *types.Quantity, promised, direct types.Quantity, last bool) types.Quantity {
	remaining := (promised - direct).Clamped()
	share := types.MinQuantity(*pool, remaining)
	if last {
		share = *pool
	}
	*pool -= share
	return share
}

// takeCapped allocates from the pool up to cap; the last consumer drains it.
func takeCapped(pool *types.Quantity, cap types.Quantity, last bool) types.Quantity {
	share := types.MinQuantity(*pool, cap)
	if last {
		share = *pool
	}
	*pool -= share
	return share
}

func distinct(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
