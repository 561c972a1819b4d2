// Package ledger_repo implements the reconciliation engine's storage contract
// over PostgreSQL.
//
// All methods run against the caller's transaction via the context-bound
// querier. The admission-control insert locks the capacity-bearing row and
// then runs as a single conditional statement, so the capacity check and the
// write cannot be separated by a concurrent writer even at read committed.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain/reconcile"
	"procura/internal/infrastructure/storage/postgres"
)

// querierSource resolves the context-bound querier. A seam over TxManager so
// statement ordering can be exercised without a live database.
type querierSource interface {
	GetQuerier(ctx context.Context) postgres.Querier
}

// LedgerRepo is the PostgreSQL implementation of reconcile.Repository.
type LedgerRepo struct {
	txManager *postgres.TxManager
	source    querierSource
}

// NewLedgerRepo creates a new ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{txManager: txManager, source: txManager}
}

func (r *LedgerRepo) querier(ctx context.Context) postgres.Querier {
	return r.source.GetQuerier(ctx)
}

// uuidOrNull converts a nil id into a SQL NULL parameter, so exclusion
// predicates collapse to true when no event is excluded.
func uuidOrNull(v id.ID) any {
	if id.IsNil(v) {
		return nil
	}
	return v
}

const lineLedgerCols = `line_id AS id, order_id, promised_qty, dispatched_qty,
	received_qty, rejected_qty, override_qty AS override_dispatched_qty`

// GetLineForUpdate fetches an order line ledger row with a row lock.
func (r *LedgerRepo) GetLineForUpdate(ctx context.Context, lineID id.ID) (*reconcile.Line, error) {
	var line reconcile.Line
	err := pgxscan.Get(ctx, r.querier(ctx), &line,
		`SELECT `+lineLedgerCols+` FROM order_lines WHERE line_id = $1 FOR UPDATE`,
		lineID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order_line", lineID.String())
		}
		return nil, fmt.Errorf("get line for update: %w", err)
	}
	return &line, nil
}

// ListLots returns the line's lots ordered by lot number ascending.
func (r *LedgerRepo) ListLots(ctx context.Context, lineID id.ID) ([]reconcile.Lot, error) {
	var lots []reconcile.Lot
	err := pgxscan.Select(ctx, r.querier(ctx), &lots, `
		SELECT lot_id AS id, order_line_id, lot_no, promised_qty,
		       dispatched_qty, received_qty, override_qty AS override_dispatched_qty
		FROM order_lots
		WHERE order_line_id = $1
		ORDER BY lot_no
	`, lineID)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return lots, nil
}

// SharedTotals sums live records for the line that carry no lot reference.
func (r *LedgerRepo) SharedTotals(ctx context.Context, lineID id.ID, excl reconcile.Exclusion) (reconcile.Totals, error) {
	var t reconcile.Totals
	err := r.querier(ctx).QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(quantity) FROM dispatch_records
			          WHERE order_line_id = $1 AND lot_id IS NULL
			            AND ($2::uuid IS NULL OR dispatch_batch_id <> $2)), 0),
			COALESCE((SELECT SUM(received_qty) FROM receipt_records
			          WHERE order_line_id = $1 AND lot_id IS NULL
			            AND ($3::uuid IS NULL OR receipt_id <> $3)), 0),
			COALESCE((SELECT SUM(rejected_qty) FROM receipt_records
			          WHERE order_line_id = $1 AND lot_id IS NULL
			            AND ($3::uuid IS NULL OR receipt_id <> $3)), 0)
	`, lineID, uuidOrNull(excl.DispatchBatchID), uuidOrNull(excl.ReceiptID)).
		Scan(&t.Dispatched, &t.Received, &t.Rejected)
	if err != nil {
		return reconcile.Totals{}, fmt.Errorf("shared totals: %w", err)
	}
	return t, nil
}

// DirectTotals sums live records that explicitly reference the lot.
func (r *LedgerRepo) DirectTotals(ctx context.Context, lotID id.ID, excl reconcile.Exclusion) (reconcile.Totals, error) {
	var t reconcile.Totals
	err := r.querier(ctx).QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(quantity) FROM dispatch_records
			          WHERE lot_id = $1
			            AND ($2::uuid IS NULL OR dispatch_batch_id <> $2)), 0),
			COALESCE((SELECT SUM(received_qty) FROM receipt_records
			          WHERE lot_id = $1
			            AND ($3::uuid IS NULL OR receipt_id <> $3)), 0),
			COALESCE((SELECT SUM(rejected_qty) FROM receipt_records
			          WHERE lot_id = $1
			            AND ($3::uuid IS NULL OR receipt_id <> $3)), 0)
	`, lotID, uuidOrNull(excl.DispatchBatchID), uuidOrNull(excl.ReceiptID)).
		Scan(&t.Dispatched, &t.Received, &t.Rejected)
	if err != nil {
		return reconcile.Totals{}, fmt.Errorf("direct totals: %w", err)
	}
	return t, nil
}

// RejectedTotal sums rejected quantity recorded against the line.
func (r *LedgerRepo) RejectedTotal(ctx context.Context, lineID id.ID, excl reconcile.Exclusion) (types.Quantity, error) {
	var rejected types.Quantity
	err := r.querier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(rejected_qty), 0)
		FROM receipt_records
		WHERE order_line_id = $1
		  AND ($2::uuid IS NULL OR receipt_id <> $2)
	`, lineID, uuidOrNull(excl.ReceiptID)).Scan(&rejected)
	if err != nil {
		return 0, fmt.Errorf("rejected total: %w", err)
	}
	return rejected, nil
}

// InvoiceSignal returns the invoiced quantity for a line or lot.
func (r *LedgerRepo) InvoiceSignal(ctx context.Context, lineID id.ID, lotID *id.ID) (types.Quantity, error) {
	var invoiced types.Quantity
	var err error
	if lotID != nil {
		err = r.querier(ctx).QueryRow(ctx,
			`SELECT COALESCE(SUM(quantity), 0) FROM invoice_signals WHERE lot_id = $1`,
			*lotID).Scan(&invoiced)
	} else {
		err = r.querier(ctx).QueryRow(ctx,
			`SELECT COALESCE(SUM(quantity), 0) FROM invoice_signals WHERE order_line_id = $1`,
			lineID).Scan(&invoiced)
	}
	if err != nil {
		return 0, fmt.Errorf("invoice signal: %w", err)
	}
	return invoiced, nil
}

// ListLotDispatches returns live dispatch records against the lot, ordered by
// batch creation time ascending.
func (r *LedgerRepo) ListLotDispatches(ctx context.Context, lotID id.ID, excl reconcile.Exclusion) ([]reconcile.LotDispatch, error) {
	var recs []reconcile.LotDispatch
	err := pgxscan.Select(ctx, r.querier(ctx), &recs, `
		SELECT dr.record_id AS id,
		       dr.dispatch_batch_id AS batch_id,
		       dr.quantity,
		       b.created_at AS batch_created_at
		FROM dispatch_records dr
		JOIN dispatch_batches b ON b.id = dr.dispatch_batch_id
		WHERE dr.lot_id = $1
		  AND ($2::uuid IS NULL OR dr.dispatch_batch_id <> $2)
		ORDER BY b.created_at, b.id
	`, lotID, uuidOrNull(excl.DispatchBatchID))
	if err != nil {
		return nil, fmt.Errorf("list lot dispatches: %w", err)
	}
	return recs, nil
}

// SaveLotQuantities persists a lot's recalculated dispatched/received.
func (r *LedgerRepo) SaveLotQuantities(ctx context.Context, lot *reconcile.Lot) error {
	result, err := r.querier(ctx).Exec(ctx,
		`UPDATE order_lots SET dispatched_qty = $2, received_qty = $3 WHERE lot_id = $1`,
		lot.ID, lot.DispatchedQty, lot.ReceivedQty)
	if err != nil {
		return fmt.Errorf("save lot quantities: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order_lot", lot.ID.String())
	}
	return nil
}

// SaveLineQuantities persists a line's recalculated quantities.
func (r *LedgerRepo) SaveLineQuantities(ctx context.Context, line *reconcile.Line) error {
	result, err := r.querier(ctx).Exec(ctx, `
		UPDATE order_lines
		SET dispatched_qty = $2, received_qty = $3, rejected_qty = $4
		WHERE line_id = $1
	`, line.ID, line.DispatchedQty, line.ReceivedQty, line.RejectedQty)
	if err != nil {
		return fmt.Errorf("save line quantities: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order_line", line.ID.String())
	}
	return nil
}

// SaveRecordReceipt persists per-batch receipt visibility on a dispatch record.
func (r *LedgerRepo) SaveRecordReceipt(ctx context.Context, recordID id.ID, received, rejected types.Quantity) error {
	_, err := r.querier(ctx).Exec(ctx,
		`UPDATE dispatch_records SET received_qty = $2, rejected_qty = $3 WHERE record_id = $1`,
		recordID, received, rejected)
	if err != nil {
		return fmt.Errorf("save record receipt: %w", err)
	}
	return nil
}

// Admission locks. The capacity-bearing row is locked before the conditional
// insert; at read committed the insert statement then sees every committed
// dispatch record, so two admissions against the same target serialize instead
// of both passing the capacity check on their own snapshots.
const (
	lockLotForAdmission  = `SELECT lot_id FROM order_lots WHERE lot_id = $1 FOR UPDATE`
	lockLineForAdmission = `SELECT line_id FROM order_lines WHERE line_id = $1 FOR UPDATE`
)

// InsertDispatchRecord inserts a dispatch record if and only if the target has
// remaining capacity. It first locks the target lot or line row, then runs the
// capacity subquery and the insert as one statement; zero affected rows means
// the check failed at execution time.
func (r *LedgerRepo) InsertDispatchRecord(ctx context.Context, rec reconcile.DispatchInsert) error {
	querier := r.querier(ctx)

	if rec.LotID != nil {
		var locked id.ID
		if err := querier.QueryRow(ctx, lockLotForAdmission, *rec.LotID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperror.NewNotFound("order_lot", rec.LotID.String())
			}
			return fmt.Errorf("lock lot for admission: %w", err)
		}

		result, err := querier.Exec(ctx, `
			INSERT INTO dispatch_records
				(record_id, dispatch_batch_id, order_line_id, lot_id,
				 quantity, received_qty, rejected_qty, line_no)
			SELECT $1, $2, $3, $4, $5, 0, 0,
			       COALESCE((SELECT MAX(line_no) FROM dispatch_records
			                 WHERE dispatch_batch_id = $2), 0) + 1
			WHERE EXISTS (
				SELECT 1 FROM order_lots l
				WHERE l.lot_id = $4
				  AND l.promised_qty
				      - COALESCE((SELECT SUM(d.quantity) FROM dispatch_records d
				                  WHERE d.lot_id = $4), 0)
				      >= $5 - $6
			)
		`, rec.RecordID, rec.BatchID, rec.OrderLineID, *rec.LotID, rec.Quantity, types.Epsilon)
		if err != nil {
			return fmt.Errorf("insert dispatch record: %w", err)
		}
		if result.RowsAffected() == 0 {
			return r.capacityViolation(ctx, rec, rec.LotID)
		}
		return nil
	}

	// Lot-unassigned records are admitted against the whole line's capacity.
	var locked id.ID
	if err := querier.QueryRow(ctx, lockLineForAdmission, rec.OrderLineID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewNotFound("order_line", rec.OrderLineID.String())
		}
		return fmt.Errorf("lock line for admission: %w", err)
	}

	result, err := querier.Exec(ctx, `
		INSERT INTO dispatch_records
			(record_id, dispatch_batch_id, order_line_id, lot_id,
			 quantity, received_qty, rejected_qty, line_no)
		SELECT $1, $2, $3, NULL, $4, 0, 0,
		       COALESCE((SELECT MAX(line_no) FROM dispatch_records
		                 WHERE dispatch_batch_id = $2), 0) + 1
		WHERE EXISTS (
			SELECT 1 FROM order_lines ol
			WHERE ol.line_id = $3
			  AND ol.promised_qty
			      - COALESCE((SELECT SUM(d.quantity) FROM dispatch_records d
			                  WHERE d.order_line_id = $3), 0)
			      >= $4 - $5
		)
	`, rec.RecordID, rec.BatchID, rec.OrderLineID, rec.Quantity, types.Epsilon)
	if err != nil {
		return fmt.Errorf("insert dispatch record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.capacityViolation(ctx, rec, nil)
	}
	return nil
}

// capacityViolation distinguishes a missing target from an exhausted one and
// builds the diagnostic error with the remaining quantity at rejection time.
func (r *LedgerRepo) capacityViolation(ctx context.Context, rec reconcile.DispatchInsert, lotID *id.ID) error {
	var remaining types.Quantity
	var err error

	if lotID != nil {
		err = r.querier(ctx).QueryRow(ctx, `
			SELECT l.promised_qty
			       - COALESCE((SELECT SUM(d.quantity) FROM dispatch_records d
			                   WHERE d.lot_id = l.lot_id), 0)
			FROM order_lots l
			WHERE l.lot_id = $1
		`, *lotID).Scan(&remaining)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NewNotFound("order_lot", lotID.String())
		}
		if err != nil {
			return fmt.Errorf("query lot remaining: %w", err)
		}
		return apperror.NewInsufficientCapacity("lot", *lotID, rec.Quantity, remaining.Clamped())
	}

	err = r.querier(ctx).QueryRow(ctx, `
		SELECT ol.promised_qty
		       - COALESCE((SELECT SUM(d.quantity) FROM dispatch_records d
		                   WHERE d.order_line_id = ol.line_id), 0)
		FROM order_lines ol
		WHERE ol.line_id = $1
	`, rec.OrderLineID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound("order_line", rec.OrderLineID.String())
	}
	if err != nil {
		return fmt.Errorf("query line remaining: %w", err)
	}
	return apperror.NewInsufficientCapacity("order_line", rec.OrderLineID, rec.Quantity, remaining.Clamped())
}

// InsertReceiptRecords batch inserts receipt records in one round-trip.
func (r *LedgerRepo) InsertReceiptRecords(ctx context.Context, recs []reconcile.ReceiptInsert) error {
	queries := make([]postgres.BatchQuery, 0, len(recs))
	for i, rec := range recs {
		queries = append(queries, postgres.BatchQuery{
			SQL: `
				INSERT INTO receipt_records
					(record_id, receipt_id, order_line_id, lot_id,
					 dispatch_batch_id, received_qty, rejected_qty, line_no)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`,
			Args: []any{
				rec.RecordID, rec.ReceiptID, rec.OrderLineID, rec.LotID,
				rec.DispatchBatchID, rec.ReceivedQty, rec.RejectedQty, i + 1,
			},
		})
	}
	if err := postgres.ExecuteBatch(ctx, r.txManager, queries); err != nil {
		return fmt.Errorf("insert receipt records: %w", err)
	}
	return nil
}

// LineIDsByOrder returns all line ids of an order, in line order.
func (r *LedgerRepo) LineIDsByOrder(ctx context.Context, orderID id.ID) ([]id.ID, error) {
	var ids []id.ID
	err := pgxscan.Select(ctx, r.querier(ctx), &ids,
		`SELECT line_id FROM order_lines WHERE order_id = $1 ORDER BY line_no`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("line ids by order: %w", err)
	}
	return ids, nil
}

// LineIDsByDispatchBatch returns the distinct lines a batch touches.
func (r *LedgerRepo) LineIDsByDispatchBatch(ctx context.Context, batchID id.ID) ([]id.ID, error) {
	var ids []id.ID
	err := pgxscan.Select(ctx, r.querier(ctx), &ids,
		`SELECT DISTINCT order_line_id FROM dispatch_records WHERE dispatch_batch_id = $1`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("line ids by batch: %w", err)
	}
	return ids, nil
}

// LineIDsByReceipt returns the distinct lines a receipt touches.
func (r *LedgerRepo) LineIDsByReceipt(ctx context.Context, receiptID id.ID) ([]id.ID, error) {
	var ids []id.ID
	err := pgxscan.Select(ctx, r.querier(ctx), &ids,
		`SELECT DISTINCT order_line_id FROM receipt_records WHERE receipt_id = $1`,
		receiptID)
	if err != nil {
		return nil, fmt.Errorf("line ids by receipt: %w", err)
	}
	return ids, nil
}

// HasReceiptsForBatch reports whether any receipt references the batch.
func (r *LedgerRepo) HasReceiptsForBatch(ctx context.Context, batchID id.ID) (bool, error) {
	var exists bool
	err := r.querier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM receipt_records WHERE dispatch_batch_id = $1)`,
		batchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check receipts for batch: %w", err)
	}
	return exists, nil
}

// LockOrder takes a row lock on the order, the lock scope for bulk sync.
func (r *LedgerRepo) LockOrder(ctx context.Context, orderID id.ID) error {
	var locked id.ID
	err := r.querier(ctx).QueryRow(ctx,
		`SELECT id FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NewNotFound("order", orderID.String())
	}
	if err != nil {
		return fmt.Errorf("lock order: %w", err)
	}
	return nil
}

var _ reconcile.Repository = (*LedgerRepo)(nil)
