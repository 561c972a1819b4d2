package document_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"procura/internal/core/apperror"
	"procura/internal/core/id"
	"procura/internal/core/types"
	"procura/internal/domain"
	"procura/internal/domain/orders"
	"procura/internal/infrastructure/storage/postgres"
)

// OrderRepo is the PostgreSQL implementation of orders.Repository.
type OrderRepo struct {
	*BaseDocumentRepo[*orders.Order]
	inserter *postgres.BatchInserter
}

var (
	orderCols = postgres.ExtractDBColumns[orders.Order]()

	orderLineCols = []string{
		"line_id", "line_no", "sku", "description",
		"promised_qty", "dispatched_qty", "received_qty", "rejected_qty",
		"override_qty", "unit_price", "amount",
	}

	orderLotCols = []string{
		"lot_id", "order_line_id", "lot_no",
		"promised_qty", "dispatched_qty", "received_qty",
		"override_qty", "due_date",
	}
)

// NewOrderRepo creates a new order repository.
func NewOrderRepo(txManager *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"orders",
			orderCols,
			func() *orders.Order { return &orders.Order{} },
		),
		inserter: postgres.NewBatchInserter(txManager),
	}
}

// GetLines loads the order's lines with their lots.
func (r *OrderRepo) GetLines(ctx context.Context, orderID id.ID) ([]orders.Line, error) {
	q := r.Builder().
		Select(orderLineCols...).
		From("order_lines").
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	var lines []orders.Line
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}
	if len(lines) == 0 {
		return lines, nil
	}

	lineIDs := make([]id.ID, 0, len(lines))
	for _, line := range lines {
		lineIDs = append(lineIDs, line.LineID)
	}

	lq := r.Builder().
		Select(orderLotCols...).
		From("order_lots").
		Where(squirrel.Eq{"order_line_id": lineIDs}).
		OrderBy("order_line_id", "lot_no")

	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lots query: %w", err)
	}

	var lots []orders.Lot
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("select lots: %w", err)
	}

	byLine := make(map[id.ID][]orders.Lot, len(lines))
	for _, lot := range lots {
		byLine[lot.OrderLineID] = append(byLine[lot.OrderLineID], lot)
	}
	for i := range lines {
		lines[i].Lots = byLine[lines[i].LineID]
	}

	return lines, nil
}

// SaveLines persists the order's table part. A fresh order (no stored lines)
// goes through the COPY protocol; an amendment upserts surviving lines and
// removes the rest.
func (r *OrderRepo) SaveLines(ctx context.Context, orderID id.ID, lines []orders.Line) error {
	var existing int64
	countSQL, countArgs, err := r.Builder().
		Select("COUNT(*)").
		From("order_lines").
		Where(squirrel.Eq{"order_id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build count: %w", err)
	}
	if err := r.Querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&existing); err != nil {
		return fmt.Errorf("count lines: %w", err)
	}

	if existing == 0 {
		return r.copyLines(ctx, orderID, lines)
	}
	return r.upsertLines(ctx, orderID, lines)
}

func (r *OrderRepo) copyLines(ctx context.Context, orderID id.ID, lines []orders.Line) error {
	lineCols := append([]string{"order_id"}, orderLineCols...)
	lineRows := make([][]any, 0, len(lines))
	var lotRows [][]any

	for _, line := range lines {
		lineRows = append(lineRows, []any{
			orderID, line.LineID, line.LineNo, line.SKU, line.Description,
			line.PromisedQty, line.DispatchedQty, line.ReceivedQty, line.RejectedQty,
			line.OverrideQty, line.UnitPrice, line.Amount,
		})
		for _, lot := range line.Lots {
			lotRows = append(lotRows, []any{
				lot.LotID, lot.OrderLineID, lot.LotNo,
				lot.PromisedQty, lot.DispatchedQty, lot.ReceivedQty,
				lot.OverrideQty, lot.DueDate,
			})
		}
	}

	if _, err := r.inserter.CopyFromSlice(ctx, "order_lines", lineCols, lineRows); err != nil {
		return fmt.Errorf("copy lines: %w", err)
	}
	if len(lotRows) > 0 {
		if _, err := r.inserter.CopyFromSlice(ctx, "order_lots", orderLotCols, lotRows); err != nil {
			return fmt.Errorf("copy lots: %w", err)
		}
	}
	return nil
}

func (r *OrderRepo) upsertLines(ctx context.Context, orderID id.ID, lines []orders.Line) error {
	keepLines := make([]id.ID, 0, len(lines))
	keepLots := make([]id.ID, 0, len(lines))
	querier := r.Querier(ctx)

	for _, line := range lines {
		keepLines = append(keepLines, line.LineID)

		// Ledger quantities are engine-owned and excluded from the upsert.
		_, err := querier.Exec(ctx, `
			INSERT INTO order_lines (
				order_id, line_id, line_no, sku, description,
				promised_qty, override_qty, unit_price, amount
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (line_id) DO UPDATE SET
				line_no = EXCLUDED.line_no,
				sku = EXCLUDED.sku,
				description = EXCLUDED.description,
				promised_qty = EXCLUDED.promised_qty,
				override_qty = EXCLUDED.override_qty,
				unit_price = EXCLUDED.unit_price,
				amount = EXCLUDED.amount
		`, orderID, line.LineID, line.LineNo, line.SKU, line.Description,
			line.PromisedQty, line.OverrideQty, line.UnitPrice, line.Amount)
		if err != nil {
			return fmt.Errorf("upsert line %s: %w", line.LineID, err)
		}

		for _, lot := range line.Lots {
			keepLots = append(keepLots, lot.LotID)
			_, err := querier.Exec(ctx, `
				INSERT INTO order_lots (
					lot_id, order_line_id, lot_no, promised_qty, override_qty, due_date
				) VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (lot_id) DO UPDATE SET
					lot_no = EXCLUDED.lot_no,
					promised_qty = EXCLUDED.promised_qty,
					override_qty = EXCLUDED.override_qty,
					due_date = EXCLUDED.due_date
			`, lot.LotID, lot.OrderLineID, lot.LotNo, lot.PromisedQty, lot.OverrideQty, lot.DueDate)
			if err != nil {
				return fmt.Errorf("upsert lot %s: %w", lot.LotID, err)
			}
		}
	}

	delSQL, delArgs, err := r.Builder().
		Delete("order_lots").
		Where(squirrel.Expr(
			"order_line_id IN (SELECT line_id FROM order_lines WHERE order_id = ?)", orderID)).
		Where(squirrel.NotEq{"lot_id": keepLots}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lot cleanup: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete removed lots: %w", err)
	}

	delSQL, delArgs, err = r.Builder().
		Delete("order_lines").
		Where(squirrel.Eq{"order_id": orderID}).
		Where(squirrel.NotEq{"line_id": keepLines}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build line cleanup: %w", err)
	}
	if _, err := querier.Exec(ctx, delSQL, delArgs...); err != nil {
		return fmt.Errorf("delete removed lines: %w", err)
	}

	return nil
}

// SetLineOverride sets or clears the manual dispatched override on a line.
func (r *OrderRepo) SetLineOverride(ctx context.Context, lineID id.ID, override *types.Quantity) error {
	result, err := r.Querier(ctx).Exec(ctx,
		`UPDATE order_lines SET override_qty = $2 WHERE line_id = $1`,
		lineID, override)
	if err != nil {
		return fmt.Errorf("set line override: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("order_line", lineID.String())
	}
	return nil
}

// SetLotOverride sets or clears the override on a lot and returns the owning line.
func (r *OrderRepo) SetLotOverride(ctx context.Context, lotID id.ID, override *types.Quantity) (id.ID, error) {
	var lineID id.ID
	err := r.Querier(ctx).QueryRow(ctx,
		`UPDATE order_lots SET override_qty = $2 WHERE lot_id = $1 RETURNING order_line_id`,
		lotID, override).Scan(&lineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return id.Nil(), apperror.NewNotFound("order_lot", lotID.String())
		}
		return id.Nil(), fmt.Errorf("set lot override: %w", err)
	}
	return lineID, nil
}

// HasDispatches reports whether any dispatch record references the order.
func (r *OrderRepo) HasDispatches(ctx context.Context, orderID id.ID) (bool, error) {
	var exists bool
	err := r.Querier(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM dispatch_records dr
			JOIN order_lines ol ON ol.line_id = dr.order_line_id
			WHERE ol.order_id = $1
		)
	`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dispatches: %w", err)
	}
	return exists, nil
}

// List retrieves orders with filtering.
func (r *OrderRepo) List(ctx context.Context, filter orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	return r.ListWith(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.SupplierID != nil {
			q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
		}
		if filter.DateFrom != nil {
			q = q.Where(squirrel.GtOrEq{"date": *filter.DateFrom})
		}
		if filter.DateTo != nil {
			q = q.Where(squirrel.LtOrEq{"date": *filter.DateTo})
		}
		return q
	})
}

var _ orders.Repository = (*OrderRepo)(nil)
