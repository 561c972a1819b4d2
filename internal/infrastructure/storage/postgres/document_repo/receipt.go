package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"procura/internal/core/id"
	"procura/internal/domain"
	"procura/internal/domain/documents/receipt"
	"procura/internal/infrastructure/storage/postgres"
)

// ReceiptRepo is the PostgreSQL implementation of receipt.Repository.
type ReceiptRepo struct {
	*BaseDocumentRepo[*receipt.Receipt]
}

var (
	receiptCols = postgres.ExtractDBColumns[receipt.Receipt]()

	receiptRecordCols = []string{
		"record_id", "line_no", "order_line_id", "lot_id",
		"dispatch_batch_id", "received_qty", "rejected_qty",
	}
)

// NewReceiptRepo creates a new receipt repository.
func NewReceiptRepo(txManager *postgres.TxManager) *ReceiptRepo {
	return &ReceiptRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			"receipts",
			receiptCols,
			func() *receipt.Receipt { return &receipt.Receipt{} },
		),
	}
}

// GetLines reads the receipt's records.
func (r *ReceiptRepo) GetLines(ctx context.Context, receiptID id.ID) ([]receipt.Line, error) {
	q := r.Builder().
		Select(receiptRecordCols...).
		From("receipt_records").
		Where(squirrel.Eq{"receipt_id": receiptID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build records query: %w", err)
	}

	var lines []receipt.Line
	if err := pgxscan.Select(ctx, r.Querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	return lines, nil
}

// DeleteWithRecords hard-deletes the receipt header and its records.
func (r *ReceiptRepo) DeleteWithRecords(ctx context.Context, receiptID id.ID) error {
	querier := r.Querier(ctx)

	if _, err := querier.Exec(ctx,
		`DELETE FROM receipt_records WHERE receipt_id = $1`, receiptID); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return r.HardDelete(ctx, receiptID)
}

// List retrieves receipts with filtering.
func (r *ReceiptRepo) List(ctx context.Context, filter receipt.ListFilter) (domain.ListResult[*receipt.Receipt], error) {
	return r.ListWith(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.OrderID != nil {
			q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
		}
		if filter.DispatchBatchID != nil {
			q = q.Where(squirrel.Expr(
				"id IN (SELECT DISTINCT receipt_id FROM receipt_records WHERE dispatch_batch_id = ?)",
				*filter.DispatchBatchID))
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

var _ receipt.Repository = (*ReceiptRepo)(nil)
